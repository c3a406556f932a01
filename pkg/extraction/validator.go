package extraction

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/synaptica-ai/phenoxtract/pkg/common/models"
)

var (
	errNoManifest      = errors.New("manifest or manifest_yaml required")
	errBothManifests   = errors.New("manifest and manifest_yaml are mutually exclusive")
	errInvalidManifest = errors.New("invalid manifest path")
	errInlineTooLarge  = errors.New("inline manifest too large")
)

// RequestError marks a request the caller must fix. The HTTP handler maps it
// to 400.
type RequestError struct {
	reason error
}

func (e RequestError) Error() string {
	return e.reason.Error()
}

func (e RequestError) Unwrap() error {
	return e.reason
}

func IsRequestError(err error) bool {
	var re RequestError
	return errors.As(err, &re)
}

type Validator struct {
	maxInline int
}

func NewValidator(maxInline int) *Validator {
	return &Validator{maxInline: maxInline}
}

// Validate checks the shape of req. Manifest paths must stay inside the
// service's manifest root.
func (v *Validator) Validate(req models.ExtractionRequest) error {
	if v == nil {
		return RequestError{reason: errors.New("validator not initialised")}
	}

	path := strings.TrimSpace(req.Manifest)
	inline := strings.TrimSpace(req.ManifestYAML)
	switch {
	case path == "" && inline == "":
		return RequestError{reason: errNoManifest}
	case path != "" && inline != "":
		return RequestError{reason: errBothManifests}
	case inline != "":
		if v.maxInline > 0 && len(inline) > v.maxInline {
			return RequestError{reason: fmt.Errorf("%d bytes: %w", len(inline), errInlineTooLarge)}
		}
		return nil
	}

	if filepath.IsAbs(path) {
		return RequestError{reason: fmt.Errorf("'%s' must be relative: %w", path, errInvalidManifest)}
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return RequestError{reason: fmt.Errorf("'%s' escapes the manifest root: %w", path, errInvalidManifest)}
	}
	switch strings.ToLower(filepath.Ext(clean)) {
	case ".yaml", ".yml":
	default:
		return RequestError{reason: fmt.Errorf("'%s' is not a YAML file: %w", path, errInvalidManifest)}
	}
	return nil
}
