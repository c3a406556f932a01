package extraction

import (
	"time"

	"github.com/synaptica-ai/phenoxtract/pkg/common/models"
)

type RequestWrapper struct {
	Manifest     string            `json:"manifest,omitempty"`
	ManifestYAML string            `json:"manifest_yaml,omitempty"`
	RequestedBy  string            `json:"requested_by,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (r RequestWrapper) ToModel() models.ExtractionRequest {
	return models.ExtractionRequest{
		Manifest:     r.Manifest,
		ManifestYAML: r.ManifestYAML,
		RequestedBy:  r.RequestedBy,
		Metadata:     r.Metadata,
		Timestamp:    time.Now().UTC(),
	}
}
