// Package extract holds the error taxonomy shared by every stage of an
// extraction run and the report that accumulates per-cell data errors.
package extract

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnmapped          = errors.New("value not mapped")
	ErrUnparseable       = errors.New("value could not be parsed")
	ErrMissingSubject    = errors.New("missing subject id")
	ErrCardinality       = errors.New("cardinality mismatch")
	ErrConflictingValue  = errors.New("conflicting value")
	ErrUnknownTerm       = errors.New("term not found in ontology")
	ErrMissingTerm       = errors.New("mandatory term empty while partners carry data")
	ErrDuplicateBinding  = errors.New("column bound twice")
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// Location pins a data error to the cell that caused it. Zero fields are
// omitted when rendered.
type Location struct {
	Table   string `json:"table,omitempty"`
	Column  string `json:"column,omitempty"`
	Block   string `json:"block,omitempty"`
	Subject string `json:"subject,omitempty"`
	Row     int    `json:"row"`
	Value   string `json:"value,omitempty"`
}

func (l Location) String() string {
	var parts []string
	if l.Table != "" {
		parts = append(parts, "table="+l.Table)
	}
	if l.Column != "" {
		parts = append(parts, "column="+l.Column)
	}
	if l.Block != "" {
		parts = append(parts, "block="+l.Block)
	}
	if l.Row > 0 {
		parts = append(parts, fmt.Sprintf("row=%d", l.Row))
	}
	if l.Subject != "" {
		parts = append(parts, "subject="+l.Subject)
	}
	if l.Value != "" {
		parts = append(parts, fmt.Sprintf("value=%q", l.Value))
	}
	return strings.Join(parts, " ")
}

func withLocation(loc Location, msg string) string {
	if s := loc.String(); s != "" {
		return s + ": " + msg
	}
	return msg
}

// ConfigError is fatal: the run stops before any data is processed.
type ConfigError struct {
	Field  string
	reason error
}

func NewConfigError(field string, reason error) ConfigError {
	return ConfigError{Field: field, reason: reason}
}

func ConfigErrorf(field, format string, args ...interface{}) ConfigError {
	return ConfigError{Field: field, reason: fmt.Errorf(format, args...)}
}

func (e ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.reason.Error()
	}
	return fmt.Sprintf("config %s: %s", e.Field, e.reason)
}

func (e ConfigError) Unwrap() error {
	return e.reason
}

func IsConfigError(err error) bool {
	var ce ConfigError
	return errors.As(err, &ce)
}

// FormatError marks a cell whose value could not be parsed into the expected shape.
type FormatError struct {
	Location Location
	reason   error
}

func NewFormatError(loc Location, reason error) FormatError {
	return FormatError{Location: loc, reason: reason}
}

func (e FormatError) Error() string {
	return withLocation(e.Location, "format: "+e.reason.Error())
}

func (e FormatError) Unwrap() error {
	return e.reason
}

func IsFormatError(err error) bool {
	var fe FormatError
	return errors.As(err, &fe)
}

// ValidationError marks a value that parsed but is not acceptable, e.g. an
// unmapped alias or an unknown ontology term. Suggestions lists close matches.
type ValidationError struct {
	Location    Location
	Suggestions []string
	reason      error
}

func NewValidationError(loc Location, reason error, suggestions ...string) ValidationError {
	return ValidationError{Location: loc, Suggestions: suggestions, reason: reason}
}

func (e ValidationError) Error() string {
	msg := "validation: " + e.reason.Error()
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return withLocation(e.Location, msg)
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// CollectionError marks a row or block that could not be assembled into a record.
type CollectionError struct {
	Location Location
	reason   error
}

func NewCollectionError(loc Location, reason error) CollectionError {
	return CollectionError{Location: loc, reason: reason}
}

func (e CollectionError) Error() string {
	return withLocation(e.Location, "collection: "+e.reason.Error())
}

func (e CollectionError) Unwrap() error {
	return e.reason
}

func IsCollectionError(err error) bool {
	var ce CollectionError
	return errors.As(err, &ce)
}
