package extract

import (
	"errors"
	"sync"
)

type Kind string

const (
	KindConfig     Kind = "config"
	KindFormat     Kind = "format"
	KindValidation Kind = "validation"
	KindCollection Kind = "collection"
	KindOther      Kind = "other"
)

// KindOf classifies err by the first typed error found in its chain.
func KindOf(err error) Kind {
	switch {
	case IsConfigError(err):
		return KindConfig
	case IsFormatError(err):
		return KindFormat
	case IsValidationError(err):
		return KindValidation
	case IsCollectionError(err):
		return KindCollection
	default:
		return KindOther
	}
}

func locationOf(err error) Location {
	var fe FormatError
	if errors.As(err, &fe) {
		return fe.Location
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		return ve.Location
	}
	var ce CollectionError
	if errors.As(err, &ce) {
		return ce.Location
	}
	return Location{}
}

type Issue struct {
	Kind     Kind     `json:"kind"`
	Location Location `json:"location"`
	Message  string   `json:"message"`
	Err      error    `json:"-"`
}

// Report accumulates data errors for one run. It is safe for concurrent use.
type Report struct {
	mu     sync.Mutex
	issues []Issue
}

func NewReport() *Report {
	return &Report{}
}

// Add records err. Joined errors are flattened so each cause is counted once.
func (r *Report) Add(err error) {
	if err == nil {
		return
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			r.Add(e)
		}
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.issues = append(r.issues, Issue{
		Kind:     KindOf(err),
		Location: locationOf(err),
		Message:  err.Error(),
		Err:      err,
	})
}

func (r *Report) Merge(other *Report) {
	if other == nil || other == r {
		return
	}
	for _, issue := range other.Issues() {
		r.Add(issue.Err)
	}
}

// Issues returns a copy of the recorded issues in insertion order.
func (r *Report) Issues() []Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Issue, len(r.issues))
	copy(out, r.issues)
	return out
}

func (r *Report) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.issues)
}

func (r *Report) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, issue := range r.issues {
		if issue.Kind == kind {
			n++
		}
	}
	return n
}

// Counts returns the number of issues per kind.
func (r *Report) Counts() map[Kind]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[Kind]int)
	for _, issue := range r.issues {
		counts[issue.Kind]++
	}
	return counts
}

// Err joins every recorded error, or returns nil for a clean run.
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.issues) == 0 {
		return nil
	}
	errs := make([]error, len(r.issues))
	for i, issue := range r.issues {
		errs[i] = issue.Err
	}
	return errors.Join(errs...)
}
