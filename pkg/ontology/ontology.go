// Package ontology resolves raw cell text (a term id, label or synonym) to
// canonical ontology terms.
package ontology

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

var ErrNotFound = errors.New("ontology term not found")

type Term struct {
	ID       string   `json:"id" yaml:"id"`
	Label    string   `json:"label" yaml:"label"`
	Synonyms []string `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
	Obsolete bool     `json:"obsolete,omitempty" yaml:"obsolete,omitempty"`
}

// Prefix returns the CURIE prefix of the term id, e.g. "HP".
func (t Term) Prefix() string {
	return Prefix(t.ID)
}

// Lookup is implemented by every term source. Resolve accepts an id, label or
// synonym and returns the primary term; Contains checks an id.
type Lookup interface {
	Resolve(ctx context.Context, resource, version, raw string) (Term, error)
	Contains(ctx context.Context, resource, id string) (bool, error)
}

// Hierarchy is implemented by sources that know the is_a structure of their
// terms.
type Hierarchy interface {
	IsAncestor(ancestor, term string) bool
}

var curiePattern = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_.-]*):(\S+)$`)

// Prefix returns the part of a CURIE before the colon, or "".
func Prefix(id string) string {
	m := curiePattern.FindStringSubmatch(strings.TrimSpace(id))
	if m == nil {
		return ""
	}
	return m[1]
}

// IsCURIE reports whether s looks like PREFIX:LOCAL.
func IsCURIE(s string) bool {
	return curiePattern.MatchString(strings.TrimSpace(s))
}

// CURIE converts an OBO PURL such as
// http://purl.obolibrary.org/obo/HP_0001250 to HP:0001250. Values that are
// already CURIEs are returned unchanged.
func CURIE(iri string) string {
	iri = strings.TrimSpace(iri)
	if !strings.Contains(iri, "/") && IsCURIE(iri) {
		return iri
	}
	local := iri
	if i := strings.LastIndexAny(iri, "/#"); i >= 0 {
		local = iri[i+1:]
	}
	if i := strings.IndexByte(local, '_'); i > 0 {
		return local[:i] + ":" + local[i+1:]
	}
	return local
}

func normalise(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
