package ontology

import (
	"context"
	"strings"
)

// index is the in-memory term table behind file based lookups. Ids match
// case-insensitively; labels and synonyms match after whitespace and case
// folding and resolve to their primary term.
type index struct {
	version string
	terms   []Term
	byID    map[string]int
	byName  map[string]int
}

func newIndex(version string, terms []Term) *index {
	idx := &index{
		version: version,
		byID:    make(map[string]int, len(terms)),
		byName:  make(map[string]int, len(terms)),
	}
	for _, t := range terms {
		idx.add(t)
	}
	return idx
}

func (x *index) add(t Term) {
	t.ID = strings.TrimSpace(t.ID)
	if t.ID == "" {
		return
	}
	pos := len(x.terms)
	x.terms = append(x.terms, t)
	x.byID[strings.ToUpper(t.ID)] = pos

	// Current terms win over obsolete ones sharing a label.
	claim := func(name string) {
		key := normalise(name)
		if key == "" {
			return
		}
		if prev, ok := x.byName[key]; ok && !x.terms[prev].Obsolete {
			return
		}
		x.byName[key] = pos
	}
	claim(t.Label)
	for _, syn := range t.Synonyms {
		claim(syn)
	}
}

func (x *index) lookup(raw string) (Term, bool) {
	raw = strings.TrimSpace(raw)
	if pos, ok := x.byID[strings.ToUpper(raw)]; ok {
		return x.terms[pos], true
	}
	if pos, ok := x.byName[normalise(raw)]; ok {
		return x.terms[pos], true
	}
	return Term{}, false
}

// Resolve ignores resource and version; a file holds one release of one
// ontology and its version is checked when it is opened.
func (x *index) Resolve(_ context.Context, _, _, raw string) (Term, error) {
	if t, ok := x.lookup(raw); ok {
		return t, nil
	}
	return Term{}, ErrNotFound
}

func (x *index) Contains(_ context.Context, _, id string) (bool, error) {
	_, ok := x.byID[strings.ToUpper(strings.TrimSpace(id))]
	return ok, nil
}

func (x *index) Len() int {
	return len(x.terms)
}

// checkVersion fails when the file declares a release other than want.
func (x *index) checkVersion(want string) error {
	if want == "" || x.version == "" || want == x.version {
		return nil
	}
	return &VersionError{Want: want, Have: x.version}
}

// VersionError is returned when a file based resource does not carry the
// version the manifest pins.
type VersionError struct {
	Want, Have string
}

func (e *VersionError) Error() string {
	return "ontology version " + e.Have + " loaded, " + e.Want + " requested"
}
