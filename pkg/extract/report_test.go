package extract

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsUnwrap(t *testing.T) {
	loc := Location{Table: "t", Column: "sex", Row: 3, Value: "X"}
	err := fmt.Errorf("alias map: %w", NewValidationError(loc, ErrUnmapped, "M"))

	assert.True(t, IsValidationError(err))
	assert.False(t, IsFormatError(err))
	assert.True(t, errors.Is(err, ErrUnmapped))
	assert.Contains(t, err.Error(), `column=sex`)
	assert.Contains(t, err.Error(), "did you mean M?")

	cfg := ConfigErrorf("data_sources[0].identifier", "bad regex %q", "(")
	assert.True(t, IsConfigError(cfg))
	assert.Equal(t, KindConfig, KindOf(cfg))
}

func TestReportFlattensJoinedErrors(t *testing.T) {
	r := NewReport()
	r.Add(nil)
	r.Add(errors.Join(
		NewCollectionError(Location{Row: 1}, ErrMissingSubject),
		NewFormatError(Location{Row: 2}, ErrUnparseable),
	))
	r.Add(NewCollectionError(Location{Row: 4}, ErrMissingSubject))

	require.Equal(t, 3, r.Len())
	assert.Equal(t, 2, r.Count(KindCollection))
	assert.Equal(t, 1, r.Count(KindFormat))
	assert.Equal(t, 2, r.Issues()[1].Location.Row)

	err := r.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnparseable))
}

func TestReportMerge(t *testing.T) {
	a, b := NewReport(), NewReport()
	a.Add(NewFormatError(Location{}, ErrUnparseable))
	b.Add(NewValidationError(Location{}, ErrUnknownTerm))
	a.Merge(b)
	a.Merge(a)

	assert.Equal(t, map[Kind]int{KindFormat: 1, KindValidation: 1}, a.Counts())
	assert.NoError(t, NewReport().Err())
}
