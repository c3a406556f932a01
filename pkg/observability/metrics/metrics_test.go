package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRunAndPrometheus(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	ObserveRunStarted()
	ObserveRun(true, 2, 10, 1, 9, 120)
	ObserveIssues(map[string]int{"validation": 3, "collection": 1})
	ObserveIssues(map[string]int{"validation": 1})

	snap := Read()
	assert.Equal(t, int64(1), snap.RunsCompleted)
	assert.Equal(t, int64(10), snap.RowsCollected)
	assert.Equal(t, int64(4), snap.Issues["validation"])

	rec := httptest.NewRecorder()
	WritePrometheus(rec)
	body := rec.Body.String()
	require.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, body, "phenoxtract_records_loaded_total 9\n")
	assert.Contains(t, body, "phenoxtract_last_run_duration_milliseconds 120\n")
	assert.Contains(t, body, `phenoxtract_issues_total{kind="collection"} 1`)
	assert.Contains(t, body, `phenoxtract_issues_total{kind="validation"} 4`)
}
