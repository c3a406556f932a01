package main

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/synaptica-ai/phenoxtract/pkg/common/models"
	"github.com/synaptica-ai/phenoxtract/pkg/extract"
	"github.com/synaptica-ai/phenoxtract/pkg/pipeline"
)

func TestPrintReportLimitsIssues(t *testing.T) {
	report := extract.NewReport()
	for i := 1; i <= 3; i++ {
		report.Add(extract.NewCollectionError(extract.Location{Table: "patients", Row: i}, extract.ErrMissingSubject))
	}
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res := &pipeline.Result{
		Report: report,
		Summary: models.RunSummary{
			RunID:      "r1",
			Cohort:     "my_cohort",
			Tables:     1,
			Patients:   2,
			Packets:    2,
			Issues:     map[string]int{"collection": 3},
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
		},
	}

	var buf bytes.Buffer
	printReport(&buf, res, 2)
	out := buf.String()

	assert.Contains(t, out, "my_cohort")
	assert.Contains(t, out, "table=patients row=1")
	assert.Contains(t, out, "table=patients row=2")
	assert.NotContains(t, out, "table=patients row=3")
	assert.Contains(t, out, fmt.Sprintf("%d more issues not shown", 1))
}

func TestVersionParses(t *testing.T) {
	assert.NotZero(t, progVersion.Major+progVersion.Minor+progVersion.Patch)
}
