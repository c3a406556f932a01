package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	runsStarted     atomic.Int64
	runsCompleted   atomic.Int64
	runsFailed      atomic.Int64
	tablesRead      atomic.Int64
	rowsCollected   atomic.Int64
	rowsSkipped     atomic.Int64
	recordsLoaded   atomic.Int64
	lastRunDuration atomic.Int64 // milliseconds

	issuesMu sync.Mutex
	issues   = map[string]int64{}
)

func ObserveRunStarted() {
	runsStarted.Add(1)
}

// ObserveRun records the outcome of one finished run.
func ObserveRun(ok bool, tables, collected, skipped, loaded int, durationMillis int64) {
	if ok {
		runsCompleted.Add(1)
	} else {
		runsFailed.Add(1)
	}
	tablesRead.Add(int64(tables))
	rowsCollected.Add(int64(collected))
	rowsSkipped.Add(int64(skipped))
	recordsLoaded.Add(int64(loaded))
	lastRunDuration.Store(durationMillis)
}

// ObserveIssues adds data issue counts keyed by error kind.
func ObserveIssues(counts map[string]int) {
	issuesMu.Lock()
	defer issuesMu.Unlock()
	for kind, n := range counts {
		issues[kind] += int64(n)
	}
}

// Snapshot is a copy of the counters, used by the CLI summary and tests.
type Snapshot struct {
	RunsStarted   int64
	RunsCompleted int64
	RunsFailed    int64
	TablesRead    int64
	RowsCollected int64
	RowsSkipped   int64
	RecordsLoaded int64
	Issues        map[string]int64
}

func Read() Snapshot {
	issuesMu.Lock()
	copied := make(map[string]int64, len(issues))
	for k, v := range issues {
		copied[k] = v
	}
	issuesMu.Unlock()
	return Snapshot{
		RunsStarted:   runsStarted.Load(),
		RunsCompleted: runsCompleted.Load(),
		RunsFailed:    runsFailed.Load(),
		TablesRead:    tablesRead.Load(),
		RowsCollected: rowsCollected.Load(),
		RowsSkipped:   rowsSkipped.Load(),
		RecordsLoaded: recordsLoaded.Load(),
		Issues:        copied,
	}
}

func Reset() {
	for _, c := range []*atomic.Int64{&runsStarted, &runsCompleted, &runsFailed, &tablesRead,
		&rowsCollected, &rowsSkipped, &recordsLoaded, &lastRunDuration} {
		c.Store(0)
	}
	issuesMu.Lock()
	issues = map[string]int64{}
	issuesMu.Unlock()
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	writeText(w)
}

func writeText(w io.Writer) {
	counter(w, "phenoxtract_runs_started_total", "Number of extraction runs started.", runsStarted.Load())
	counter(w, "phenoxtract_runs_completed_total", "Number of extraction runs that loaded their output.", runsCompleted.Load())
	counter(w, "phenoxtract_runs_failed_total", "Number of extraction runs aborted by a fatal error.", runsFailed.Load())
	counter(w, "phenoxtract_tables_read_total", "Number of source tables read.", tablesRead.Load())
	counter(w, "phenoxtract_rows_collected_total", "Number of table rows folded into patient records.", rowsCollected.Load())
	counter(w, "phenoxtract_rows_skipped_total", "Number of table rows skipped for lack of a subject.", rowsSkipped.Load())
	counter(w, "phenoxtract_records_loaded_total", "Number of phenopackets handed to loaders.", recordsLoaded.Load())

	fmt.Fprintf(w, "# HELP phenoxtract_last_run_duration_milliseconds Wall time of the latest run.\n")
	fmt.Fprintf(w, "# TYPE phenoxtract_last_run_duration_milliseconds gauge\n")
	fmt.Fprintf(w, "phenoxtract_last_run_duration_milliseconds %d\n", lastRunDuration.Load())

	snap := Read()
	kinds := make([]string, 0, len(snap.Issues))
	for k := range snap.Issues {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	fmt.Fprintf(w, "# HELP phenoxtract_issues_total Data issues reported, by error kind.\n")
	fmt.Fprintf(w, "# TYPE phenoxtract_issues_total counter\n")
	for _, k := range kinds {
		fmt.Fprintf(w, "phenoxtract_issues_total{kind=%q} %d\n", k, snap.Issues[k])
	}
}

func counter(w io.Writer, name, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, v)
}
