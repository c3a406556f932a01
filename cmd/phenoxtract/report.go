package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/synaptica-ai/phenoxtract/pkg/pipeline"
)

// printReport renders the run summary and up to limit issues.
func printReport(w io.Writer, res *pipeline.Result, limit int) {
	s := res.Summary

	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"run", "cohort", "tables", "patients", "packets", "issues", "duration"})
	tw.Append([]string{
		s.RunID,
		s.Cohort,
		strconv.Itoa(s.Tables),
		strconv.Itoa(s.Patients),
		strconv.Itoa(s.Packets),
		strconv.Itoa(s.TotalIssues()),
		s.Duration().String(),
	})
	tw.Render()

	if len(s.Issues) == 0 {
		return
	}

	kinds := make([]string, 0, len(s.Issues))
	for k := range s.Issues {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	fmt.Fprintln(w)
	tw = tablewriter.NewWriter(w)
	tw.SetHeader([]string{"kind", "count"})
	for _, k := range kinds {
		tw.Append([]string{k, strconv.Itoa(s.Issues[k])})
	}
	tw.Render()

	issues := res.Report.Issues()
	fmt.Fprintln(w)
	tw = tablewriter.NewWriter(w)
	tw.SetHeader([]string{"kind", "issue"})
	tw.SetAutoWrapText(false)
	for i, issue := range issues {
		if limit > 0 && i == limit {
			break
		}
		tw.Append([]string{string(issue.Kind), issue.Message})
	}
	tw.Render()
	if limit > 0 && len(issues) > limit {
		fmt.Fprintf(w, "%d more issues not shown\n", len(issues)-limit)
	}
}
