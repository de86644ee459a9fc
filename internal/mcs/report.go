package mcs

import "sync"

// RecordError is a record that was attempted but failed to migrate.
type RecordError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Report is the result of one migration run.
type Report struct {
	Total               int           `json:"total"`
	Migrated            int           `json:"migrated"`
	Skipped             int           `json:"skipped"`
	SkippedNotLocalURL  int           `json:"skipped_not_local_url"`
	SkippedNoURLOrCloud int           `json:"skipped_no_url_or_cloud"`
	SkippedFileNotFound int           `json:"skipped_file_not_found"`
	SkippedOther        int           `json:"skipped_other"`
	Errors              []RecordError `json:"errors"`
}

// Balanced reports whether every examined record landed in exactly one bucket.
func (r *Report) Balanced() bool {
	sum := r.Migrated + r.SkippedNotLocalURL + r.SkippedNoURLOrCloud + r.SkippedFileNotFound + r.SkippedOther + len(r.Errors)
	return sum == r.Total && r.Skipped == r.SkippedNotLocalURL+r.SkippedNoURLOrCloud+r.SkippedFileNotFound+r.SkippedOther
}

// collector accumulates a Report from concurrent workers.
type collector struct {
	mu     sync.Mutex
	report Report
}

func newCollector() *collector {
	return &collector{report: Report{Errors: []RecordError{}}}
}

// add counts a record that finished with outcome.
func (c *collector) add(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.report.Total++
	switch o {
	case OutcomeMigrate:
		c.report.Migrated++
	case OutcomeSkipNotLocalURL:
		c.report.SkippedNotLocalURL++
	case OutcomeSkipNoURLOrCloud:
		c.report.SkippedNoURLOrCloud++
	case OutcomeSkipFileNotFound:
		c.report.SkippedFileNotFound++
	default:
		c.report.SkippedOther++
	}
}

// fail counts a record whose migration was attempted and failed.
func (c *collector) fail(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.report.Total++
	c.report.Errors = append(c.report.Errors, RecordError{File: id, Error: err.Error()})
}

// finish returns a copy of the accumulated report with Skipped filled in.
func (c *collector) finish() *Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.report
	r.Skipped = r.SkippedNotLocalURL + r.SkippedNoURLOrCloud + r.SkippedFileNotFound + r.SkippedOther
	r.Errors = append([]RecordError{}, c.report.Errors...)
	return &r
}
