package maintenance

import "fmt"

// maxReportErrors bounds the error details kept in a report
const maxReportErrors = 50

// Report summarizes one job run
type Report struct {
	Job         string   `json:"job"`
	Processed   int      `json:"processed"`
	Updated     int      `json:"updated"`
	Skipped     int      `json:"skipped"`
	Failed      int      `json:"failed"`
	Errors      []string `json:"errors,omitempty"`
	IsTruncated bool     `json:"is_truncated,omitempty"`
}

func newReport(job string) *Report {
	return &Report{Job: job}
}

func (r *Report) fail(format string, args ...any) {
	r.Failed++
	if len(r.Errors) >= maxReportErrors {
		r.IsTruncated = true
		return
	}
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}
