package linkrefresh

import (
	logx "lawly-scheduler/pkg/logx"
)

// Report summarizes one link refresh run.
type Report struct {
	// Templates is how many templates carried at least one link.
	Templates int `json:"templates"`

	// Updated is how many template rows were written.
	Updated int `json:"updated"`

	// Refreshed counts links re-signed in place.
	Refreshed int `json:"refreshed"`

	// Reuploaded counts links whose object had to be stored again.
	Reuploaded int `json:"reuploaded"`

	// Deleted counts replaced objects removed from the store.
	Deleted int `json:"deleted"`

	// Skipped counts template updates withheld by dry-run.
	Skipped int `json:"skipped"`

	// Failed counts links and template updates that failed.
	Failed int `json:"failed"`
}

// Fields renders the report for structured logging.
func (r Report) Fields() []logx.Field {
	return []logx.Field{
		logx.Int("templates", r.Templates),
		logx.Int("updated", r.Updated),
		logx.Int("refreshed", r.Refreshed),
		logx.Int("reuploaded", r.Reuploaded),
		logx.Int("deleted", r.Deleted),
		logx.Int("skipped", r.Skipped),
		logx.Int("failed", r.Failed),
	}
}
