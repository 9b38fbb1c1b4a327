package extract

import (
	"encoding/json"
	"strings"
)

// Job is one posting extracted from a captured page. Seniority fields are
// always present; everything else is omitted when unknown.
type Job struct {
	Title           string         `json:"title,omitempty"`
	JobURL          string         `json:"job_url,omitempty"`
	Company         string         `json:"company,omitempty"`
	Location        FlexString     `json:"location,omitempty"`
	TeamOrCategory  string         `json:"team_or_category,omitempty"`
	EmploymentType  string         `json:"employment_type,omitempty"`
	DatePosted      string         `json:"date_posted,omitempty"`
	RequisitionID   string         `json:"requisition_id,omitempty"`
	OfficeOrRemote  string         `json:"office_or_remote,omitempty"`
	SeniorityLevel  string         `json:"seniority_level"`
	SeniorityBucket string         `json:"seniority_bucket"`
	Extra           map[string]any `json:"extra,omitempty"`
}

// PageJobs is the extraction result for one captured page.
type PageJobs struct {
	SourceURL string `json:"source_url"`
	PageTitle string `json:"page_title"`
	Jobs      []*Job `json:"jobs"`
	Error     string `json:"error,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// DedupeStats reports what dedup did to one page's job list.
type DedupeStats struct {
	InputJobs         int `json:"input_jobs"`
	DedupedOut        int `json:"deduped_out"`
	DuplicatesRemoved int `json:"duplicates_removed"`
}

// FlexString decodes a JSON string or array of strings into one string.
// Models emit location both ways; arrays join with ", ".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	var parts []string
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	*f = FlexString(strings.Join(parts, ", "))
	return nil
}

func (f FlexString) String() string { return string(f) }
