package extract

import (
	"regexp"
	"strings"
)

var wsRe = regexp.MustCompile(`\s+`)

func collapseWS(s string) string {
	return strings.TrimSpace(wsRe.ReplaceAllString(s, " "))
}

// seniorityBuckets is the closed set of canonical bucket values.
var seniorityBuckets = map[string]bool{
	"intern": true, "entry": true, "mid": true, "senior": true,
	"director_vp": true, "executive": true, "unknown": true,
}

// bucketAliases maps the labels models actually emit onto canonical buckets.
var bucketAliases = map[string]string{
	"internship": "intern", "co-op": "intern", "coop": "intern",
	"new grad": "entry", "new_grad": "entry", "junior": "entry", "jr": "entry",
	"mid-level": "mid", "mid level": "mid", "midlevel": "mid",
	"sr": "senior", "staff": "senior", "principal": "senior",
	"director": "director_vp", "vp": "director_vp",
	"vice president": "director_vp", "head": "director_vp",
	"cxo": "executive", "c-level": "executive", "c level": "executive",
	"ceo": "executive", "cto": "executive", "cfo": "executive",
}

// normalizeSeniority forces the seniority pair onto canonical values. The
// bucket collapses to the closed set; the level keeps the model's label or
// falls back to "Unknown".
func normalizeSeniority(j *Job) {
	raw := strings.ToLower(strings.TrimSpace(j.SeniorityBucket))
	bucket := ""
	if raw != "" {
		if seniorityBuckets[raw] {
			bucket = raw
		} else if alias, ok := bucketAliases[raw]; ok {
			bucket = alias
		}
	}
	if bucket == "" {
		bucket = "unknown"
	}
	j.SeniorityBucket = bucket

	if strings.TrimSpace(j.SeniorityLevel) == "" {
		j.SeniorityLevel = "Unknown"
	}
}

// normalizeJob trims whitespace everywhere and normalizes seniority.
func normalizeJob(j *Job) {
	j.Title = collapseWS(j.Title)
	j.JobURL = collapseWS(j.JobURL)
	j.Company = collapseWS(j.Company)
	j.Location = FlexString(collapseWS(string(j.Location)))
	j.TeamOrCategory = collapseWS(j.TeamOrCategory)
	j.EmploymentType = collapseWS(j.EmploymentType)
	j.DatePosted = collapseWS(j.DatePosted)
	j.RequisitionID = collapseWS(j.RequisitionID)
	j.OfficeOrRemote = collapseWS(j.OfficeOrRemote)
	j.SeniorityLevel = collapseWS(j.SeniorityLevel)
	normalizeSeniority(j)

	for k, v := range j.Extra {
		if s, ok := v.(string); ok {
			s = collapseWS(s)
			if s == "" {
				delete(j.Extra, k)
				continue
			}
			j.Extra[k] = s
		}
	}
	if len(j.Extra) == 0 {
		j.Extra = nil
	}
}

// richness counts filled fields; dedup keeps the richer duplicate.
func richness(j *Job) int {
	score := 0
	for _, v := range []string{
		j.Title, j.JobURL, j.Company, string(j.Location), j.TeamOrCategory,
		j.EmploymentType, j.DatePosted, j.RequisitionID, j.OfficeOrRemote,
		j.SeniorityLevel, j.SeniorityBucket,
	} {
		if v != "" {
			score++
		}
	}
	if n := len(j.Extra); n > 0 {
		if n > 3 {
			n = 3
		}
		score += n
	}
	return score
}

// signature identifies a job for dedup: URL wins, then requisition id, then
// title+location.
func signature(j *Job) string {
	if url := strings.ToLower(j.JobURL); url != "" {
		return "url::" + url
	}
	if rid := strings.ToLower(j.RequisitionID); rid != "" {
		return "rid::" + rid
	}
	return "tl::" + strings.ToLower(j.Title) + "@@" + strings.ToLower(string(j.Location))
}

// NormalizeAndDedupe cleans a page's extracted jobs in place: whitespace
// collapse, seniority canonicalization, and order-preserving dedup that
// keeps the richest duplicate.
func NormalizeAndDedupe(page *PageJobs) DedupeStats {
	page.SourceURL = collapseWS(page.SourceURL)
	page.PageTitle = collapseWS(page.PageTitle)

	stats := DedupeStats{InputJobs: len(page.Jobs)}
	seen := make(map[string]int) // signature -> index in out
	var out []*Job

	for _, j := range page.Jobs {
		if j == nil {
			continue
		}
		normalizeJob(j)
		sig := signature(j)
		if i, dup := seen[sig]; dup {
			stats.DuplicatesRemoved++
			if richness(j) > richness(out[i]) {
				out[i] = j
			}
			continue
		}
		seen[sig] = len(out)
		out = append(out, j)
	}

	page.Jobs = out
	stats.DedupedOut = len(out)
	return stats
}
