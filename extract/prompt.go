package extract

import "os"

// defaultPrompt instructs the model to emit the PageJobs JSON shape from a
// reduced listing fragment.
const defaultPrompt = `You are an expert at parsing career and job listing websites.
Your input is a reduced fragment that contains the job listings section of a single page.

Goal:
- Extract every UNIQUE job posting.
- Preserve the same order in which jobs appear on the page.

Rules:
- Include only real jobs; ignore UI like "Load more", "Apply", "Next page", filters, or search controls.
- Deduplicate: sites sometimes render the same list twice. Consider jobs duplicates if they share
  the same job_url, requisition_id, or (title + location) pair. Keep the version with the most fields filled.
- Normalize whitespace and strip markup from text fields.
- Do not invent information that contradicts the page, but you MAY infer reasonable details
  (like seniority level or employment type) when they are implied by the title or description.

For each job, extract these fields (omit if not present), EXCEPT the seniority fields which must always be included:
- title
- job_url (absolute if available; otherwise the href as-is)
- company
- location (string or list)
- team_or_category
- employment_type
- date_posted
- requisition_id
- office_or_remote (Remote / Hybrid / Onsite)
- seniority_level: short human-readable label, e.g. "Intern", "New Grad", "Senior", "Director", or "Unknown".
- seniority_bucket: ONE of exactly: intern, entry, mid, senior, director_vp, executive, unknown.
- extra (a flat key-value map for any other clearly relevant fields)

Also include top-level metadata:
- source_url
- page_title

Output STRICTLY this JSON (no commentary, no markdown fences):

{
  "source_url": "...",
  "page_title": "...",
  "jobs": [
    {
      "title": "...",
      "job_url": "...",
      "company": "...",
      "location": "...",
      "team_or_category": "...",
      "employment_type": "...",
      "date_posted": "...",
      "requisition_id": "...",
      "office_or_remote": "...",
      "seniority_level": "...",
      "seniority_bucket": "...",
      "extra": { "...": "..." }
    }
  ]
}

If a field (other than the seniority pair) is unknown, omit it entirely. For seniority_level and
seniority_bucket, always include them; use "Unknown" / "unknown" when they cannot be inferred.`

// fixerPrompt asks the model to repair its own malformed output.
const fixerPrompt = `You will be given text that should be JSON but may be malformed.
Return ONLY valid JSON that conforms to this structure (omit unknown fields except seniority fields):
{ "source_url": "...", "page_title": "...", "jobs": [ { "title": "...", "job_url": "...",
"company": "...", "location": "...", "team_or_category": "...", "employment_type": "...",
"date_posted": "...", "requisition_id": "...", "office_or_remote": "...",
"seniority_level": "...", "seniority_bucket": "...", "extra": { } } ] }

For seniority_bucket use exactly one of: intern, entry, mid, senior, director_vp, executive, unknown.
Text:
`

// loadPrompt reads a custom prompt file, falling back to the default.
func loadPrompt(path string) string {
	if path == "" {
		return defaultPrompt
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return defaultPrompt
	}
	return string(data)
}
