package store

// Schema is the complete jobscout run-bookkeeping schema.
const Schema = `
-- Crawl runs (one per Crawl invocation)
CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    seeds       INTEGER NOT NULL DEFAULT 0,
    completed   INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0,
    started_at  INTEGER NOT NULL,
    finished_at INTEGER
);

-- One manifest per seed per run
CREATE TABLE IF NOT EXISTS manifests (
    run_id      TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    seed        TEXT NOT NULL,
    domain      TEXT NOT NULL,
    seed_base   TEXT NOT NULL,
    mode        TEXT NOT NULL DEFAULT '',
    stop_reason TEXT NOT NULL DEFAULT '',
    pages       INTEGER NOT NULL DEFAULT 0,
    unique_jobs INTEGER NOT NULL DEFAULT 0,
    error_kind  TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    PRIMARY KEY (run_id, domain, seed_base)
);
CREATE INDEX IF NOT EXISTS idx_manifests_domain ON manifests(domain, created_at DESC);

-- Captured pages, in capture order
CREATE TABLE IF NOT EXISTS pages (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id        TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    domain        TEXT NOT NULL,
    page_id       TEXT NOT NULL,
    url           TEXT NOT NULL DEFAULT '',
    effective_url TEXT NOT NULL DEFAULT '',
    title         TEXT NOT NULL DEFAULT '',
    content_hash  TEXT NOT NULL DEFAULT '',
    unique_jobs   INTEGER NOT NULL DEFAULT 0,
    list_len      INTEGER NOT NULL DEFAULT 0,
    captured_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id, domain);

-- Distinct job links seen per domain per run
CREATE TABLE IF NOT EXISTS job_links (
    run_id        TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    domain        TEXT NOT NULL,
    url           TEXT NOT NULL,
    first_page_id TEXT NOT NULL DEFAULT '',
    seen_at       INTEGER NOT NULL,
    PRIMARY KEY (run_id, domain, url)
);
CREATE INDEX IF NOT EXISTS idx_job_links_domain ON job_links(domain, seen_at DESC);
`
