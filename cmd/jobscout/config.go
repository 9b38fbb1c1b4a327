package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/jobscout/crawler"
)

// fileConfig is the YAML schema of the optional config file. Every field has
// a working default so `jobscout crawl --urls seeds.txt` runs with no config
// at all. Durations are plain seconds to keep the file format obvious.
type fileConfig struct {
	OutDir   string `yaml:"out_dir"`
	StateDir string `yaml:"state_dir"`

	Limits struct {
		JobsMax      int `yaml:"jobs_max"`
		TimeBudgetS  int `yaml:"time_budget_s"`
		PagesMax     int `yaml:"pages_max"`
		LoadMoreMax  int `yaml:"loadmore_max"`
		ScrollMax    int `yaml:"scroll_max"`
		NoChangeCap  int `yaml:"no_change_cap"`
		ContentWaitS int `yaml:"content_wait_s"`
	} `yaml:"limits"`

	Browser struct {
		RemoteURL        string   `yaml:"remote_url"`
		Headed           bool     `yaml:"headed"`
		ResourceBlocking []string `yaml:"resource_blocking"`
		UserAgents       []string `yaml:"user_agents"`
	} `yaml:"browser"`

	Reduce struct {
		MinTextLen   int     `yaml:"min_text_len"`
		TopK         int     `yaml:"top_k"`
		JobLinkBonus float64 `yaml:"job_link_bonus"`
	} `yaml:"reduce"`

	NavTimeoutS int `yaml:"nav_timeout_s"`
	NavRetries  int `yaml:"nav_retries"`
	DelayMinS   int `yaml:"delay_min_s"`
	DelayMaxS   int `yaml:"delay_max_s"`

	DB              string `yaml:"db"`
	TraceDB         string `yaml:"trace_db"`
	ObservabilityDB string `yaml:"observability_db"`

	LLM struct {
		Model         string `yaml:"model"`
		PromptFile    string `yaml:"prompt_file"`
		MaxInputChars int    `yaml:"max_input_chars"`
		Overwrite     bool   `yaml:"overwrite"`
	} `yaml:"llm"`

	Retention struct {
		HTTPLogsDays   int `yaml:"http_logs_days"`
		EventLogsDays  int `yaml:"event_logs_days"`
		HeartbeatsDays int `yaml:"heartbeats_days"`
	} `yaml:"retention"`
}

// loadConfig reads the config file at path. Empty path falls back to
// JOBSCOUT_CONFIG, then to jobscout.yaml if present, then to pure defaults.
// Env vars JOBSCOUT_DB, TRACE_DB, OBSERVABILITY_DB and OUT_DIR override the
// file values.
func loadConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}

	if path == "" {
		path = os.Getenv("JOBSCOUT_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat("jobscout.yaml"); err == nil {
			path = "jobscout.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if v := os.Getenv("JOBSCOUT_DB"); v != "" {
		cfg.DB = v
	}
	if v := os.Getenv("TRACE_DB"); v != "" {
		cfg.TraceDB = v
	}
	if v := os.Getenv("OBSERVABILITY_DB"); v != "" {
		cfg.ObservabilityDB = v
	}
	if v := os.Getenv("OUT_DIR"); v != "" {
		cfg.OutDir = v
	}

	if cfg.DB == "" {
		cfg.DB = "db/jobscout.db"
	}
	if cfg.TraceDB == "" {
		cfg.TraceDB = "db/traces.db"
	}
	if cfg.ObservabilityDB == "" {
		cfg.ObservabilityDB = "db/observability.db"
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "out"
	}
	if cfg.Retention.HTTPLogsDays == 0 {
		cfg.Retention.HTTPLogsDays = 30
	}
	if cfg.Retention.EventLogsDays == 0 {
		cfg.Retention.EventLogsDays = 90
	}
	if cfg.Retention.HeartbeatsDays == 0 {
		cfg.Retention.HeartbeatsDays = 7
	}
	return cfg, nil
}

// crawlerConfig maps the file schema onto the crawler service config.
// Zero fields stay zero; the service fills its own defaults.
func (c *fileConfig) crawlerConfig() *crawler.Config {
	out := &crawler.Config{
		OutDir:     c.OutDir,
		StateDir:   c.StateDir,
		NavTimeout: time.Duration(c.NavTimeoutS) * time.Second,
		NavRetries: c.NavRetries,
		DelayMin:   time.Duration(c.DelayMinS) * time.Second,
		DelayMax:   time.Duration(c.DelayMaxS) * time.Second,
	}

	out.Limits = crawler.Limits{
		JobsMax:     c.Limits.JobsMax,
		TimeBudget:  time.Duration(c.Limits.TimeBudgetS) * time.Second,
		PagesMax:    c.Limits.PagesMax,
		LoadMoreMax: c.Limits.LoadMoreMax,
		ScrollMax:   c.Limits.ScrollMax,
		NoChangeCap: c.Limits.NoChangeCap,
		ContentWait: time.Duration(c.Limits.ContentWaitS) * time.Second,
	}

	out.Browser.RemoteURL = c.Browser.RemoteURL
	out.Browser.Headed = c.Browser.Headed
	out.Browser.ResourceBlocking = c.Browser.ResourceBlocking
	out.Browser.UserAgents = c.Browser.UserAgents

	out.Reduce.MinTextLen = c.Reduce.MinTextLen
	out.Reduce.TopK = c.Reduce.TopK
	out.Reduce.JobLinkBonus = c.Reduce.JobLinkBonus

	return out
}
