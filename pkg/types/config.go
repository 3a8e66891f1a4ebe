// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "expert-db/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// CrawlConfig holds settings for the interval crawl planner. The planner
// makes no HTTP calls itself; transport settings live on PubMedConfig.
type CrawlConfig struct {
	// PageSize is the number of results per listing page (default 200).
	PageSize int `json:"page_size" yaml:"page_size"`

	// MaxPages caps how many pages of one interval are fetched
	// (default 50). Pages beyond the cap are not attempted even when the
	// result count implies more.
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// SplitThreshold is the result count above which an interval is
	// subdivided instead of paged (default 10000).
	SplitThreshold int `json:"split_threshold" yaml:"split_threshold"`

	// PageDelay is the base delay between page fetches; a random jitter
	// of up to PageJitter is added (defaults 2s / 1s).
	PageDelay  time.Duration `json:"page_delay" yaml:"page_delay"`
	PageJitter time.Duration `json:"page_jitter" yaml:"page_jitter"`

	// GapPolicy selects what happens when a single-day interval still
	// exceeds the page cap and results are truncated: "warn" records the
	// gap and continues, "fail" aborts the run.
	GapPolicy string `json:"gap_policy" yaml:"gap_policy"`
}

// Gap policies for CrawlConfig.GapPolicy.
const (
	GapWarn = "warn"
	GapFail = "fail"
)

// PubMedConfig holds settings for the NCBI E-utilities client.
type PubMedConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the E-utilities endpoint. Defaults to the NCBI service.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey raises the rate limit from 3 to 10 requests per second.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Email is sent with every request, as NCBI asks of heavy users.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// RateLimit is the sustained request rate per second (default 3,
	// or 10 when an API key is set). Burst defaults to the same value.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`
	Burst     int     `json:"burst" yaml:"burst"`

	// BatchSize caps identifiers per term-fetch batch (default 500).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// BatchDelay is the pacing delay between term-fetch batches.
	BatchDelay time.Duration `json:"batch_delay" yaml:"batch_delay"`
}

// EnrichConfig holds settings for the enrichment scheduler.
type EnrichConfig struct {
	// CheckpointEvery flushes the partial table to the checkpoint file
	// after this many processed entities (default 5).
	CheckpointEvery int `json:"checkpoint_every" yaml:"checkpoint_every"`

	// Workers bounds the concurrent oracle calls of the geography pass
	// (default 4). The other passes are sequential.
	Workers int `json:"workers" yaml:"workers"`

	// Limit restricts how many entities one run processes; 0 means all.
	// Used by the --limit test toggle.
	Limit int `json:"limit" yaml:"limit"`

	// CallDelay is the pacing delay between sequential oracle calls.
	CallDelay time.Duration `json:"call_delay" yaml:"call_delay"`
}

// ResolveConfig holds settings for the author identity resolver.
type ResolveConfig struct {
	// PairDelay is the fixed delay between judgment oracle calls.
	PairDelay time.Duration `json:"pair_delay" yaml:"pair_delay"`

	// CheckpointEvery flushes resolved authors to the checkpoint file
	// after this many author names (default 5).
	CheckpointEvery int `json:"checkpoint_every" yaml:"checkpoint_every"`
}

// CombineConfig holds settings for keyword reconciliation. The threshold
// and the keep-keyword-over-vocabulary policy were tuned empirically on the
// pediatric surgery corpus; they are configuration, not derived values.
type CombineConfig struct {
	// SimilarityThreshold is the minimum Ratcliff/Obershelp ratio for two
	// normalized terms to count as matching (default 0.6).
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`

	// MaxTerms caps the reconciled list (default 5).
	MaxTerms int `json:"max_terms" yaml:"max_terms"`

	// ExcludeTerms lists terms (and their near-matches) dropped from both
	// sources before reconciliation.
	ExcludeTerms []string `json:"exclude_terms" yaml:"exclude_terms"`
}

// DefaultExcludeTerms is the exclusion list used when none is configured:
// study-design and demographic vocabulary too generic to characterize a paper.
var DefaultExcludeTerms = []string{
	"Pediatric Patients",
	"Child",
	"Male",
	"Female",
	"Humans",
	"Childs",
	"postoperative complications",
	"Retrospective Studies",
	"Treatment Outcome",
	"Child, Preschool",
	"Infant, Newborn",
	"Prospective Studies",
	"Follow-Up Studies",
	"Specialties, Surgical",
	"Surveys and Questionnaires",
	"Surgical Procedures, Operative",
	"Adolescent",
	"Infant",
	"Length of stay",
	"Risk Factors",
	"United States",
	"Quality of Life",
}

// LLMConfig holds settings for the local generation model used as the
// semantic judgment oracle.
type LLMConfig struct {
	// Endpoint is the model server base URL (e.g. "http://localhost:11434").
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Model is the model identifier (e.g. "deepseek-r1:70b").
	Model string `json:"model" yaml:"model"`

	// Temperature is passed through to generation (default 0.1).
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// Timeout is the per-call timeout; generation can be slow (default 5m).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries bounds retries of a failed or non-conforming call
	// (default 3), with RetryDelay between attempts.
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`
}

// StatsConfig holds settings for the analysis store.
type StatsConfig struct {
	// MaxResults is the default row cap for aggregation queries (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	// OutputDir is the base directory for snapshots, rosters, checkpoints
	// and the analysis database (default "output").
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// AuditLog is the path of the structured run log. Empty means
	// OutputDir/audit.log; the literal "none" disables it.
	AuditLog string `json:"audit_log" yaml:"audit_log"`

	Crawl   CrawlConfig   `json:"crawl" yaml:"crawl"`
	PubMed  PubMedConfig  `json:"pubmed" yaml:"pubmed"`
	Enrich  EnrichConfig  `json:"enrich" yaml:"enrich"`
	Resolve ResolveConfig `json:"resolve" yaml:"resolve"`
	Combine CombineConfig `json:"combine" yaml:"combine"`
	LLM     LLMConfig     `json:"llm" yaml:"llm"`
	Stats   StatsConfig   `json:"stats" yaml:"stats"`
}
