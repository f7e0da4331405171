package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./newsdesk.db" description:"SQLite database file"`

	// Application configuration
	SourcesFile  string `long:"sources-file" env:"SOURCES_FILE" default:"./configs/sources.yml" description:"YAML file listing upstream news sources"`
	AliasesFile  string `long:"aliases-file" env:"ALIASES_FILE" description:"YAML seed file with tickers and their aliases (optional)"`
	BaseURL      string `long:"base-url" env:"BASE_URL" description:"Public base URL used in generated feed links (optional)"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for read endpoints (optional)"`

	// AI providers
	GeminiAPIKey string `long:"gemini-api-key" env:"GEMINI_API_KEY" description:"Gemini API key (optional)"`
	GeminiModel  string `long:"gemini-model" env:"GEMINI_MODEL" default:"gemini-2.5-flash" description:"Gemini model name"`
	ClaudeAPIKey string `long:"claude-api-key" env:"ANTHROPIC_API_KEY" description:"Anthropic API key used as fallback provider (optional)"`
	ClaudeModel  string `long:"claude-model" env:"CLAUDE_MODEL" default:"claude-haiku-4-5" description:"Claude model name"`
	AITimeout    int    `long:"ai-timeout" env:"AI_TIMEOUT" default:"30" description:"Timeout for a single AI call in seconds"`

	// Fetch stage
	FetchConcurrency int `long:"fetch-concurrency" env:"FETCH_CONCURRENCY" default:"5" description:"Number of concurrent feed fetches"`
	FetchTimeout     int `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"15" description:"Default feed fetch timeout in seconds"`
	HostDelay        int `long:"host-delay" env:"HOST_DELAY" default:"1000" description:"Minimum delay between requests to the same host in milliseconds"`

	// Classify stage
	ClassifyConcurrency int `long:"classify-concurrency" env:"CLASSIFY_CONCURRENCY" default:"5" description:"Number of items classified concurrently"`
	ClassifyBatchSize   int `long:"classify-batch" env:"CLASSIFY_BATCH" default:"50" description:"Items claimed by a periodic classify run"`
	TriggerBatchSize    int `long:"trigger-batch" env:"TRIGGER_BATCH" default:"10" description:"Items claimed by a trigger-mode classify run"`
	ChunkPause          int `long:"chunk-pause" env:"CHUNK_PAUSE" default:"1000" description:"Pause between classification chunks in milliseconds"`
	GroupWindow         int `long:"group-window" env:"GROUP_WINDOW" default:"120" description:"Event grouping window in minutes (applied on both sides)"`
	ClaimTTL            int `long:"claim-ttl" env:"CLAIM_TTL" default:"15" description:"Minutes after which an unfinished claim can be taken over"`

	// In-process triggers
	FetchSchedule    string `long:"fetch-schedule" env:"FETCH_SCHEDULE" description:"Cron spec for the fetch job when running serve (optional)"`
	ClassifySchedule string `long:"classify-schedule" env:"CLASSIFY_SCHEDULE" description:"Cron spec for the classify job when running serve (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Newsdesk/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Europe/Warsaw)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments; nil means os.Args[1:].
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	parser.Usage = "[OPTIONS] [serve | run fetch-news | run classify-news]"

	var rest []string
	var err error
	if args == nil {
		rest, err = parser.Parse()
	} else {
		rest, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:              raw.DBPath,
		SourcesFile:         raw.SourcesFile,
		AliasesFile:         raw.AliasesFile,
		BaseURL:             raw.BaseURL,
		Port:                raw.Port,
		APIAccessKey:        raw.APIAccessKey,
		GeminiAPIKey:        raw.GeminiAPIKey,
		GeminiModel:         raw.GeminiModel,
		ClaudeAPIKey:        raw.ClaudeAPIKey,
		ClaudeModel:         raw.ClaudeModel,
		AITimeout:           time.Duration(raw.AITimeout) * time.Second,
		FetchConcurrency:    raw.FetchConcurrency,
		FetchTimeout:        time.Duration(raw.FetchTimeout) * time.Second,
		HostDelay:           time.Duration(raw.HostDelay) * time.Millisecond,
		ClassifyConcurrency: raw.ClassifyConcurrency,
		ClassifyBatchSize:   raw.ClassifyBatchSize,
		TriggerBatchSize:    raw.TriggerBatchSize,
		ChunkPause:          time.Duration(raw.ChunkPause) * time.Millisecond,
		GroupWindow:         time.Duration(raw.GroupWindow) * time.Minute,
		ClaimTTL:            time.Duration(raw.ClaimTTL) * time.Minute,
		FetchSchedule:       raw.FetchSchedule,
		ClassifySchedule:    raw.ClassifySchedule,
		UserAgent:           raw.UserAgent,
		Timezone:            raw.Timezone,
		Debug:               raw.Debug,
		Version:             GetVersion(),
		Args:                rest,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func (c *Cfg) validate() error {
	positiveFields := map[string]int{
		"fetch concurrency":    c.FetchConcurrency,
		"classify concurrency": c.ClassifyConcurrency,
		"classify batch":       c.ClassifyBatchSize,
		"trigger batch":        c.TriggerBatchSize,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	if c.GroupWindow <= 0 {
		return fmt.Errorf("group window must be positive")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
