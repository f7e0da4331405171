package cfg

import "time"

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	SourcesFile  string
	AliasesFile  string
	BaseURL      string
	Port         string
	APIAccessKey string

	// AI providers, tried in order: Gemini first, then Claude
	GeminiAPIKey string
	GeminiModel  string
	ClaudeAPIKey string
	ClaudeModel  string
	AITimeout    time.Duration

	// Fetch stage
	FetchConcurrency int
	FetchTimeout     time.Duration
	HostDelay        time.Duration

	// Classify stage
	ClassifyConcurrency int
	ClassifyBatchSize   int
	TriggerBatchSize    int
	ChunkPause          time.Duration
	GroupWindow         time.Duration
	ClaimTTL            time.Duration

	// In-process triggers, empty means disabled
	FetchSchedule    string
	ClassifySchedule string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string

	// Remaining positional arguments (command and its operands)
	Args []string
}
