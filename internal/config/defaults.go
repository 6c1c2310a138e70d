package config

// Server defaults.
const (
	// DefaultServerAddr is the default HTTP listen address.
	DefaultServerAddr = ":8080"
	// DefaultServerReadTimeout bounds request header+body reads.
	DefaultServerReadTimeout = "30s"
	// DefaultServerWriteTimeout bounds response writes.
	DefaultServerWriteTimeout = "60s"
	// DefaultServerShutdownTimeout bounds graceful shutdown.
	DefaultServerShutdownTimeout = "15s"
)

// Pipeline defaults.
const (
	// DefaultPipelineWorkers is the default analysis worker pool size.
	DefaultPipelineWorkers = 2
	// DefaultPipelineWorkDir is the scratch directory for clones.
	DefaultPipelineWorkDir = "/tmp/repograde"
	// DefaultCloneTimeout bounds a single repository clone.
	DefaultCloneTimeout = "5m"
	// DefaultNodeTimeout bounds a single pipeline node.
	DefaultNodeTimeout = "3m"
)

// Analysis defaults.
const (
	// DefaultMaxCommits caps commit history scanning.
	DefaultMaxCommits = 5000
	// DefaultMaxFileBytes caps per-file reads during scanning (1 MB).
	DefaultMaxFileBytes = 1 << 20
	// DefaultMaxCompareFiles caps the pairwise clone comparison set;
	// the comparison pass is quadratic in this value.
	DefaultMaxCompareFiles = 20
	// DefaultSecurityPerLeak is the score penalty per detected leak.
	DefaultSecurityPerLeak = 10
	// DefaultSecurityFloor is the minimum security score.
	DefaultSecurityFloor = 20
	// DefaultSecurityMaxDrop caps the total leak penalty.
	DefaultSecurityMaxDrop = 80
	// DefaultOriginTokenNorm is the token count at which the AI-origin
	// confidence factor saturates.
	DefaultOriginTokenNorm = 2000
	// DefaultOriginEntropyMid is the entropy midpoint of the AI-origin sigmoid.
	DefaultOriginEntropyMid = 6.0
)

// Judge defaults.
const (
	// DefaultJudgeModel is the Gemini model used for verdicts.
	DefaultJudgeModel = "gemini-2.0-flash"
	// DefaultJudgeTimeout bounds a judge call.
	DefaultJudgeTimeout = "2m"
	// DefaultJudgeSummaryLimit caps the repo summary sent to the judge.
	DefaultJudgeSummaryLimit = 40000
)

// Store and cache defaults.
const (
	// DefaultStorePath is the SQLite database path.
	DefaultStorePath = "repograde.db"
	// DefaultCacheListTTL is the list/stats cache TTL in seconds.
	DefaultCacheListTTL = 30
	// DefaultCacheDetailTTL is the project detail cache TTL in seconds.
	DefaultCacheDetailTTL = 300
	// DefaultCacheChartTTL is the chart cache TTL in seconds.
	DefaultCacheChartTTL = 60
	// DefaultCacheMaxEntries bounds the response cache entry count.
	DefaultCacheMaxEntries = 1024
)

// Logging defaults.
const (
	// DefaultLogLevel is the default slog level.
	DefaultLogLevel = "info"
	// DefaultLogFormat selects the text handler.
	DefaultLogFormat = "text"
)
