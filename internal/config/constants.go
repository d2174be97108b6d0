package config

import "time"

// Timeout constants
const (
	DefaultHTTPTimeout      = 60 * time.Second
	ServerShutdownTimeout   = 30 * time.Second
	WorkerShutdownTimeout   = 30 * time.Second
	TelemetryFlushTimeout   = 5 * time.Second
	RedisDialTimeout        = 5 * time.Second
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Worker intervals
	DefaultSweepInterval = 24 * time.Hour
	DefaultSweepLockTTL  = 30 * time.Minute
)

// Server defaults
const (
	DefaultServerPort       = "8080"
	DefaultWorkerPort       = "8081"
	DefaultWorkerMaxHistory = 50
	DefaultMaxOpenConns     = 25
	DefaultMaxIdleConns     = 5
)

// Report engine defaults
const (
	DefaultRetentionDays          = 90
	DefaultScrubberBotID          = "app_feedback_report_scrubber_bot"
	DefaultMaxIDGenerationRetries = 10
	DefaultMaxStatsTxRetries      = 5
	DefaultRedisKeyPrefix         = "appfeedback"
)

// Security configuration constants
const (
	DefaultCSP = "default-src 'none'; frame-ancestors 'none'"
)

// Request limits
const (
	// MaxReportPayloadBytes bounds the body of a report submission
	MaxReportPayloadBytes = 1 << 20
)
