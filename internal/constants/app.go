package constants

import (
	"time"
)

// Application identity
const (
	// AppName is used for the config directory, log file names and the metrics namespace.
	AppName = "opting"

	// DefaultDriveBaseURL - base URL of the drive proxy API when none is configured
	DefaultDriveBaseURL = "http://localhost:3000/api"

	// DefaultLoginPath - path appended to the drive base URL for the re-authentication link
	DefaultLoginPath = "/auth/drive/login"
)

// Drive request behaviour
const (
	// DriveCacheTTL - how long a non-forced drive listing may be served from the response cache
	DriveCacheTTL = 30 * time.Second

	// DriveRequestTimeout - per-request timeout for drive API calls (60 seconds)
	DriveRequestTimeout = 60 * time.Second

	// DriveMaxRetries - retries for transient drive failures (5xx, 429, transport errors).
	// 401 is never retried.
	DriveMaxRetries = 3

	// DriveRetryWaitMin / DriveRetryWaitMax bound the retryablehttp backoff
	DriveRetryWaitMin = 500 * time.Millisecond
	DriveRetryWaitMax = 5 * time.Second

	// MaxListPages - upper bound on nextPageToken pages followed for one listing
	MaxListPages = 50

	// CacheBustParam - query parameter carrying the timestamp on forced requests
	CacheBustParam = "_ts"

	// DriveRatePerSec / DriveBurstCapacity - token bucket for drive API requests.
	// The drive proxy fronts a third-party API with a per-user quota; rapid
	// navigation in the browser must not exhaust it.
	DriveRatePerSec    = 10.0
	DriveBurstCapacity = 40.0

	// RateLimitWarnAfter - waits longer than this are logged
	RateLimitWarnAfter = 2 * time.Second
)

// Object store listing
const (
	// ObjectStoreDelimiter separates "folders" in S3 keys and Azure blob names
	ObjectStoreDelimiter = "/"

	// PresignedURLExpiry - lifetime of presigned S3 download links (15 minutes)
	PresignedURLExpiry = 15 * time.Minute
)

// Record store
const (
	// DBMaxOpenConns / DBMaxIdleConns / DBConnMaxLifetime size the postgres pool
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 2
	DBConnMaxLifetime = 5 * time.Minute

	// DBQueryTimeout - timeout for one directory snapshot load
	DBQueryTimeout = 15 * time.Second
)

// Downloads
const (
	// DownloadWorkers - concurrent file downloads for the download command
	DownloadWorkers = 4
)

// Event bus
const (
	// EventBusDefaultBuffer - per-subscriber channel buffer
	EventBusDefaultBuffer = 64

	// EventBusMaxBuffer - cap on per-subscriber channel buffer
	EventBusMaxBuffer = 1024
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// ProxyWarmupTimeout - timeout for the optional proxy warmup request
	ProxyWarmupTimeout = 15 * time.Second
)
