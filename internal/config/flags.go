package config

import (
	"flag"
	"time"
)

// ParseFlags parses all configuration flags.
//
// Flags:
//
//	-remote-url remote sync endpoint base URL
//	-health-path health probe path relative to the base URL
//	-request-timeout outbound request timeout (e.g., "15s")
//	-storage-backend snapshot backend, "file" or "sqlite"
//	-f snapshot file path (file backend)
//	-d database DSN (sqlite backend)
//	-batch-size maximum operations per sync request
//	-max-retries delivery attempt budget per operation
//	-debounce quiet period after a local mutation (e.g., "2s")
//	-sync-interval periodic sync cadence (e.g., "5m")
//	-probe-interval connectivity probe cadence (e.g., "30s")
//	-log-path engine log file path
//	-c/-config json file path with configs
func ParseFlags() *StructuredConfig {
	var remoteURL string
	var healthPath string
	var requestTimeout time.Duration
	var storageBackend string
	var snapshotPath string
	var databaseDSN string
	var batchSize int
	var maxRetries int
	var debounce time.Duration
	var syncInterval time.Duration
	var probeInterval time.Duration
	var logPath string
	var jsonConfigPath string

	flag.StringVar(&remoteURL, "remote-url", "", "Remote sync endpoint base URL")
	flag.StringVar(&healthPath, "health-path", "", "Health probe path")
	flag.DurationVar(&requestTimeout, "request-timeout", 0, "Request timeout (e.g., 15s)")
	flag.StringVar(&storageBackend, "storage-backend", "", "Snapshot backend: file or sqlite")
	flag.StringVar(&snapshotPath, "f", "", "Snapshot file path")
	flag.StringVar(&databaseDSN, "d", "", "Database DSN")
	flag.IntVar(&batchSize, "batch-size", 0, "Maximum operations per sync request")
	flag.IntVar(&maxRetries, "max-retries", 0, "Delivery attempts per operation")
	flag.DurationVar(&debounce, "debounce", 0, "Mutation debounce window (e.g., 2s)")
	flag.DurationVar(&syncInterval, "sync-interval", 0, "Periodic sync cadence (e.g., 5m)")
	flag.DurationVar(&probeInterval, "probe-interval", 0, "Connectivity probe cadence (e.g., 30s)")
	flag.StringVar(&logPath, "log-path", "", "Engine log file path")
	flag.StringVar(&jsonConfigPath, "c", "", "JSON config file path")
	flag.StringVar(&jsonConfigPath, "config", "", "JSON config file path (alias)")

	flag.Parse()

	return &StructuredConfig{
		Remote: Remote{
			BaseURL:        remoteURL,
			HealthPath:     healthPath,
			RequestTimeout: requestTimeout,
		},
		Storage: Storage{
			Backend: storageBackend,
			File:    FileStore{Path: snapshotPath},
			DB:      DB{DSN: databaseDSN},
		},
		Sync: Sync{
			BatchSize:  batchSize,
			MaxRetries: maxRetries,
			Debounce:   debounce,
			Interval:   syncInterval,
		},
		Network: Network{
			ProbeInterval: probeInterval,
		},
		LogPath:      logPath,
		JSONFilePath: jsonConfigPath,
	}
}
