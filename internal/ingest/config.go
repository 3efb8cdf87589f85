package ingest

import "time"

// Config contains configuration options that allow
// customization of how Reel detects files to auto-import.
type Config struct {
	// The directories the service should monitor for new files. Each
	// directory is watched recursively.
	IngestPaths []string `yaml:"paths" env:"INGEST_PATHS" env-separator:","`

	// The IngestService uses a directory watcher, but a
	// 'force' sync can be performed on a regular interval
	// to protect against the watcher failing. A negative value
	// disables the forced sync.
	ForceSyncSeconds int `yaml:"force_sync_seconds" env:"INGEST_FORCE_SYNC_SECONDS" env-default:"300"`

	// An array of regular expressions that can be used to RESTRICT
	// the files processed by this service. If any expression matches
	// the name of the file, it is ignored.
	Blacklist []string `yaml:"blacklist" env:"INGEST_BLACKLIST" env-separator:","`

	// When a new file is detected, it's likely to be an in-progress
	// copy or download. As we cannot KNOW when the copy is complete,
	// we instead wait for the 'modtime' of the item to be at least
	// this long in the past before importing it.
	RequiredModTimeAgeSeconds int `yaml:"required_modtime_age_seconds" env:"INGEST_MODTIME_THRESHOLD_SECONDS" env-default:"60"`

	// Controls the number of workers that can perform imports.
	Parallelism int `yaml:"parallelism" env:"INGEST_PARALLELISM" env-default:"2"`
}

func (config *Config) RequiredModTimeAgeDuration() time.Duration {
	return time.Duration(config.RequiredModTimeAgeSeconds) * time.Second
}
