// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath locates the SQLite database file.
	DBPath string `koanf:"db_path"`

	// EventTTLMinutes is the default event expiry.
	EventTTLMinutes int `koanf:"event_ttl_minutes"`

	// PurgeEvery sets the average number of event inserts between
	// opportunistic expiry sweeps (1-in-N).
	PurgeEvery int `koanf:"purge_every"`

	// StreamTailSeconds is the interval between tail queries on a
	// streaming connection.
	StreamTailSeconds int `koanf:"stream_tail_seconds"`

	// HeartbeatSeconds is the interval between heartbeat frames.
	HeartbeatSeconds int `koanf:"heartbeat_seconds"`

	// PageLimit caps events returned per catch-up or poll page.
	PageLimit int `koanf:"page_limit"`

	// ReconcileMinutes is the scheduler cadence.
	ReconcileMinutes int `koanf:"reconcile_minutes"`

	// LookbackHours bounds how far back candidate games are selected.
	LookbackHours int `koanf:"lookback_hours"`

	// TrailingHours keeps already-completed games under review so a
	// corrected final score is re-confirmed.
	TrailingHours int `koanf:"trailing_hours"`

	// LockLeadMinutes is how far ahead lock-approaching notices fire.
	LockLeadMinutes int `koanf:"lock_lead_minutes"`

	// ScoreSourceURL is the base URL of the external score source.
	ScoreSourceURL string `koanf:"score_source_url"`

	// ScoreSourceTimeoutSeconds bounds each external fetch.
	ScoreSourceTimeoutSeconds int `koanf:"score_source_timeout_seconds"`

	// ActiveHours optionally suppresses passes outside [Start, End)
	// local hours. Disabled by default; the idempotent pass makes the
	// gate a cost optimization only.
	ActiveHoursEnabled bool `koanf:"active_hours_enabled"`
	ActiveHoursStart   int  `koanf:"active_hours_start"`
	ActiveHoursEnd     int  `koanf:"active_hours_end"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                  "info",
		Addr:                      ":9080",
		DBPath:                    "pickem.db",
		EventTTLMinutes:           60,
		PurgeEvery:                10,
		StreamTailSeconds:         2,
		HeartbeatSeconds:          30,
		PageLimit:                 200,
		ReconcileMinutes:          15,
		LookbackHours:             6,
		TrailingHours:             2,
		LockLeadMinutes:           30,
		ScoreSourceURL:            "",
		ScoreSourceTimeoutSeconds: 10,
		ActiveHoursEnabled:        false,
		ActiveHoursStart:          9,
		ActiveHoursEnd:            24,
	}
}
