package config

import (
	"os"
	"path/filepath"
)

// Default returns the baseline configuration before any file overrides.
func Default() Config {
	dataRoot := defaultDataRoot()
	return Config{
		Paths: Paths{
			DataDir: dataRoot,
			LogDir:  filepath.Join(dataRoot, "logs"),
			APIBind: "127.0.0.1:7410",
		},
		Queue: Queue{
			MaxRetries:         3,
			RetentionDays:      30,
			ExpiryDays:         30,
			DedupWindowSeconds: 30,
			DebounceMillis:     500,
		},
		Transcription: Transcription{
			Language:             "en",
			PollIntervalSeconds:  3,
			PollBudgetSeconds:    600,
			SafetyTimeoutSeconds: 300,
			MinPayloadBytes:      1024,
		},
		Notes: Notes{
			RecentPageSize:         10,
			ReconcileWindowSeconds: 300,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

func defaultDataRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "scribeq-data")
	}
	return filepath.Join(home, ".local", "share", "scribeq")
}
