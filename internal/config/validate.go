package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Validate reports configuration problems that would prevent startup.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}
	if c.Queue.MaxRetries < 0 {
		problems = append(problems, "queue.max_retries must not be negative")
	}
	if c.Queue.RetentionDays < 1 {
		problems = append(problems, "queue.retention_days must be at least 1")
	}
	if c.Transcription.PollIntervalSeconds < 1 {
		problems = append(problems, "transcription.poll_interval_seconds must be at least 1")
	}
	if c.Transcription.PollBudgetSeconds < c.Transcription.PollIntervalSeconds {
		problems = append(problems, "transcription.poll_budget_seconds must not be shorter than the poll interval")
	}
	if lang := strings.TrimSpace(c.Transcription.Language); lang != "" {
		if _, err := language.Parse(lang); err != nil {
			problems = append(problems, fmt.Sprintf("transcription.language %q is not a valid language tag", lang))
		}
	}
	if c.Notes.RecentPageSize < 1 {
		problems = append(problems, "notes.recent_page_size must be at least 1")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
