package settingsstore

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/lectern/internal/config"
)

// PrefetchConfig is the effective configuration of background grounding.
type PrefetchConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
}

// NewPrefetchConfigFromEnv creates the prefetch configuration from environment config
func NewPrefetchConfigFromEnv(cfg config.Grounding) PrefetchConfig {
	return PrefetchConfig{
		Enabled:  cfg.PrefetchEnabled,
		Schedule: cfg.PrefetchSchedule,
	}
}

// ValidateCronSchedule validates a cron expression
func ValidateCronSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(schedule)
	return err
}

// GetCronDescription returns a human-readable description of a cron schedule
func GetCronDescription(schedule string) string {
	switch schedule {
	case "0 * * * *":
		return "Every hour at :00"
	case "*/30 * * * *":
		return "Every 30 minutes"
	case "0 */6 * * *":
		return "Every 6 hours"
	case "0 0 * * *":
		return "Daily at midnight"
	case "30 3 * * *":
		return "Daily at 03:30"
	default:
		return "Custom schedule: " + schedule
	}
}

// GetNextRunTime calculates when the next run will happen based on the schedule
func GetNextRunTime(schedule string) (*time.Time, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, err
	}
	next := sched.Next(time.Now())
	return &next, nil
}
