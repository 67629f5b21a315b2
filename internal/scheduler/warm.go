package scheduler

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// WarmTarget is one read endpoint refreshed on a cron schedule.
type WarmTarget struct {
	Schedule string
	Path     string
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseWarmTargets parses "<schedule> <path>" entries separated by ";", e.g.
// "@every 30s /edge/nodes;*/5 * * * * /prediction/warnings". The path is the
// last whitespace-separated field; everything before it is the schedule.
func ParseWarmTargets(spec string) ([]WarmTarget, error) {
	var targets []WarmTarget
	for _, entry := range strings.Split(spec, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Fields(entry)
		if len(fields) < 2 {
			return nil, fmt.Errorf("warm target %q: want \"<schedule> <path>\"", entry)
		}
		t := WarmTarget{
			Schedule: strings.Join(fields[:len(fields)-1], " "),
			Path:     fields[len(fields)-1],
		}
		if _, err := parser.Parse(t.Schedule); err != nil {
			return nil, fmt.Errorf("warm target %q: invalid schedule: %w", entry, err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}
