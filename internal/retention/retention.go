// Package retention prunes aged messages from the store on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Cleaner is the slice of messaging.Client the sweeper needs.
type Cleaner interface {
	Cleanup(ageDays int) (int64, error)
}

// Sweeper runs Cleanup on a cron schedule inside the serve daemon. Messages
// survive until a sweep removes them; retention is the only deletion path.
type Sweeper struct {
	cleaner    Cleaner
	maxAgeDays int
	schedule   cron.Schedule
	expr       string
}

// NewSweeper parses the 5-field cron expression up front so a bad schedule
// fails at startup instead of silently never firing.
func NewSweeper(cleaner Cleaner, maxAgeDays int, expr string) (*Sweeper, error) {
	if maxAgeDays <= 0 {
		return nil, fmt.Errorf("retention: max age must be positive, got %d", maxAgeDays)
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("retention: parse schedule %q: %w", expr, err)
	}
	return &Sweeper{
		cleaner:    cleaner,
		maxAgeDays: maxAgeDays,
		schedule:   sched,
		expr:       expr,
	}, nil
}

// Run blocks, sweeping on schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("retention: sweeping messages older than %d days on schedule %q", s.maxAgeDays, s.expr)

	timer := time.NewTimer(s.untilNext())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.sweep()
			timer.Reset(s.untilNext())
		}
	}
}

// untilNext returns the duration until the next scheduled fire time.
func (s *Sweeper) untilNext() time.Duration {
	d := time.Until(s.schedule.Next(time.Now()))
	if d <= 0 {
		d = time.Second
	}
	return d
}

// sweep runs one cleanup pass. Failures are logged, never fatal: the next
// fire retries.
func (s *Sweeper) sweep() {
	removed, err := s.cleaner.Cleanup(s.maxAgeDays)
	if err != nil {
		log.Printf("retention: cleanup: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("retention: removed %d messages older than %d days", removed, s.maxAgeDays)
	}
}
