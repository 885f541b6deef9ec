// Package sweep reconciles object storage against the history table. A save
// uploads the image first and inserts the record second, so a crash or a
// failed insert can leave an uploaded object no record points at. The sweep
// finds and removes those orphans.
package sweep

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"safeskin/internal/history"
	"safeskin/internal/storage"
)

// Result tracks separate counters for each outcome.
type Result struct {
	Scanned    int
	Referenced int
	TooRecent  int
	Removed    int
	Errors     []string
}

// Sweeper walks every user folder in the bucket and removes objects with no
// matching history record. Objects younger than minAge are left alone: they
// may belong to a save whose insert has not landed yet.
type Sweeper struct {
	objects *storage.Client
	bucket  string
	store   history.Store
	minAge  time.Duration

	now func() time.Time
}

func New(objects *storage.Client, bucket string, store history.Store, minAge time.Duration) *Sweeper {
	return &Sweeper{
		objects: objects,
		bucket:  bucket,
		store:   store,
		minAge:  minAge,
		now:     time.Now,
	}
}

// Run performs one full sweep. Per-folder failures are recorded and the sweep
// moves on; the returned error is non-nil only when nothing could be listed
// at all.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	var result Result

	folders, err := s.objects.List(ctx, s.bucket, "")
	if err != nil {
		return result, fmt.Errorf("list bucket root: %w", err)
	}

	cutoff := s.now().Add(-s.minAge)
	var orphans []string

	for _, folder := range folders {
		if !folder.IsFolder() {
			// Objects at the bucket root are not written by the app.
			continue
		}
		entries, err := s.objects.List(ctx, s.bucket, folder.Name)
		if err != nil {
			log.Printf("sweep list error folder=%s: %v", folder.Name, err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", folder.Name, err))
			continue
		}
		for _, entry := range entries {
			if entry.IsFolder() {
				continue
			}
			result.Scanned++
			key := folder.Name + "/" + entry.Name
			if entry.CreatedAt.IsZero() || entry.CreatedAt.After(cutoff) {
				result.TooRecent++
				continue
			}
			referenced, err := s.store.ImageURLExists(ctx, s.objects.PublicURL(s.bucket, key))
			if err != nil {
				log.Printf("sweep lookup error key=%s: %v", key, err)
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", key, err))
				continue
			}
			if referenced {
				result.Referenced++
				continue
			}
			orphans = append(orphans, key)
		}
	}

	if len(orphans) > 0 {
		if err := s.objects.Remove(ctx, s.bucket, orphans); err != nil {
			return result, fmt.Errorf("remove orphans: %w", err)
		}
		result.Removed = len(orphans)
	}

	return result, nil
}

// FormatSummary returns a human-readable summary of a sweep Result.
func FormatSummary(result Result) string {
	msg := fmt.Sprintf("scanned %d objects: %d referenced, %d too recent, %d orphans removed",
		result.Scanned, result.Referenced, result.TooRecent, result.Removed)
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf(" (%d errors)", len(result.Errors))
	}
	return msg
}

// StartScheduler starts a cron-based scheduler that periodically runs the
// sweep. The schedule is a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
// Examples: "0 3 * * *" (daily 3am), "0 3 * * 0" (Sundays 3am).
func StartScheduler(schedule string, sweeper *Sweeper) {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		log.Println("Storage sweep disabled (sweep_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid sweep_schedule '%s': %v, storage sweep disabled", schedule, err)
		return
	}

	log.Printf("Storage sweep scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next storage sweep at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			result, err := sweeper.Run(context.Background())
			if err != nil {
				log.Printf("Storage sweep error: %v", err)
				continue
			}
			log.Printf("Storage sweep complete: %s", FormatSummary(result))
			for _, msg := range result.Errors {
				log.Printf("Storage sweep warning: %s", msg)
			}
		}
	}()
}
