// seed_state writes stale hourly activity buckets into a naas data dir so the
// retention prune can be observed on the next start or janitor tick.
// It is a standalone tool, not part of the service.
//
// Usage:
//
//	go run ./scripts/seed_state --data-dir ./data --backend file --age 20d --hours 3
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/developingchet/naas/internal/stats"
	"github.com/developingchet/naas/internal/storage"
)

// parseAge accepts Go durations plus a "<n>d" day suffix.
func parseAge(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	return d, nil
}

// staleBuckets returns hours consecutive buckets, the newest one age before
// now, each holding count events.
func staleBuckets(now time.Time, age time.Duration, hours int, count int64, loc *time.Location) stats.Activity {
	out := stats.Activity{}
	start := now.Add(-age)
	for i := 0; i < hours; i++ {
		out[stats.BucketKey(start.Add(-time.Duration(i)*time.Hour), loc)] = count
	}
	return out
}

// seed merges buckets into the activity record held by b.
func seed(b storage.Backend, buckets stats.Activity) (stats.Activity, error) {
	current := stats.Activity{}
	if err := b.Load(stats.RecordActivity, &current); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	if current == nil {
		current = stats.Activity{}
	}
	for k, v := range buckets {
		current[k] += v
	}
	if err := b.Save(stats.RecordActivity, current); err != nil {
		return nil, fmt.Errorf("save activity: %w", err)
	}
	return current, nil
}

func main() {
	dataDir := flag.String("data-dir", "", "naas data directory (required)")
	backend := flag.String("backend", storage.KindFile, `storage backend: "file" or "bolt"`)
	ageFlag := flag.String("age", "20d", "age of the newest seeded bucket (e.g. 20d, 400h)")
	hours := flag.Int("hours", 3, "number of consecutive hourly buckets to write")
	count := flag.Int64("count", 7, "events per bucket")
	flag.Parse()

	if *dataDir == "" {
		log.Fatal("--data-dir is required")
	}
	age, err := parseAge(*ageFlag)
	if err != nil {
		log.Fatal(err)
	}

	b, err := storage.Open(*backend, *dataDir)
	if err != nil {
		log.Fatalf("open %s backend at %s: %v", *backend, *dataDir, err)
	}
	defer b.Close()

	buckets := staleBuckets(time.Now(), age, *hours, *count, time.Local)
	merged, err := seed(b, buckets)
	if err != nil {
		log.Fatal(err)
	}

	for k := range buckets {
		fmt.Printf("[seed_state] activity bucket: key=%s value=%d\n", k, *count)
	}
	fmt.Printf("[seed_state] done, %d buckets in record; restart naas to observe the prune\n", len(merged))
}
