// Command replay republishes ingest events for submissions that sit in the
// queued state longer than expected. That happens when the intake accepted a
// file but the stream publish failed; the row stays queued and no consumer
// ever sees it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/certhours/cert-hours-api/internal/pipeline"
	"github.com/certhours/cert-hours-api/pkg/cache"
	"github.com/certhours/cert-hours-api/pkg/config"
	"github.com/certhours/cert-hours-api/pkg/database"
	"github.com/certhours/cert-hours-api/pkg/events"
)

func main() {
	var (
		olderThan time.Duration
		limit     int
		dryRun    bool
	)
	flag.DurationVar(&olderThan, "older-than", 10*time.Minute, "Only replay submissions queued longer than this")
	flag.IntVar(&limit, "limit", 100, "Maximum submissions to replay")
	flag.BoolVar(&dryRun, "dry-run", false, "List candidates without publishing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer db.Close()

	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var ids []string
	cutoff := time.Now().Add(-olderThan)
	query := `SELECT id FROM submissions WHERE status = 'queued' AND submitted_at < $1 ORDER BY submitted_at LIMIT $2`
	if err := db.SelectContext(ctx, &ids, query, cutoff, limit); err != nil {
		log.Fatalf("failed to list stuck submissions: %v", err)
	}
	if len(ids) == 0 {
		fmt.Println("no stuck submissions found")
		return
	}

	bus := events.NewBus(rdb)
	replayed := 0
	for _, id := range ids {
		if dryRun {
			fmt.Printf("candidate: %s\n", id)
			continue
		}
		if err := bus.Publish(ctx, pipeline.TopicIngest, pipeline.IngestEvent{SubmissionID: id}); err != nil {
			log.Printf("failed to replay %s: %v", id, err)
			continue
		}
		replayed++
		fmt.Printf("replayed: %s\n", id)
	}
	fmt.Printf("%d candidates, %d replayed\n", len(ids), replayed)
}
