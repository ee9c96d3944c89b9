// outbox-requeue moves DEAD notification records back to PENDING so the
// dispatcher picks them up again. Use it after fixing the downstream sink
// (push hub, redis, Pub/Sub) that caused them to exhaust their attempts.
//
// Usage:
//
//	go run ./cmd/outbox-requeue [-id N] [-event quote_updated] [-dry-run]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/models"
)

func main() {
	recordID := flag.Int("id", 0, "Optional: requeue a single record")
	eventType := flag.String("event", "", "Optional: restrict to one event type")
	dryRun := flag.Bool("dry-run", false, "Count matching records without writing")
	flag.Parse()

	_ = godotenv.Load()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	q := db.WithContext(ctx).Model(&models.NotificationRecord{}).
		Where("publish_status = ?", models.OutboxPublishStatusDead)
	if *recordID > 0 {
		q = q.Where("id = ?", *recordID)
	}
	if *eventType != "" {
		q = q.Where("event_type = ?", *eventType)
	}

	if *dryRun {
		var count int64
		if err := q.Count(&count).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to count records: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d dead records would be requeued\n", count)
		return
	}

	res := q.Updates(map[string]interface{}{
		"publish_status":     models.OutboxPublishStatusPending,
		"publish_attempts":   0,
		"next_attempt_at":    nil,
		"locked_at":          nil,
		"locked_by":          nil,
		"last_publish_error": nil,
	})
	if res.Error != nil {
		fmt.Fprintf(os.Stderr, "failed to requeue records: %v\n", res.Error)
		os.Exit(1)
	}
	fmt.Printf("requeued %d dead records\n", res.RowsAffected)
}
