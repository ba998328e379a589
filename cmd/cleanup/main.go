package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go-hrms/internal/config"
	"go-hrms/internal/database"
	"go-hrms/internal/features/notification"
)

// Removes read notifications older than the retention window. Meant to be
// run from an external scheduler.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	days := flag.Int("days", cfg.RetentionDays, "delete read notifications created more than this many days ago")
	dryRun := flag.Bool("dry-run", false, "print the cutoff without deleting")
	flag.Parse()

	cutoff := notification.RetentionCutoff(time.Now(), *days)
	log.Printf("Retention cutoff: %s", cutoff.Format(time.RFC3339))
	if *dryRun {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg.MongoURI, cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Client.Disconnect(context.Background())

	repo := notification.NewNotificationRepository(db)
	deleted, err := repo.DeleteOlderThanRead(ctx, cutoff)
	if err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}

	log.Printf("Deleted %d read notifications", deleted)
}
