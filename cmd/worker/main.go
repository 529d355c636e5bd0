package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"scantrack/internal/config"
	"scantrack/internal/notify"
	"scantrack/internal/queue"
	"scantrack/internal/roster"
	"scantrack/internal/store"
)

// Worker drains queued notification jobs and runs the guardian dispatch
// out-of-band. Used when NOTIFY_MODE=queue; the scan request has already
// returned by the time a job is processed.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "scantrack:notifications")
	}

	rosterStore := roster.NewPostgresStore(db.Client)

	var email notify.EmailSender
	if cfg.Notify.EmailEnabled() {
		email = notify.NewSendgridSender(cfg.Notify.EmailAPIKey, cfg.Notify.EmailFromName, cfg.Notify.EmailFrom)
	}
	var sms notify.SMSSender
	if cfg.Notify.SMSEnabled() {
		sms = notify.NewSemaphoreClient(cfg.Notify.SMSAPIKey, cfg.Notify.SMSBaseURL)
	}
	dispatcher := notify.NewDispatcher(email, sms, notify.Config{
		SenderName:     cfg.Notify.SMSSenderName,
		ChannelTimeout: cfg.Notify.ChannelTimeout,
	})

	jobs, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for notification jobs...")
	for job := range jobs {
		if job.Type != notify.JobType {
			continue
		}

		var nj queue.NotificationJob
		if err := json.Unmarshal(job.Body, &nj); err != nil {
			log.Printf("job %s: decode failed: %v", job.ID, err)
			continue
		}

		student, err := rosterStore.GetByLRN(ctx, nj.LRN)
		if err != nil {
			log.Printf("job %s: load student %s failed: %v", job.ID, nj.LRN, err)
			continue
		}
		if student == nil {
			log.Printf("job %s: student %s no longer on roster, dropping", job.ID, nj.LRN)
			continue
		}

		res := dispatcher.Dispatch(ctx, *student, notify.Event(nj.Event), nj.Timestamp)
		for _, a := range res.Attempts {
			if a.Success {
				log.Printf("job %s: %s notified via %s", job.ID, nj.LRN, a.Channel)
			} else {
				log.Printf("job %s: %s %s failed: %s", job.ID, nj.LRN, a.Channel, a.Error)
			}
		}
		if len(res.Attempts) == 0 {
			log.Printf("job %s: no eligible channels for %s", job.ID, nj.LRN)
		}
	}

	log.Println("worker stopped")
}
