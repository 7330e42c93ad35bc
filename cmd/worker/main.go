package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classattend/internal/attendance"
	"classattend/internal/config"
	"classattend/internal/queue"
	"classattend/internal/store"
)

// Worker consumes mark events and raises device-reuse flags: one device
// submitting marks for several students in the same session.
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

	if err := store.Migrate(db.Client); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classattend:marks")
	}

	repo := attendance.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != queue.TypeMark {
			continue
		}

		id := string(msg.Body)

		att, err := repo.GetByID(ctx, id)
		if err != nil {
			log.Printf("fetch mark %s failed: %v", id, err)
			continue
		}
		if att == nil || att.DeviceID == nil {
			// Marked without a device id; nothing to correlate.
			continue
		}

		reused, err := repo.DeviceReuseCount(ctx, att.SessionID, *att.DeviceID, att.StudentID)
		if err != nil {
			log.Printf("device reuse check for %s failed: %v", id, err)
			continue
		}
		if reused == 0 {
			continue
		}

		flag := attendance.Flag{
			SessionID: att.SessionID,
			StudentID: att.StudentID,
			DeviceID:  *att.DeviceID,
			Reason:    attendance.FlagDeviceReuse,
		}
		if err := repo.InsertFlag(ctx, flag); err != nil {
			log.Printf("flag insert for %s failed: %v", id, err)
			continue
		}
		log.Printf("mark %s: device shared with %d other student(s), flagged", id, reused)

		time.Sleep(10 * time.Millisecond) // Small delay between processing
	}

	log.Println("worker stopped")
}
