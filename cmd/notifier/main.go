package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/JoseManaure/portfolio-server/internal/config"
	"github.com/JoseManaure/portfolio-server/internal/notify"
)

// maxDeliveryAttempts counts trips through the retry queue before a message
// is parked on the DLQ.
const maxDeliveryAttempts = 5

const retryDelay = 30 * time.Second

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg := config.Load()
	if cfg.RabbitURL == "" {
		log.Fatalw("RABBIT_URL is required for the notifier worker")
	}
	if cfg.N8NWebhookURL == "" {
		log.Fatalw("N8N_WEBHOOK_URL is required for the notifier worker")
	}
	sink := notify.NewWebhook(cfg.N8NWebhookURL)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalw("rabbit dial failed", "error", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalw("rabbit channel failed", "error", err)
	}
	defer ch.Close()

	if err := notify.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatalw("queue declare failed", "error", err)
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalw("qos failed", "error", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalw("consume failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infow("notifier started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				deliver(ctx, log.With("worker", workerID), ch, sink, cfg.RabbitQueue, d)
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Infow("notifier shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warnw("delivery channel closed")
				time.Sleep(time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func deliver(ctx context.Context, log *zap.SugaredLogger, ch *amqp.Channel, sink notify.Notifier, queue string, d amqp.Delivery) {
	var ev notify.Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		log.Errorw("bad message", "error", err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	if err := sink.Send(ctx, ev.Title, ev.Message); err != nil {
		attempts := deliveryAttempts(d) + 1
		if attempts >= maxDeliveryAttempts {
			log.Errorw("delivery failed, parking on dlq", "title", ev.Title, "attempts", attempts, "error", err)
			_ = d.Nack(false, false)
			return
		}
		log.Warnw("delivery failed, scheduling retry", "title", ev.Title, "attempts", attempts, "error", err)
		if err := scheduleRetry(ctx, ch, queue, d, attempts); err != nil {
			log.Errorw("retry publish failed", "error", err)
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
		return
	}

	log.Infow("delivered", "title", ev.Title, "cost", time.Since(start))
	_ = d.Ack(false)
}

func deliveryAttempts(d amqp.Delivery) int {
	if v, ok := d.Headers["x-attempts"]; ok {
		switch n := v.(type) {
		case int32:
			return int(n)
		case int64:
			return int(n)
		case int:
			return n
		}
	}
	return 0
}

// scheduleRetry parks the message on the retry queue; its expiration
// dead-letters it back to the main queue.
func scheduleRetry(ctx context.Context, ch *amqp.Channel, queue string, d amqp.Delivery, attempts int) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers["x-attempts"] = int32(attempts)

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return ch.PublishWithContext(cctx,
		"",
		queue+".retry",
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         d.Body,
			Headers:      headers,
			Expiration:   strconv.FormatInt(retryDelay.Milliseconds(), 10),
			Timestamp:    time.Now(),
		},
	)
}
