package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/impactlens/social-pulse/internal/analysis"
	"github.com/impactlens/social-pulse/internal/config"
	"github.com/impactlens/social-pulse/internal/dedupe"
	"github.com/impactlens/social-pulse/internal/logger"
	"github.com/impactlens/social-pulse/internal/pipeline"
	"github.com/impactlens/social-pulse/internal/store"
)

func main() {
	log := logger.New("worker")
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	records, err := store.New(cfg.StoreAddr, cfg.ResultsIndex, log)
	if err != nil {
		log.Error("init record store", slog.Any("err", err))
		os.Exit(1)
	}

	gateway, err := analysis.NewGateway(ctx, cfg.AWSRegion, cfg.MediaBucket)
	if err != nil {
		log.Error("init classification gateway", slog.Any("err", err))
		os.Exit(1)
	}

	processor := &pipeline.Processor{
		Text:  gateway,
		Image: gateway,
		Store: records,
	}

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // Disable auto-commit; manual commit only
	})
	defer reader.Close()

	dlq := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic + "_dlq",
		MaxAttempts: 3,
	})
	defer dlq.Close()

	log.Info("worker started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", cfg.KafkaTopic+"_dlq"),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if err := handleMessage(ctx, log, processor, cache, msg.Value); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			if deadLetter(ctx, log, dlq, msg, err) {
				if err := reader.CommitMessages(ctx, msg); err != nil {
					log.Error("commit dead-lettered message", slog.Any("err", err))
				}
			} else {
				log.Error("DLQ write exhausted retries, message may be lost if later messages commit",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
			}
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

// handleMessage runs one message through the pipeline. A duplicate
// delivery inside the dedupe window skips the classifier calls but
// still upserts the cached result, so a resubmission that rewrote the
// IN_PROGRESS placeholder ends COMPLETED again. If the re-upsert
// fails, the message goes through the full pipeline instead.
func handleMessage(ctx context.Context, log *slog.Logger, proc *pipeline.Processor, cache *dedupe.Cache, body []byte) error {
	digest := pipeline.DeriveID(body)

	if cached, ok := cache.Get(digest); ok {
		if err := proc.Store.PutResult(ctx, cached); err == nil {
			log.Debug("duplicate delivery, re-upserted cached result",
				slog.String("post_id", cached.PostID),
			)
			return nil
		} else {
			log.Warn("re-upsert of cached result failed, reprocessing",
				slog.String("post_id", cached.PostID),
				slog.Any("err", err),
			)
		}
	}

	result, err := proc.Process(ctx, body)
	if err != nil {
		return err
	}

	cache.Put(digest, result)
	log.Info("analyzed post",
		slog.String("post_id", result.PostID),
		slog.Int("score", result.SocialImpactScore),
	)
	return nil
}

type dlqWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// deadLetterMessage wraps a failed message with failure context for
// the dead-letter topic.
func deadLetterMessage(msg kafka.Message, cause error) kafka.Message {
	return kafka.Message{
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
			kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
			kafka.Header{Key: "error", Value: []byte(cause.Error())},
			kafka.Header{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
		),
	}
}

// deadLetter forwards a failed message to the dead-letter topic,
// retrying with exponential backoff. Returns true once the write
// succeeded.
func deadLetter(ctx context.Context, log *slog.Logger, w dlqWriter, msg kafka.Message, cause error) bool {
	dlqMsg := deadLetterMessage(msg, cause)

	for attempt := 0; attempt < 5; attempt++ {
		if err := w.WriteMessages(ctx, dlqMsg); err == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		} else {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			log.Warn("DLQ write failed, retrying",
				slog.Any("err", err),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				log.Info("context canceled during DLQ retry")
				return false
			}
		}
	}

	return false
}
