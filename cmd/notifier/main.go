package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/fleet-compliance/internal/config"
	"github.com/kirillkom/fleet-compliance/internal/core/domain"
	"github.com/kirillkom/fleet-compliance/internal/infrastructure/queue/nats"
	"github.com/kirillkom/fleet-compliance/internal/observability/logging"
)

// The notifier is the presentation-side consumer of the pipeline event
// stream: it turns task transitions into structured log lines the way a UI
// would turn them into toasts and progress bars.
func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("notifier", cfg.LogLevel, "subject", cfg.NATSSubject)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		log.Fatalf("connect event stream: %v", err)
	}
	defer events.Close()

	log.Printf("notifier subscribed to %s", cfg.NATSSubject)
	err = events.SubscribeTaskTransitions(ctx, func(_ context.Context, event domain.TaskEvent) error {
		attrs := []any{
			"batch_id", event.BatchID,
			"index", event.Index,
			"filename", event.Filename,
			"status", event.Status,
			"progress", event.ProgressPercent,
		}
		switch event.Status {
		case domain.TaskErrored:
			logger.Warn("upload_task", append(attrs, "error", event.Error)...)
		default:
			logger.Info("upload_task", attrs...)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("notifier subscribe error: %v", err)
	}
}
