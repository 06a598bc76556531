// Package worker runs the registry's background consumers
package worker

import (
	"context"
	"time"

	"github.com/opendataplatform/registry/cmd/registry/service"
	"github.com/opendataplatform/registry/common/logger"
	"github.com/opendataplatform/registry/common/queue"
)

// TopicPublish carries publication requests. The message key is a catalog
// id, or empty for every catalog.
const TopicPublish = "catalog.publish"

// Publisher runs catalog publication
type Publisher interface {
	Publish(ctx context.Context, catalogID string) (*service.PublishResult, error)
	PublishAll(ctx context.Context) ([]*service.PublishResult, error)
}

// PublishWorker consumes publication requests from the queue
type PublishWorker struct {
	publisher Publisher
	queue     queue.Queue
	log       *logger.Logger
}

// NewPublishWorker creates a worker consuming TopicPublish from q
func NewPublishWorker(publisher Publisher, q queue.Queue, log *logger.Logger) *PublishWorker {
	return &PublishWorker{publisher: publisher, queue: q, log: log}
}

// RequestPublish queues a publication run for catalogID, or for every
// catalog when catalogID is empty
func RequestPublish(ctx context.Context, q queue.Queue, catalogID string) error {
	return q.Publish(ctx, TopicPublish, catalogID, nil)
}

// Start subscribes to TopicPublish; consumption stops when ctx is done
func (w *PublishWorker) Start(ctx context.Context) error {
	return w.queue.Subscribe(ctx, TopicPublish, w.handle)
}

func (w *PublishWorker) handle(ctx context.Context, catalogID string, _ []byte) error {
	start := time.Now()

	if catalogID == "" {
		results, err := w.publisher.PublishAll(ctx)
		if err != nil {
			return err
		}
		for _, r := range results {
			w.logResult(r, start)
		}
		return nil
	}

	result, err := w.publisher.Publish(ctx, catalogID)
	if err != nil {
		return err
	}
	w.logResult(result, start)
	return nil
}

func (w *PublishWorker) logResult(r *service.PublishResult, start time.Time) {
	w.log.Info("catalog published",
		"catalog_id", r.CatalogID,
		"evaluated", r.Evaluated,
		"published", r.Published,
		"unpublished", r.Unpublished,
		"failed", r.Failed,
		"sync_failed", r.SyncFailed,
		"duration_ms", time.Since(start).Milliseconds())
}
