package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-assistant/internal/invoice"
)

// TypeInvoiceIndex re-indexes an exported invoice into the retrieval store.
const TypeInvoiceIndex = "invoice:index"

// IndexPayload identifies the record to index.
type IndexPayload struct {
	RecordID int64 `json:"record_id"`
}

// NewIndexTask builds the asynq task for a record.
func NewIndexTask(recordID int64) (*asynq.Task, error) {
	payload, err := json.Marshal(IndexPayload{RecordID: recordID})
	if err != nil {
		return nil, fmt.Errorf("tasks: marshal index payload: %w", err)
	}
	return asynq.NewTask(TypeInvoiceIndex, payload), nil
}

// Enqueuer schedules index tasks on the shared queue.
type Enqueuer struct {
	Client *asynq.Client
	Queue  string
}

// EnqueueIndex pushes an index task for the record.
func (e Enqueuer) EnqueueIndex(ctx context.Context, recordID int64) error {
	task, err := NewIndexTask(recordID)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.MaxRetry(3)}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if _, err := e.Client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("tasks: enqueue index: %w", err)
	}
	return nil
}

// IndexHandler processes index tasks against the invoice service.
type IndexHandler struct {
	Service *invoice.Service
	Logger  zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h IndexHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload IndexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("tasks: decode index payload: %v: %w", err, asynq.SkipRetry)
	}
	rec, err := h.Service.Index(ctx, payload.RecordID)
	if err != nil {
		h.Logger.Error().Err(err).Int64("record_id", payload.RecordID).Msg("index task failed")
		return err
	}
	h.Logger.Info().Int64("record_id", rec.ID).Msg("index task complete")
	return nil
}
