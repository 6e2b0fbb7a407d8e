package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/delivery"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/media"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/orchestrator"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/queue"
)

// Handlers binds every task kind to its pipeline component. Result-bearing
// handlers write their output through the task's result writer so the
// orchestrator can read it back after completion.
type Handlers struct {
	orchestrator *orchestrator.Orchestrator
	localizer    *media.Localizer
	normalizer   *media.Normalizer
	compressor   *media.Compressor
	deliverer    *delivery.Worker
}

func NewHandlers(
	o *orchestrator.Orchestrator,
	localizer *media.Localizer,
	normalizer *media.Normalizer,
	compressor *media.Compressor,
	deliverer *delivery.Worker) *Handlers {
	return &Handlers{
		orchestrator: o,
		localizer:    localizer,
		normalizer:   normalizer,
		compressor:   compressor,
		deliverer:    deliverer,
	}
}

func (h *Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypeProcessPost, h.HandleProcessPost)
	mux.HandleFunc(queue.TaskTypeLocalizeMedia, h.HandleLocalizeMedia)
	mux.HandleFunc(queue.TaskTypeNormalizeVideo, h.HandleNormalizeVideo)
	mux.HandleFunc(queue.TaskTypeCompressVideo, h.HandleCompressVideo)
	mux.HandleFunc(queue.TaskTypeDeliverPost, h.HandleDeliverPost)
	return mux
}

func (h *Handlers) HandleProcessPost(ctx context.Context, t *asynq.Task) error {
	var p queue.ProcessPostPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return h.orchestrator.ProcessPost(ctx, p.PostID)
}

func (h *Handlers) HandleLocalizeMedia(ctx context.Context, t *asynq.Task) error {
	var p queue.LocalizeMediaPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	res, err := h.localizer.Localize(ctx, p)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedType) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return writeResult(t, res)
}

func (h *Handlers) HandleNormalizeVideo(ctx context.Context, t *asynq.Task) error {
	var p queue.NormalizeVideoPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return h.normalizer.Normalize(ctx, p.URL)
}

func (h *Handlers) HandleCompressVideo(ctx context.Context, t *asynq.Task) error {
	var p queue.CompressVideoPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	url, err := h.compressor.Compress(ctx, p.URL, p.MaxSizeBytes)
	if err != nil {
		return err
	}
	return writeResult(t, queue.CompressVideoResult{URL: url})
}

// HandleDeliverPost never returns a handler error for a delivery failure: the
// worker records a failure result itself, and that result is the output.
func (h *Handlers) HandleDeliverPost(ctx context.Context, t *asynq.Task) error {
	var p queue.DeliverPostPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	result := h.deliverer.Deliver(ctx, p)
	return writeResult(t, result)
}

func writeResult(t *asynq.Task, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if w := t.ResultWriter(); w != nil {
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}
