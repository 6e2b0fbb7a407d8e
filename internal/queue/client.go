package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
)

// Task is one unit of work submitted to the task runtime.
type Task struct {
	Kind    string
	Payload any
}

// TaskOutcome is the terminal state of one submitted task. Err is set when
// the task failed permanently (all runtime retries exhausted); Output carries
// the handler's result bytes on success.
type TaskOutcome struct {
	Kind   string
	Output []byte
	Err    error
}

// JobClient abstracts the durable task runtime so the orchestrator can be
// exercised against an in-memory fake.
type JobClient interface {
	Submit(ctx context.Context, task Task) error
	// SubmitBatchAndWait enqueues every task and blocks until all reach a
	// terminal state. A failing task never cancels its siblings; its failure
	// is captured in the matching outcome. Outcomes are index-aligned with
	// tasks.
	SubmitBatchAndWait(ctx context.Context, tasks []Task) ([]TaskOutcome, error)
}

const defaultQueue = "default"

type asynqJobClient struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	pollEvery time.Duration
}

func NewJobClient(redis asynq.RedisClientOpt) JobClient {
	return &asynqJobClient{
		client:    asynq.NewClient(redis),
		inspector: asynq.NewInspector(redis),
		pollEvery: 500 * time.Millisecond,
	}
}

// optionsFor sets the runtime retry/timeout budget per task kind. Media jobs
// retry aggressively; delivery is one-shot because the adapters record their
// own deterministic failure results.
func optionsFor(kind string) []asynq.Option {
	switch kind {
	case TaskTypeLocalizeMedia:
		return []asynq.Option{asynq.MaxRetry(5), asynq.Timeout(15 * time.Minute)}
	case TaskTypeNormalizeVideo:
		return []asynq.Option{asynq.MaxRetry(3), asynq.Timeout(30 * time.Minute)}
	case TaskTypeCompressVideo:
		return []asynq.Option{asynq.MaxRetry(2), asynq.Timeout(30 * time.Minute)}
	case TaskTypeDeliverPost:
		return []asynq.Option{asynq.MaxRetry(0), asynq.Timeout(30 * time.Minute)}
	case TaskTypeProcessPost:
		return []asynq.Option{asynq.MaxRetry(1), asynq.Timeout(time.Hour)}
	default:
		return []asynq.Option{asynq.MaxRetry(1), asynq.Timeout(10 * time.Minute)}
	}
}

func (c *asynqJobClient) enqueue(ctx context.Context, task Task, extra ...asynq.Option) (*asynq.TaskInfo, error) {
	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return nil, err
	}
	opts := append(optionsFor(task.Kind), extra...)
	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(task.Kind, payload), opts...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return info, nil
}

func (c *asynqJobClient) Submit(ctx context.Context, task Task) error {
	_, err := c.enqueue(ctx, task)
	return err
}

func (c *asynqJobClient) SubmitBatchAndWait(ctx context.Context, tasks []Task) ([]TaskOutcome, error) {
	outcomes := make([]TaskOutcome, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	for i, task := range tasks {
		outcomes[i].Kind = task.Kind

		// Retention keeps completed tasks visible to the inspector long
		// enough to read their results.
		info, err := c.enqueue(ctx, task, asynq.Retention(2*time.Hour))
		if err != nil {
			outcomes[i].Err = err
			continue
		}

		i := i
		taskID, queue := info.ID, info.Queue
		g.Go(func() error {
			out, err := c.waitForTerminal(gctx, queue, taskID)
			outcomes[i].Output = out
			outcomes[i].Err = err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func (c *asynqJobClient) waitForTerminal(ctx context.Context, queue, taskID string) ([]byte, error) {
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		info, err := c.inspector.GetTaskInfo(queue, taskID)
		if err != nil {
			if errors.Is(err, asynq.ErrTaskNotFound) {
				// Evicted before we observed a terminal state.
				return nil, fmt.Errorf("task %s: %w", taskID, asynq.ErrTaskNotFound)
			}
			slog.Info(err.Error())
			continue
		}

		switch info.State {
		case asynq.TaskStateCompleted:
			return info.Result, nil
		case asynq.TaskStateArchived:
			if info.LastErr != "" {
				return nil, errors.New(info.LastErr)
			}
			return nil, fmt.Errorf("task %s failed", taskID)
		}
	}
}
