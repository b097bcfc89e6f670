package workers

import (
	"context"

	"github.com/google/uuid"
)

// Job is a unit of background work keyed to a call.
type Job struct {
	ID      uuid.UUID // unique job id, used for log correlation
	CallID  uuid.UUID // the call this job operates on
	Trigger string    // what scheduled the job (e.g. the webhook event type)
}

// JobProcessor processes jobs taken off the pool queue.
type JobProcessor interface {
	// Name identifies the processor in logs.
	Name() string
	// Process handles a single job. Errors are logged by the pool;
	// the processor decides what is retryable internally.
	Process(ctx context.Context, job Job) error
}

// WorkerPool distributes jobs across a fixed set of workers.
type WorkerPool interface {
	Start(ctx context.Context) error
	Submit(ctx context.Context, job Job) error
	Drain(ctx context.Context) error
	Stop()
}
