package async

import (
	"context"
)

// WorkItem is one queued unit of work: a single submitted photo. Immutable
// after creation; the idempotency key is unique per (chat, message).
type WorkItem struct {
	ChatID         int64  `json:"chat_id"`
	FileID         string `json:"file_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Processor handles one delivered work item. A returned error makes the queue
// redeliver up to its attempt cap.
type Processor interface {
	Process(ctx context.Context, item WorkItem) error
}

type Queue interface {
	Enqueue(ctx context.Context, item WorkItem) error
	Shutdown(ctx context.Context)
}
