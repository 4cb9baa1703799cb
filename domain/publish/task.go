package publish

import (
	"fmt"

	"github.com/google/uuid"
)

// TaskState tracks an upload through its lifecycle.
type TaskState string

const (
	StatePending   TaskState = "pending"
	StateUploading TaskState = "uploading"
	StateCompleted TaskState = "completed"
	StateFailed    TaskState = "failed"
)

// PairKey identifies the FIFO a task belongs to. Episodes sharing a work
// and translation must reach the chat in enqueue order; distinct pairs are
// independent.
type PairKey struct {
	WorkID        string
	TranslationID int
}

func (k PairKey) String() string {
	return fmt.Sprintf("%s:%d", k.WorkID, k.TranslationID)
}

// Task is one episode upload. After Enqueue the owning pair worker is the
// only writer of the mutable tail (State, Error, MessageID).
type Task struct {
	ID        uuid.UUID
	EpisodeID string
	Pair      PairKey
	Number    int
	Path      string
	Caption   string
	Quality   int
	Checksum  string
	SizeBytes int64

	State     TaskState
	Error     string
	MessageID int64
}
