package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/anivault/anivault/domain/telegram"
	"github.com/anivault/anivault/domain/works"
	"github.com/anivault/anivault/internal/metrics"
	"github.com/anivault/anivault/pkg/logger"
)

var (
	// ErrQueueFull rejects an enqueue on a pair whose FIFO is at capacity.
	// The episode stays unpublished, so the next poll retries it.
	ErrQueueFull = errors.New("publish queue is full")
	// ErrQueueClosed rejects enqueues after shutdown began.
	ErrQueueClosed = errors.New("publish queue is shut down")
)

// MediaStore persists the (chat, message) acknowledgment for an episode.
type MediaStore interface {
	MarkMedia(ctx context.Context, input works.MediaInput) error
}

// Status is a point-in-time snapshot of the queue.
type Status struct {
	ActiveUploads     int  `json:"activeUploads"`
	Pending           int  `json:"pending"`
	Queues            int  `json:"queues"`
	ShutdownRequested bool `json:"shutdownRequested"`
}

// Queue serializes uploads so that episodes of one (work, translation)
// pair reach the chat strictly in enqueue order, which keeps their message
// ids monotonic. Each live pair gets a bounded FIFO and a dedicated
// goroutine; distinct pairs upload concurrently. A failed task is not
// retried here: its episode_media row stays absent and the publish worker
// picks the episode up again on a later poll.
type Queue struct {
	cfg    *Config
	client telegram.Client
	store  MediaStore
	log    *slog.Logger

	// ctx spans the queue lifetime; Shutdown cancels it after the drain
	// deadline to abort stuck uploads
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	queues   map[PairKey]chan *Task
	active   int
	closed   bool
	shutdown chan struct{}
	wg       sync.WaitGroup

	// chat resolution is lazy and cached for the queue lifetime
	chatMu       sync.Mutex
	chatID       string
	chatResolved bool

	deleteAfterUpload bool
}

// NewQueue creates the publish queue on top of the chat client and the
// works repository.
func NewQueue(cfg *Config, client telegram.Client, repo *works.Repository, log *slog.Logger) *Queue {
	return newQueue(cfg, client, repo, log)
}

func newQueue(cfg *Config, client telegram.Client, store MediaStore, log *slog.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	chatID := cfg.UploadChatID
	if chatID == "" {
		chatID = "me"
	}
	return &Queue{
		cfg:               cfg,
		client:            client,
		store:             store,
		log:               log.With(logger.Scope("publish.queue")),
		ctx:               ctx,
		cancel:            cancel,
		queues:            map[PairKey]chan *Task{},
		shutdown:          make(chan struct{}),
		chatID:            chatID,
		deleteAfterUpload: true,
	}
}

// Enqueue hands a task to its pair's FIFO, spawning the pair worker on
// first use. It never blocks: a full FIFO returns ErrQueueFull.
func (q *Queue) Enqueue(task *Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	ch, ok := q.queues[task.Pair]
	if !ok {
		ch = make(chan *Task, max(q.cfg.QueueCap, 1))
		q.queues[task.Pair] = ch
		q.wg.Add(1)
		metrics.PublishWorkers.Inc()
		go q.runWorker(task.Pair, ch)
	}
	q.mu.Unlock()

	// The pair worker owns the task once it is on the channel, so the
	// state write has to happen before the send
	task.State = StatePending

	select {
	case ch <- task:
		metrics.PublishQueueDepth.Inc()
		q.log.Debug("enqueued upload",
			slog.String("episode_id", task.EpisodeID),
			slog.String("pair", task.Pair.String()),
			slog.Int("queued", len(ch)))
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) runWorker(key PairKey, ch chan *Task) {
	defer func() {
		metrics.PublishWorkers.Dec()
		q.wg.Done()
	}()

	q.log.Info("pair upload worker started", slog.String("pair", key.String()))
	for {
		select {
		case <-q.shutdown:
			q.log.Info("pair upload worker stopped", slog.String("pair", key.String()))
			return
		default:
		}

		select {
		case <-q.shutdown:
			q.log.Info("pair upload worker stopped", slog.String("pair", key.String()))
			return
		case task := <-ch:
			metrics.PublishQueueDepth.Dec()
			q.process(task)
		}
	}
}

// process drives one task through its state machine. The temp file is
// removed on success and failure alike; a lost upload is re-downloaded by
// the next poll anyway, and keeping it would only fill the disk.
func (q *Queue) process(task *Task) {
	q.mu.Lock()
	q.active++
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.active--
		q.mu.Unlock()
	}()

	task.State = StateUploading
	start := time.Now()

	err := q.upload(q.ctx, task)
	if q.deleteAfterUpload {
		q.removeFile(task.Path)
	}
	if err != nil {
		task.State = StateFailed
		task.Error = err.Error()
		metrics.PublishTasks.WithLabelValues("failed").Inc()
		q.log.Error("upload failed",
			slog.String("episode_id", task.EpisodeID),
			logger.Error(err))
		return
	}

	task.State = StateCompleted
	metrics.PublishTasks.WithLabelValues("completed").Inc()
	q.log.Info("upload completed",
		slog.String("episode_id", task.EpisodeID),
		slog.Int64("message_id", task.MessageID),
		slog.Duration("elapsed", time.Since(start)))
}

func (q *Queue) upload(ctx context.Context, task *Task) error {
	chatID := q.resolveChat(ctx)

	if _, err := os.Stat(task.Path); err != nil {
		return fmt.Errorf("video file missing: %w", err)
	}

	q.log.Info("uploading video",
		slog.String("episode_id", task.EpisodeID),
		slog.String("pair", task.Pair.String()),
		slog.Int("episode", task.Number),
		slog.String("chat_id", chatID))

	msg, err := q.client.SendVideo(ctx, telegram.SendVideoRequest{
		ChatID:            chatID,
		Path:              task.Path,
		Caption:           task.Caption,
		SupportsStreaming: true,
	})
	if err != nil {
		return fmt.Errorf("send video: %w", err)
	}

	input := works.MediaInput{
		EpisodeID: task.EpisodeID,
		ChatID:    msg.ChatID,
		MessageID: msg.ID,
	}
	if task.Quality > 0 {
		input.Quality = &task.Quality
	}
	if task.Checksum != "" {
		input.Checksum = &task.Checksum
	}
	sizeBytes := task.SizeBytes
	if msg.Video != nil {
		input.FileUniqueID = &msg.Video.FileUniqueID
		if sizeBytes == 0 {
			sizeBytes = msg.Video.FileSize
		}
	}
	if sizeBytes > 0 {
		input.SizeBytes = &sizeBytes
	}

	if err := q.store.MarkMedia(ctx, input); err != nil {
		return fmt.Errorf("mark media: %w", err)
	}
	task.MessageID = msg.ID
	return nil
}

// resolveChat validates the configured chat once per queue lifetime. A
// target that cannot be resolved falls back to the session's saved
// messages so publishing keeps moving.
func (q *Queue) resolveChat(ctx context.Context) string {
	q.chatMu.Lock()
	defer q.chatMu.Unlock()

	if q.chatResolved {
		return q.chatID
	}
	if q.chatID == "me" {
		q.chatResolved = true
		return q.chatID
	}

	chat, err := q.client.GetChat(ctx, q.chatID)
	if err != nil {
		q.log.Warn("could not resolve upload chat, falling back to saved messages",
			slog.String("chat_id", q.chatID),
			logger.Error(err))
		q.chatID = "me"
		q.chatResolved = true
		return q.chatID
	}

	q.log.Info("upload chat resolved",
		slog.String("chat_id", chat.ID),
		slog.String("title", chat.Title),
		slog.String("type", chat.Type))
	q.chatResolved = true
	return q.chatID
}

func (q *Queue) removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		q.log.Warn("failed to delete temp file", slog.String("path", path), logger.Error(err))
	}
}

// Status reports queue depth and worker counts for the ops surface.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := 0
	for _, ch := range q.queues {
		pending += len(ch)
	}
	return Status{
		ActiveUploads:     q.active,
		Pending:           pending,
		Queues:            len(q.queues),
		ShutdownRequested: q.closed,
	}
}

// Shutdown stops accepting tasks and waits up to timeout for in-flight
// uploads to finish. Tasks still queued are discarded; the next worker
// start re-polls them. After the deadline, stuck uploads are cancelled.
func (q *Queue) Shutdown(timeout time.Duration) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.shutdown)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.log.Info("publish queue drained")
	case <-time.After(timeout):
		q.log.Warn("publish queue did not drain in time, cancelling uploads")
		q.cancel()
		<-done
	}
	q.cancel()
}
