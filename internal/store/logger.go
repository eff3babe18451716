package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ldrpitr/samvaad/internal/dialogue"
)

// defaultQueueSize bounds the logger's in-flight event queue.
const defaultQueueSize = 256

// writeTimeout bounds a single database write from the worker.
const writeTimeout = 5 * time.Second

// TranscriptLogger adapts a [Repository] to the dialogue recorder contract.
// Recording must never block a conversation, so events are queued and
// written by a single background worker; when the queue is full the event is
// dropped with a warning rather than stalling the session.
type TranscriptLogger struct {
	repo  Repository
	queue chan logEvent

	// mu serializes enqueues against Close: a send may not race the queue
	// close, so producers hold the read lock for the duration of the send.
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type logEvent struct {
	session *SessionRecord
	turn    *TurnRecord
}

var _ dialogue.Recorder = (*TranscriptLogger)(nil)

// LoggerOption configures a [TranscriptLogger].
type LoggerOption func(*TranscriptLogger)

// WithQueueSize overrides the event queue capacity.
func WithQueueSize(n int) LoggerOption {
	return func(l *TranscriptLogger) {
		if n > 0 {
			l.queue = make(chan logEvent, n)
		}
	}
}

// NewTranscriptLogger starts a logger writing to repo. Call [TranscriptLogger.Close]
// to flush and stop the worker.
func NewTranscriptLogger(repo Repository, opts ...LoggerOption) *TranscriptLogger {
	l := &TranscriptLogger{
		repo:  repo,
		queue: make(chan logEvent, defaultQueueSize),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.run()
	return l
}

// RecordSession implements [dialogue.Recorder].
func (l *TranscriptLogger) RecordSession(sessionID string, startedAt time.Time, language string) {
	l.enqueue(logEvent{session: &SessionRecord{
		SessionID: sessionID,
		StartedAt: startedAt,
		Language:  language,
	}})
}

// RecordTurn implements [dialogue.Recorder].
func (l *TranscriptLogger) RecordTurn(sessionID string, m dialogue.Message) {
	l.enqueue(logEvent{turn: &TurnRecord{
		SessionID: sessionID,
		MessageID: m.ID,
		Origin:    string(m.Origin),
		Kind:      string(m.Kind),
		Text:      m.Text,
		CreatedAt: m.Timestamp,
	}})
}

func (l *TranscriptLogger) enqueue(ev logEvent) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- ev:
	default:
		slog.Warn("store: transcript log queue full, dropping event")
	}
}

func (l *TranscriptLogger) run() {
	for ev := range l.queue {
		l.write(ev)
	}
	close(l.done)
}

func (l *TranscriptLogger) write(ev logEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	switch {
	case ev.session != nil:
		err = l.repo.SaveSession(ctx, *ev.session)
	case ev.turn != nil:
		err = l.repo.SaveTurn(ctx, *ev.turn)
	}
	if err != nil {
		slog.Warn("store: transcript log write failed", "error", err)
	}
}

// Close drains the queue and stops the worker. Events recorded after Close
// are dropped. The repository itself is not closed.
func (l *TranscriptLogger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()
	<-l.done
}
