package otel

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// queueSize bounds the events waiting for the writer goroutine.
const queueSize = 4096

// Logger writes events as JSONL from a background goroutine, batching
// whatever is queued into one buffered write.
//
// All methods are safe on a nil *Logger and do nothing, so components can
// take an optional event log without guarding every call.
type Logger struct {
	sessionID string
	w         *bufio.Writer
	enc       *json.Encoder
	queue     chan Event
	done      chan struct{}

	// sendMu orders Emit against Close: Emit holds it shared while sending,
	// Close exclusively while closing the queue.
	sendMu sync.RWMutex
	closed bool

	ringMu sync.Mutex
	ring   *RingBuffer

	dropped atomic.Uint64 // full queue, closed logger, encode or write error
}

// NewLogger creates a Logger writing to w. Call Close to flush.
func NewLogger(w io.Writer) *Logger {
	var sid [8]byte
	_, _ = rand.Read(sid[:])

	bw := bufio.NewWriter(w)
	l := &Logger{
		sessionID: hex.EncodeToString(sid[:]),
		w:         bw,
		enc:       json.NewEncoder(bw),
		queue:     make(chan Event, queueSize),
		done:      make(chan struct{}),
	}
	go l.run()
	return l
}

// NewNullLogger creates a Logger that discards output but still feeds an
// attached ring buffer.
func NewNullLogger() *Logger {
	return NewLogger(io.Discard)
}

// run is the only reader of queue and the only writer to w. It flushes
// each time the queue runs dry.
func (l *Logger) run() {
	defer close(l.done)
	for e := range l.queue {
		l.write(e)
		for len(l.queue) > 0 {
			e, ok := <-l.queue
			if !ok {
				break
			}
			l.write(e)
		}
		if err := l.w.Flush(); err != nil {
			l.dropped.Add(1)
		}
	}
}

func (l *Logger) write(e Event) {
	// Encoder appends the newline.
	if err := l.enc.Encode(e); err != nil {
		l.dropped.Add(1)
	}
	l.ringMu.Lock()
	ring := l.ring
	l.ringMu.Unlock()
	if ring != nil {
		ring.Push(e)
	}
}

// Emit queues an event, stamping Time (if zero) and SessionID. It never
// blocks: with the queue full or the logger closed the event is dropped
// and counted.
func (l *Logger) Emit(e Event) {
	if l == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = l.sessionID

	l.sendMu.RLock()
	defer l.sendMu.RUnlock()
	if l.closed {
		l.dropped.Add(1)
		return
	}
	select {
	case l.queue <- e:
	default:
		l.dropped.Add(1)
	}
}

// Info emits an info-level event.
func (l *Logger) Info(kind EventKind, comp string, msg string) {
	l.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

// Warn emits a warn-level event.
func (l *Logger) Warn(kind EventKind, comp string, msg string) {
	l.Emit(Event{Level: LevelWarn, Kind: kind, Comp: comp, Msg: msg})
}

// Error emits an error-level event. A nil err is logged as "".
func (l *Logger) Error(kind EventKind, comp string, err error) {
	e := Event{Level: LevelError, Kind: kind, Comp: comp}
	if err != nil {
		e.Err = err.Error()
	}
	l.Emit(e)
}

// SetRingBuffer attaches a ring buffer that receives every written event.
func (l *Logger) SetRingBuffer(buf *RingBuffer) {
	if l == nil {
		return
	}
	l.ringMu.Lock()
	defer l.ringMu.Unlock()
	l.ring = buf
}

// SessionID returns the random id stamped on every event of this run.
func (l *Logger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

// Dropped returns the number of events lost since creation.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Close flushes queued events and stops the writer. Later Emits are
// dropped. Safe to call more than once.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.sendMu.Lock()
	if l.closed {
		l.sendMu.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	l.sendMu.Unlock()

	<-l.done
	if d := l.dropped.Load(); d > 0 {
		fmt.Fprintf(os.Stderr, "moodlog: %d events dropped during session %s\n", d, l.sessionID)
	}
}

// OpenFile opens (appending) the JSONL event log at path.
func OpenFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	return f, nil
}
