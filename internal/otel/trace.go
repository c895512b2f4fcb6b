package otel

import (
	"fmt"
	"os"
	"sync/atomic"
)

// traceEnabled is read on the UI goroutine for every message.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("MOODLOG_TRACE") != "")
}

// TraceEnabled reports whether MOODLOG_TRACE is set.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

func setTraceEnabled(v bool) {
	traceEnabled.Store(v)
}

// TraceMsg records the type of a Bubble Tea message when tracing is on.
func (l *Logger) TraceMsg(msg any) {
	if l == nil || !TraceEnabled() {
		return
	}
	l.Emit(Event{
		Level: LevelDebug,
		Kind:  KindMsgReceived,
		Comp:  "ui",
		Msg:   fmt.Sprintf("%T", msg),
	})
}
