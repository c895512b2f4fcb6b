package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abelbrown/moodlog/internal/otel"
)

var eventTime = time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)

func eventLog(t *testing.T, events ...otel.Event) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	for _, e := range events {
		data, err := json.Marshal(e)
		require.NoError(t, err)
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return &buf
}

func TestEventFilter(t *testing.T) {
	ev := otel.Event{Level: otel.LevelWarn, Kind: otel.KindPushReconnect, Comp: "push"}

	tests := []struct {
		name   string
		filter eventFilter
		want   bool
	}{
		{"empty", eventFilter{}, true},
		{"kind prefix", eventFilter{kind: "push"}, true},
		{"other kind", eventFilter{kind: "tiles"}, false},
		{"level below", eventFilter{level: "info"}, true},
		{"level equal", eventFilter{level: "warn"}, true},
		{"level above", eventFilter{level: "error"}, false},
		{"comp", eventFilter{comp: "push"}, true},
		{"other comp", eventFilter{comp: "ui"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.match(ev))
		})
	}
}

func TestReadTailLines(t *testing.T) {
	buf := eventLog(t,
		otel.Event{Time: eventTime, Kind: otel.KindTilesRender, Count: 1},
		otel.Event{Time: eventTime, Kind: otel.KindPushConnect},
		otel.Event{Time: eventTime, Kind: otel.KindTilesRender, Count: 2},
		otel.Event{Time: eventTime, Kind: otel.KindTilesRender, Count: 3},
	)
	buf.WriteString("not json\n\n")

	lines := readTailLines(buf, 2, eventFilter{kind: "tiles"}.match)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].ev.Count)
	assert.Equal(t, 3, lines[1].ev.Count)
	assert.True(t, strings.HasPrefix(string(lines[1].raw), "{"))
}

func TestReadTailLinesZeroConsumesInput(t *testing.T) {
	buf := eventLog(t, otel.Event{Time: eventTime, Kind: otel.KindStartup})

	lines := readTailLines(buf, 0, eventFilter{}.match)
	assert.Empty(t, lines)
	assert.Zero(t, buf.Len(), "reader should be drained so a follow starts at the end")
}

func TestFormatEvent(t *testing.T) {
	line := formatEvent(otel.Event{
		Time:     eventTime,
		Level:    otel.LevelWarn,
		Kind:     otel.KindFetchError,
		Comp:     "refresh",
		Endpoint: "/analytics/trends",
		Status:   502,
		DurMs:    12.5,
		Err:      "bad gateway",
	})

	for _, want := range []string{"WARN", "[refresh", "fetch.error", "/analytics/trends", "status=502", "(12.5ms)", "err=bad gateway"} {
		assert.Contains(t, line, want)
	}
	assert.NotContains(t, line, "panel=")
}

func TestFollowEvents(t *testing.T) {
	buf := eventLog(t,
		otel.Event{Time: eventTime, Kind: otel.KindPushEvent, Msg: "journal_created"},
		otel.Event{Time: eventTime, Kind: otel.KindTilesSkip},
	)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var got []otel.Event
	err := followEvents(ctx, buf, eventFilter{kind: "push"}.match, func(ev otel.Event, _ []byte) {
		got = append(got, ev)
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "journal_created", got[0].Msg)
}

func TestDurPrecision(t *testing.T) {
	assert.Equal(t, 0, durPrecision(150))
	assert.Equal(t, 1, durPrecision(12.5))
	assert.Equal(t, 2, durPrecision(0.25))
}
