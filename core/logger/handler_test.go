package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func capture(t *testing.T, format logFormat, level slog.Level, fn func(*slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{buf}, 1024)
	fn(slog.New(newHandler(handlerOptions{level: level, out: w, format: format})))
	require.NoError(t, w.Close())
	return strings.TrimSpace(buf.String())
}

func TestHandlerKVOrder(t *testing.T) {
	ctx := WithMeta(context.Background(), NewMeta(42, 9, 7))
	line := capture(t, formatKV, slog.LevelInfo, func(l *slog.Logger) {
		LogEvent(ctx, l.With("component", "state"), slog.LevelInfo, "state.transition",
			slog.String("to", "uploading_template"),
			slog.String("status", "OK"),
			slog.String("from", "idle"),
		)
	})

	tokens := strings.Split(line, " ")
	require.GreaterOrEqual(t, len(tokens), 9, line)
	expected := []string{"ts=", "level=INFO", "component=state", "event=state.transition",
		"status=ok", "rid=42:9:7", "update_id=42", "user_id=7", "chat_id=9"}
	for i, prefix := range expected {
		assert.True(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, want %s", i, tokens[i], prefix)
	}
	assert.Less(t, strings.Index(line, "from=idle"), strings.Index(line, "to=uploading_template"))
}

func TestHandlerJSON(t *testing.T) {
	ctx := WithHandler(WithPhase(context.Background(), "creating_content"), "fsm")
	line := capture(t, formatJSON, slog.LevelInfo, func(l *slog.Logger) {
		LogEvent(ctx, l.With("component", "bot.sites"), slog.LevelError, "site.save",
			slog.String("status", "fail"),
			slog.Int64("site_id", 5),
			slog.String("err", "boom"),
			slog.Duration("duration", 1500*time.Microsecond),
			slog.Group("http", slog.Int("code", 502)),
			slog.String("note", "  "),
		)
	})

	var fields map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &fields))
	assert.Equal(t, "ERROR", fields["level"])
	assert.Equal(t, "bot.sites", fields["component"])
	assert.Equal(t, "site.save", fields["event"])
	assert.Equal(t, "fsm", fields["handler"])
	assert.Equal(t, "creating_content", fields["phase"])
	assert.EqualValues(t, 2, fields["duration_ms"])
	assert.EqualValues(t, 502, fields["http.code"])
	assert.Contains(t, fields, "ts_unix_nano")
	assert.NotContains(t, fields, "note")
	assert.NotContains(t, fields, "rid")

	assert.True(t, strings.HasPrefix(line, `{"ts":`))
	assert.Less(t, strings.Index(line, `"status"`), strings.Index(line, `"handler"`))
	assert.Less(t, strings.Index(line, `"site_id"`), strings.Index(line, `"err"`))
}

func TestHandlerDefaultsAndGroups(t *testing.T) {
	line := capture(t, formatKV, slog.LevelDebug, func(l *slog.Logger) {
		l.WithGroup("db").With("op", "insert").Debug("query", "startup_duration", 3*time.Millisecond)
	})
	assert.Contains(t, line, "component=app")
	assert.Contains(t, line, "event=query")
	assert.Contains(t, line, "db.op=insert")
	assert.Contains(t, line, "db.startup_duration_ms=3")

	line = capture(t, formatKV, slog.LevelDebug, func(l *slog.Logger) {
		l.Debug("handled", "outcome", "weird")
		l.Debug("handled", "outcome", "FAIL")
	})
	lines := strings.Split(line, "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "outcome")
	assert.Contains(t, lines[1], "outcome=fail")
}

func TestHandlerLevel(t *testing.T) {
	line := capture(t, formatKV, slog.LevelWarn, func(l *slog.Logger) {
		l.Info("hidden")
		l.Warn("shown", "msg", `say "hi"`)
	})
	assert.NotContains(t, line, "hidden")
	assert.Contains(t, line, "level=WARN")
	assert.Contains(t, line, `msg="say \"hi\""`)
}

func TestContextMetaExplicitFieldsWin(t *testing.T) {
	ctx := WithMeta(context.Background(), Meta{RID: "ctx", UserID: 3})
	line := capture(t, formatKV, slog.LevelInfo, func(l *slog.Logger) {
		l.InfoContext(ctx, "", "rid", "explicit")
	})
	assert.Contains(t, line, "rid=explicit")
	assert.Contains(t, line, "user_id=3")
	assert.Equal(t, Meta{}, MetaFrom(context.Background()))
	assert.Equal(t, "1:2:3", NewMeta(1, 2, 3).RID)
}

func TestAsyncWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{buf}, 16)
	for i := 0; i < 100; i++ {
		require.NoError(t, w.Write([]byte("line\n")))
	}
	require.NoError(t, w.Flush())
	assert.Equal(t, 100, strings.Count(buf.String(), "line"))
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Write([]byte("late\n")), errWriterClosed)
	require.NoError(t, w.Close())

	bad := newAsyncWriter([]io.Writer{failingWriter{}}, 1)
	_ = bad.Write([]byte("x\n"))
	assert.Error(t, bad.Close())
}

func TestSampler(t *testing.T) {
	s := newSampler(1, 3)
	var allowed int
	for i := 0; i < 9; i++ {
		if s.allow() {
			allowed++
		}
	}
	assert.Equal(t, 3, allowed)

	s.set(0, 0)
	assert.True(t, s.allow())

	for spec, want := range map[string][3]int{
		"2/10": {2, 10, 1},
		"25":   {1, 25, 1},
		"0":    {0, 0, 1},
		"x/y":  {0, 0, 0},
		"-3":   {0, 0, 0},
	} {
		keep, every, ok := parseRatio(spec)
		assert.Equal(t, want[0], keep, spec)
		assert.Equal(t, want[1], every, spec)
		assert.Equal(t, want[2] == 1, ok, spec)
	}
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "ab\tc", SanitizeLimit("a\x00b\tc\u200b", 10))
	assert.Equal(t, "héllo", SanitizeLimit("héllo world", 5))
	assert.Equal(t, "", SanitizeLimit("abc", 0))

	s, cut := SummarizeStrings([]string{"A", "B", "C"}, 2)
	assert.Equal(t, "A, B", s)
	assert.True(t, cut)
	s, cut = SummarizeStrings([]string{"A"}, 2)
	assert.Equal(t, "A", s)
	assert.False(t, cut)

	assert.Equal(t, 2*time.Millisecond, RoundMS(1600*time.Microsecond))
	assert.Zero(t, RoundMS(-time.Second))
}
