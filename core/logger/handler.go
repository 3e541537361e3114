package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	tsLayout = "2006-01-02T15:04:05.000Z07:00"
)

// keyOrder puts the identifying fields of a line first. Keys not listed
// follow in alphabetical order.
var keyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "update_id", "user_id", "chat_id", "chat_type",
	"handler", "phase", "op", "cb_key", "outcome", "duration_ms",
	"messages", "kb", "payload", "username", "lang",
	"mode", "listen", "public_url", "http_code", "db", "host", "port",
	"site_id", "post_id", "from", "to", "name", "count",
	"restored", "purged", "skipped",
	"err", "err_code", "cause", "retryable", "attempt", "backoff_ms",
}

var outcomes = map[string]bool{
	"ok": true, "fail": true, "cancelled": true, "rate_limited": true,
}

type handlerOptions struct {
	level  slog.Leveler
	out    *asyncWriter
	format logFormat
	order  []string
}

type field struct {
	key string
	val any
}

// handler renders records as one line of JSON or key=value pairs with a
// stable key order. Attributes bound by WithAttrs are resolved once.
type handler struct {
	opts   *handlerOptions
	bound  []field
	prefix string
}

func newHandler(opts handlerOptions) *handler {
	if opts.level == nil {
		opts.level = slog.LevelInfo
	}
	if opts.order == nil {
		opts.order = keyOrder
	}
	return &handler{opts: &opts}
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if h.opts.out == nil {
		return fmt.Errorf("logger: writer not initialized")
	}
	rec := newRecord(16 + r.NumAttrs())
	ts := r.Time.UTC()
	rec.set("ts", ts.Truncate(time.Millisecond).Format(tsLayout))
	if h.opts.format == formatJSON {
		rec.set("ts_unix_nano", ts.UnixNano())
	}
	rec.set("level", levelName(r.Level))
	for _, f := range h.bound {
		rec.set(f.key, f.val)
	}
	r.Attrs(func(a slog.Attr) bool {
		for _, f := range appendAttr(nil, h.prefix, a) {
			rec.set(f.key, f.val)
		}
		return true
	})
	MetaFrom(ctx).fields(rec)

	msg := r.Message
	if msg == "" {
		msg = "unknown"
	}
	rec.setDefault("event", msg)
	rec.setDefault("component", "app")
	rec.normalizeEnums()

	var line []byte
	if h.opts.format == formatJSON {
		var err error
		if line, err = rec.json(h.opts.order); err != nil {
			return err
		}
	} else {
		line = rec.kv(h.opts.order)
	}
	return h.opts.out.Write(append(line, '\n'))
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.bound = slices.Clip(h.bound)
	for _, a := range attrs {
		clone.bound = appendAttr(clone.bound, h.prefix, a)
	}
	return &clone
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// appendAttr flattens a into dotted keys and normalizes its value.
func appendAttr(dst []field, prefix string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			dst = appendAttr(dst, key, child)
		}
		return dst
	}
	if key == "" {
		return dst
	}
	if k, v, ok := normalizeValue(key, a.Value); ok {
		dst = append(dst, field{k, v})
	}
	return dst
}

// normalizeValue maps a value onto JSON-friendly scalars. Durations become
// milliseconds under a _ms key; empty strings are dropped.
func normalizeValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		s := strings.TrimSpace(v.String())
		return key, s, s != ""
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return msKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		s := x.String()
		return key, s, s != ""
	default:
		return key, fmt.Sprint(x), true
	}
}

func msKey(key string) string {
	if key == "duration" {
		return "duration_ms"
	}
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	}
	return "ERROR"
}

// record holds the fields of one line.
type record struct {
	vals map[string]any
}

func newRecord(size int) *record {
	return &record{vals: make(map[string]any, size)}
}

func (r *record) set(key string, val any) {
	r.vals[key] = val
}

// setDefault sets key unless the line already has a value for it.
func (r *record) setDefault(key string, val any) {
	if s, ok := val.(string); ok && s == "" {
		return
	}
	if _, ok := r.vals[key]; !ok {
		r.vals[key] = val
	}
}

// normalizeEnums lowercases status and drops outcomes outside the known set.
func (r *record) normalizeEnums() {
	if s, ok := r.vals["status"].(string); ok {
		r.vals["status"] = strings.ToLower(s)
	}
	if o, ok := r.vals["outcome"].(string); ok {
		if o = strings.ToLower(o); outcomes[o] {
			r.vals["outcome"] = o
		} else {
			delete(r.vals, "outcome")
		}
	}
}

func (r *record) keys(order []string) []string {
	out := make([]string, 0, len(r.vals))
	listed := make(map[string]bool, len(order))
	for _, k := range order {
		listed[k] = true
		if _, ok := r.vals[k]; ok {
			out = append(out, k)
		}
	}
	head := len(out)
	for k := range r.vals {
		if !listed[k] {
			out = append(out, k)
		}
	}
	slices.Sort(out[head:])
	return out
}

func (r *record) json(order []string) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range r.keys(order) {
		data, err := json.Marshal(r.vals[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(data)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func (r *record) kv(order []string) []byte {
	var b bytes.Buffer
	for i, k := range r.keys(order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		s := fmt.Sprint(r.vals[k])
		if strings.IndexFunc(s, needsQuote) >= 0 {
			s = strconv.Quote(s)
		}
		b.WriteString(s)
	}
	return b.Bytes()
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
