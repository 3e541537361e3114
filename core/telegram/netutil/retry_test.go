package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestTransient(t *testing.T) {
	assert.False(t, Transient(nil))
	assert.False(t, Transient(context.Canceled))
	assert.False(t, Transient(errors.New("bad request")))
	assert.True(t, Transient(context.DeadlineExceeded))
	assert.True(t, Transient(&url.Error{Op: "Post", URL: "https://api.telegram.org", Err: timeoutErr{}}))
	assert.True(t, Transient(&net.OpError{Op: "dial", Err: errors.New("no route")}))
	assert.True(t, Transient(fmt.Errorf("read: %w", syscall.ECONNRESET)))
	assert.False(t, Transient(&net.OpError{Op: "read", Err: errors.New("closed")}))
}

func TestBackoffAndSleep(t *testing.T) {
	assert.Equal(t, 3*time.Second, Backoff(time.Second, 3))
	assert.Zero(t, Backoff(0, 2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", Kind(nil, 0))
	assert.Equal(t, "timeout", Kind(context.DeadlineExceeded, 0))
	assert.Equal(t, "timeout", Kind(&url.Error{Op: "Get", URL: "x", Err: timeoutErr{}}, 0))
	assert.Equal(t, "dns", Kind(&net.DNSError{Err: "no such host", Name: "api.telegram.org"}, 0))
	assert.Equal(t, "dial", Kind(&net.OpError{Op: "dial", Err: errors.New("x")}, 0))
	assert.Equal(t, "http_4xx", Kind(errors.New("telegram: forbidden (403)"), 0))
	assert.Equal(t, "http_5xx", Kind(errors.New("bad gateway"), 502))
	assert.Equal(t, "unknown", Kind(errors.New("odd (x)"), 0))
}

func TestRedact(t *testing.T) {
	msg := Redact(errors.New(`Post "https://api.telegram.org/bot123:ABC-def/sendMessage": EOF`))
	assert.NotContains(t, msg, "123:ABC")
	assert.Contains(t, msg, "bot<redacted>")
	assert.Empty(t, Redact(nil))
}
