package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/pressbot/core/config"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", Command{Handler: noop, Description: "Start"})
	reg.RegisterCommand("/help", Command{Handler: noop, Description: "Help", Aliases: []string{"h", "/?"}})
	reg.RegisterCommand("/activate", Command{Handler: noop, Description: "Activate", AdminOnly: true})
	reg.RegisterCommand("/debug", Command{Handler: noop, Description: "Debug", Hidden: true})

	reg.RegisterCommand("nohandler", Command{Handler: noop, Description: "x"})
	reg.RegisterCommand("/empty", Command{Handler: noop})
	reg.RegisterCommand("/start", Command{Handler: noop, Description: "Again"})

	cmds := reg.Commands()
	assert.Len(t, cmds, 4)
	assert.Equal(t, "Start", cmds["/start"].Description)

	for _, typed := range []string{"help", "/help", "h", "/h", "?"} {
		name, _, ok := reg.LookupCommand(typed)
		require.True(t, ok, typed)
		assert.Equal(t, "/help", name)
	}
	_, _, ok := reg.LookupCommand("hello")
	assert.False(t, ok)

	assert.Equal(t, []tele.Command{
		{Text: "/help", Description: "Help"},
		{Text: "/start", Description: "Start"},
	}, reg.Menu())
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("post_publish", noop))
	require.NoError(t, reg.RegisterCallback("cancel", noop))
	assert.Error(t, reg.RegisterCallback("cancel", noop))
	assert.Error(t, reg.RegisterCallback("", noop))
	assert.Error(t, reg.RegisterCallback("x", nil))

	assert.Equal(t, []string{"cancel", "post_publish"}, reg.CallbackActions())
	_, ok := reg.Callback("post_publish")
	assert.True(t, ok)
	_, ok = reg.Callback("gone")
	assert.False(t, ok)

	def := reg.CallbackNotFound()
	require.NotNil(t, def)
	reg.SetCallbackNotFound(nil)
	assert.NotNil(t, reg.CallbackNotFound())
}

func TestNewPoller(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.Telegram.RunMode = coreconfig.RunModeLongpoll
	lp, ok := newPoller(cfg).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, defaultLongPollTimeout, lp.Timeout)

	cfg.Telegram.LongPollTimeoutSeconds = 25
	lp = newPoller(cfg).(*tele.LongPoller)
	assert.Equal(t, 25*time.Second, lp.Timeout)

	cfg.Telegram.RunMode = coreconfig.RunModeWebhook
	cfg.Webhook = coreconfig.WebhookConfig{URL: "https://example.org/hook", Listen: "0.0.0.0", Port: 8443}
	wh, ok := newPoller(cfg).(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "https://example.org/hook", wh.Endpoint.PublicURL)
}

type flakyTransport struct {
	fails  int
	calls  int
	bodies []string
	err    error
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		f.bodies = append(f.bodies, string(b))
	}
	if f.calls <= f.fails {
		return nil, f.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: req}, nil
}

func TestRetryTransport(t *testing.T) {
	base := &flakyTransport{fails: 2, err: syscall.ECONNRESET}
	rt := &retryTransport{base: base, attempts: 3, backoff: time.Millisecond}
	req, err := http.NewRequest(http.MethodPost, "http://api.test/sendMessage", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, err)

	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, base.calls)
	assert.Equal(t, []string{`{"text":"hi"}`, `{"text":"hi"}`, `{"text":"hi"}`}, base.bodies)
}

func TestRetryTransportGivesUp(t *testing.T) {
	permanent := errors.New("tls: bad certificate")
	base := &flakyTransport{fails: 5, err: permanent}
	rt := &retryTransport{base: base, attempts: 3, backoff: time.Millisecond}
	req, err := http.NewRequest(http.MethodGet, "http://api.test/getMe", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, base.calls)

	base = &flakyTransport{fails: 5, err: syscall.ECONNREFUSED}
	rt.base = base
	_, err = rt.RoundTrip(req)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
	assert.Equal(t, 3, base.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	base = &flakyTransport{fails: 5, err: syscall.ECONNRESET}
	rt.base = base
	_, err = rt.RoundTrip(req.WithContext(ctx))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, base.calls)
}
