package router

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/m3rciful/pressbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

type testContext struct {
	tele.Context
	user  *tele.User
	msg   *tele.Message
	cb    *tele.Callback
	store map[string]any
}

func newContext(text string) *testContext {
	return &testContext{
		user:  &tele.User{ID: 11},
		msg:   &tele.Message{Text: text},
		store: map[string]any{},
	}
}

func (c *testContext) Sender() *tele.User                     { return c.user }
func (c *testContext) Chat() *tele.Chat                       { return &tele.Chat{ID: c.user.ID} }
func (c *testContext) Update() tele.Update                    { return tele.Update{ID: 1, Message: c.msg, Callback: c.cb} }
func (c *testContext) Callback() *tele.Callback               { return c.cb }
func (c *testContext) Get(key string) any                     { return c.store[key] }
func (c *testContext) Set(key string, value any)              { c.store[key] = value }
func (c *testContext) Respond(...*tele.CallbackResponse) error { return nil }

func (c *testContext) Text() string {
	if c.msg != nil {
		return c.msg.Text
	}
	return ""
}

type fakeDialog struct {
	active  bool
	handled int
}

func (f *fakeDialog) Active(int64) bool { return f.active }

func (f *fakeDialog) Resume(tele.Context) error {
	f.handled++
	return nil
}

func routeFor(t *testing.T, routes []tg.Route, endpoint string) tele.HandlerFunc {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	t.Fatalf("no route for %q", endpoint)
	return nil
}

func TestTextRoutesPrefersActiveConversation(t *testing.T) {
	reg := tg.NewRegistry()
	var commandCalls, unknown int
	reg.RegisterCommand("/help", tg.Command{
		Description: "Help",
		Handler:     func(tele.Context) error { commandCalls++; return nil },
		Aliases:     []string{"h"},
	})
	dialog := &fakeDialog{active: true}
	routes := TextRoutes(dialog, reg, Fallbacks{
		Text: func(tele.Context) error { unknown++; return nil },
	})
	text := routeFor(t, routes, tele.OnText)

	require.NoError(t, text(newContext("hello")))
	assert.Equal(t, 1, dialog.handled)

	dialog.active = false
	require.NoError(t, text(newContext("/h")))
	assert.Equal(t, 1, commandCalls)

	require.NoError(t, text(newContext("hello")))
	assert.Equal(t, 1, unknown)
	assert.Equal(t, 1, dialog.handled)
}

func TestTextRoutesDocuments(t *testing.T) {
	var unexpected int
	dialog := &fakeDialog{}
	routes := TextRoutes(dialog, nil, Fallbacks{
		Document: func(tele.Context) error { unexpected++; return nil },
	})
	doc := routeFor(t, routes, tele.OnDocument)

	require.NoError(t, doc(newContext("")))
	assert.Equal(t, 1, unexpected)

	dialog.active = true
	require.NoError(t, doc(newContext("")))
	assert.Equal(t, 1, dialog.handled)
	assert.Equal(t, 1, unexpected)
}

func TestCallbackRoute(t *testing.T) {
	reg := tg.NewRegistry()
	var hit, missing int
	require.NoError(t, reg.RegisterCallback("post_publish", func(tele.Context) error { hit++; return nil }))
	reg.SetCallbackNotFound(func(tele.Context) error { missing++; return nil })
	route := CallbackRoute(reg, Fallbacks{})
	assert.Equal(t, tele.OnCallback, route.Endpoint)

	c := newContext("")
	c.msg = nil
	c.cb = &tele.Callback{Data: "\fpost_publish|"}
	require.NoError(t, route.Handler(c))
	assert.Equal(t, 1, hit)

	c.cb = &tele.Callback{Data: "\fgone|1"}
	require.NoError(t, route.Handler(c))
	assert.Equal(t, 1, missing)

	c.cb = nil
	require.NoError(t, route.Handler(c))
	assert.Equal(t, 1, hit)
	assert.Equal(t, 1, missing)
}

func TestCommandRoutesAdminOnly(t *testing.T) {
	reg := tg.NewRegistry()
	var calls, rejected int
	reg.RegisterCommand("/activate", tg.Command{
		Description: "Activate",
		AdminOnly:   true,
		Handler:     func(tele.Context) error { calls++; return nil },
	})
	routes := CommandRoutes(reg, 99, func(tele.Context) error { rejected++; return nil })
	h := routeFor(t, routes, "/activate")

	require.NoError(t, h(newContext("/activate 5")))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, rejected)

	admin := newContext("/activate 5")
	admin.user = &tele.User{ID: 99}
	require.NoError(t, h(admin))
	assert.Equal(t, 1, calls)

	assert.Nil(t, CommandRoutes(nil, 0, nil))
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "bad input" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "BAD_INPUT", errorCode(fmt.Errorf("wrap: %w", codedErr{})))
	assert.Equal(t, "PLAINERR", errorCode(&plainErr{}))
	assert.Equal(t, "ERRORSTRING", errorCode(errors.New("x")))
}

func TestHandlerName(t *testing.T) {
	assert.Equal(t, "unknown", handlerName("  "))
	assert.Equal(t, "newpost", handlerName("/NewPost"))
	assert.Equal(t, "ph_kind", handlerName("ph kind"))
}
