package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/logger"
	tghelpers "github.com/m3rciful/pressbot/core/telegram/helpers"
)

type fakeContext struct {
	tele.Context
	user  *tele.User
	store map[string]any
}

func newContext(userID int64) *fakeContext {
	return &fakeContext{user: &tele.User{ID: userID}, store: map[string]any{}}
}

func (f *fakeContext) Sender() *tele.User        { return f.user }
func (f *fakeContext) Chat() *tele.Chat          { return &tele.Chat{ID: f.user.ID} }
func (f *fakeContext) Update() tele.Update       { return tele.Update{ID: 7} }
func (f *fakeContext) Get(key string) any        { return f.store[key] }
func (f *fakeContext) Set(key string, value any) { f.store[key] = value }

type phaseMap map[int64]conversation.Phase

func (m phaseMap) Phase(userID int64) conversation.Phase {
	if p, ok := m[userID]; ok {
		return p
	}
	return conversation.PhaseIdle
}

func (m phaseMap) Active(userID int64) bool {
	return m.Phase(userID) != conversation.PhaseIdle
}

func TestRouter(t *testing.T) {
	phases := phaseMap{1: conversation.PhaseCreatingContent}
	handled := 0
	r := NewRouter(phases, func(tele.Context) error { handled++; return nil })

	assert.True(t, r.Active(1))
	assert.False(t, r.Active(2))
	require.NoError(t, r.Resume(newContext(1)))
	assert.Equal(t, 1, handled)

	require.NoError(t, NewRouter(phases, nil).Resume(newContext(1)))
}

func TestWithPhase(t *testing.T) {
	phases := phaseMap{3: conversation.PhaseConfiguringCustomPlaceholder}
	c := newContext(3)
	var seen string
	h := WithPhase(phases)(func(c tele.Context) error {
		ctx, ok := tghelpers.ContextFrom(c)
		require.True(t, ok)
		seen = logger.MetaFrom(ctx).Phase
		return nil
	})
	require.NoError(t, h(c))
	assert.Equal(t, "configuring_custom_placeholder", seen)
}
