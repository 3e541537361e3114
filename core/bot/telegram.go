package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tg "github.com/m3rciful/pressbot/core/telegram"
	tghelpers "github.com/m3rciful/pressbot/core/telegram/helpers"
	"github.com/m3rciful/pressbot/core/telegram/keyboard"
	"github.com/m3rciful/pressbot/core/telegram/middleware"
	"github.com/m3rciful/pressbot/core/telegram/router"
	"github.com/m3rciful/pressbot/core/telegram/state"

	"github.com/m3rciful/pressbot/core/conversation"

	tele "gopkg.in/telebot.v4"
)

// MaxUploadBytes bounds uploaded templates and images.
const MaxUploadBytes = 5 << 20

var errTooLarge = errors.New("document too large")

type handlerFunc func(context.Context, Input, Responder) error

// Telegram binds a Service to telebot handlers.
type Telegram struct {
	svc   *Service
	fetch func(c tele.Context, doc *tele.Document) ([]byte, error)
}

// NewTelegram wraps svc for Telegram.
func NewTelegram(svc *Service) *Telegram {
	return &Telegram{svc: svc, fetch: downloadDocument}
}

type commandSpec struct {
	name        string
	description string
	fn          handlerFunc
	adminOnly   bool
}

func (t *Telegram) commandSpecs() []commandSpec {
	s := t.svc
	return []commandSpec{
		{"/start", "Register or show your account", s.Start, false},
		{"/help", "List the commands", s.Help, false},
		{"/site", "Configure your site", s.Site, false},
		{"/transport", "Set where pages are published", s.Transport, false},
		{"/template", "Upload the HTML template", s.Template, false},
		{"/newpost", "Write and publish a post", s.NewPost, false},
		{"/posts", "List your latest posts", s.Posts, false},
		{"/editpost", "Revise a published post", s.EditPost, false},
		{"/featured", "Mark featured posts", s.Featured, false},
		{"/categories", "Manage post categories", s.Categories, false},
		{"/status", "Show your account and site", s.Status, false},
		{"/cancel", "Abandon the current step", s.Cancel, false},
		{"/reset", "Forget everything in progress", s.Reset, false},
		{"/activate", "Activate an account", s.Activate, true},
		{"/deactivate", "Deactivate an account", s.Deactivate, true},
	}
}

// actionPhases lists the phases each button action is valid in. Cancel is
// valid everywhere.
var actionPhases = map[string][]conversation.Phase{
	ActConfigure: {conversation.PhaseConfiguringCustomPlaceholder},
	ActSkip:      {conversation.PhaseConfiguringCustomPlaceholder},
	ActKind:      {conversation.PhaseConfiguringCustomPlaceholder},
	ActChoice:    {conversation.PhaseCreatingContent, conversation.PhaseEditingContent},
	ActPublish:   {conversation.PhaseConfirmingPublish},
	ActEdit:      {conversation.PhaseConfirmingPublish},
	ActEditField: {conversation.PhaseEditingContent},
	ActUpload:    {conversation.PhaseCreatingContent, conversation.PhaseEditingContent},
	ActOpenPost:  {conversation.PhaseEditingContent},
	ActFeature:   {conversation.PhaseManagingFeatured},
	ActCatNew:    {conversation.PhaseManagingCategories},
	ActCatRename: {conversation.PhaseManagingCategories},
	ActCatColor:  {conversation.PhaseManagingCategories},
	ActCatDelete: {conversation.PhaseManagingCategories},
	ActDone:      {conversation.PhaseManagingCategories, conversation.PhaseManagingFeatured},
}

// Register adds the commands and button callbacks of the service to reg.
func (t *Telegram) Register(reg *tg.Registry) error {
	for _, spec := range t.commandSpecs() {
		reg.RegisterCommand(spec.name, tg.Command{
			Handler:     t.adapt(spec.fn),
			Description: spec.description,
			AdminOnly:   spec.adminOnly,
		})
	}
	expired := t.UnknownCallback()
	for _, action := range Actions() {
		h := t.adapt(t.svc.HandleAction)
		if phases, ok := actionPhases[action]; ok {
			h = middleware.InPhase(t.svc.states, expired, phases...)(h)
		}
		if err := reg.RegisterCallback(action, h); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(expired)
	return nil
}

// Routes returns every route of the bot. Register must have been called.
func (t *Telegram) Routes(reg *tg.Registry, adminID int64) []tg.Route {
	reject := t.adapt(func(ctx context.Context, _ Input, out Responder) error {
		return say(ctx, out, msgAdminOnly)
	})
	fb := router.Fallbacks{
		Text:     t.UnknownText(),
		Document: t.UnknownDocument(),
		Callback: t.UnknownCallback(),
	}
	dialog := state.NewRouter(t.svc.states, t.adapt(t.svc.HandleMessage))
	routes := router.CommandRoutes(reg, adminID, reject)
	routes = append(routes, router.TextRoutes(dialog, reg, fb)...)
	return append(routes, router.CallbackRoute(reg, fb))
}

// UnknownText answers text of users without a dialogue in progress.
func (t *Telegram) UnknownText() tele.HandlerFunc {
	return t.adapt(t.svc.HandleMessage)
}

// UnknownDocument answers files sent outside an upload step.
func (t *Telegram) UnknownDocument() tele.HandlerFunc {
	return t.adapt(t.svc.HandleMessage)
}

// UnknownCallback answers buttons that no longer apply.
func (t *Telegram) UnknownCallback() tele.HandlerFunc {
	return t.adapt(func(ctx context.Context, _ Input, out Responder) error {
		return say(ctx, out, msgExpired)
	})
}

// OnLimited tells a rate limited user to slow down.
func (t *Telegram) OnLimited(c tele.Context) error {
	if c.Callback() != nil {
		return tghelpers.Respond(c, "Too fast, please wait a moment.")
	}
	return tghelpers.SendText(c, "Too fast, please wait a moment.")
}

func (t *Telegram) adapt(fn handlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		out := chatResponder{c: c}
		in, err := t.input(c)
		if errors.Is(err, errTooLarge) {
			return say(ctx, out, fmt.Sprintf("The file is larger than %d KiB.", MaxUploadBytes>>10))
		}
		if err != nil {
			return t.svc.fail(ctx, out, "document.fetch", err)
		}
		return fn(ctx, in, out)
	}
}

func (t *Telegram) input(c tele.Context) (Input, error) {
	user := c.Sender()
	if user == nil {
		return Input{}, errors.New("update without sender")
	}
	in := Input{
		UserID:   user.ID,
		Username: user.Username,
		FullName: strings.TrimSpace(user.FirstName + " " + user.LastName),
	}
	if cb := c.Callback(); cb != nil {
		in.Action, in.Arg = keyboard.Decode(cb)
		return in, nil
	}
	in.Text = c.Text()
	if msg := c.Message(); msg != nil && msg.Document != nil {
		data, err := t.fetch(c, msg.Document)
		if err != nil {
			return in, err
		}
		in.Document = &Document{Name: msg.Document.FileName, Data: data}
	}
	return in, nil
}

func downloadDocument(c tele.Context, doc *tele.Document) ([]byte, error) {
	if int64(doc.FileSize) > MaxUploadBytes {
		return nil, errTooLarge
	}
	rc, err := c.Bot().File(&doc.File)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", doc.FileName, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", doc.FileName, err)
	}
	if len(data) > MaxUploadBytes {
		return nil, errTooLarge
	}
	return data, nil
}

// chatResponder sends replies to the chat of the update.
type chatResponder struct {
	c tele.Context
}

func (r chatResponder) Send(_ context.Context, reply Reply) error {
	if len(reply.Buttons) == 0 {
		return tghelpers.SendText(r.c, reply.Text)
	}
	rows := make([][]keyboard.Button, 0, len(reply.Buttons))
	for _, row := range reply.Buttons {
		btns := make([]keyboard.Button, 0, len(row))
		for _, b := range row {
			btns = append(btns, keyboard.Button{Text: b.Text, Action: b.Action, Arg: b.Arg})
		}
		rows = append(rows, btns)
	}
	return tghelpers.SendText(r.c, reply.Text, &tele.SendOptions{ReplyMarkup: keyboard.Inline(rows...)})
}
