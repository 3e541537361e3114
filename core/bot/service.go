// Package bot implements the chat dialogues of pressbot on top of the
// conversation engine: registration, site setup, template upload with the
// custom placeholder flow, and writing and publishing posts. It knows nothing
// about Telegram; the transport turns updates into Input values and renders
// Reply values.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/logger"
	"github.com/m3rciful/pressbot/core/placeholder"
	"github.com/m3rciful/pressbot/core/publish"
	"github.com/m3rciful/pressbot/core/store"
)

// Button actions. The transport sends them back verbatim in Input.Action.
const (
	ActCancel    = "cancel"
	ActConfigure = "ph_configure"
	ActSkip      = "ph_skip"
	ActKind      = "ph_kind"
	ActChoice    = "post_choice"
	ActPublish   = "post_publish"
	ActEdit      = "post_edit"
	ActEditField = "post_field"
	ActUpload    = "post_upload"
	ActOpenPost  = "post_open"
	ActFeature   = "post_feature"
	ActCatNew    = "cat_new"
	ActCatRename = "cat_rename"
	ActCatColor  = "cat_color"
	ActCatDelete = "cat_delete"
	ActDone      = "done"
)

// Actions lists every button action the service understands.
func Actions() []string {
	return []string{
		ActCancel, ActConfigure, ActSkip, ActKind, ActChoice, ActPublish, ActEdit, ActEditField,
		ActUpload, ActOpenPost, ActFeature, ActCatNew, ActCatRename, ActCatColor, ActCatDelete, ActDone,
	}
}

// Button is an inline choice attached to a reply.
type Button struct {
	Text   string
	Action string
	Arg    string
}

// Reply is one message to the user.
type Reply struct {
	Text    string
	Buttons [][]Button
}

// Responder delivers replies to the user an input came from.
type Responder interface {
	Send(ctx context.Context, r Reply) error
}

// Document is an uploaded file already fetched by the transport.
type Document struct {
	Name string
	Data []byte
}

// Input is one user event: a message, an uploaded document or a button press.
type Input struct {
	UserID   int64
	Username string
	FullName string
	Text     string
	Document *Document
	Action   string
	Arg      string
}

// Users is the account storage used by the service.
type Users interface {
	Register(ctx context.Context, id int64, username, fullName string) (store.User, bool, error)
	Get(ctx context.Context, id int64) (store.User, error)
	SetStatus(ctx context.Context, id int64, status string) error
}

// Sites is the site storage used by the service.
type Sites interface {
	Save(ctx context.Context, ownerID int64, name, domain string) (store.Site, error)
	ByOwner(ctx context.Context, ownerID int64) (store.Site, error)
	SetPublishPath(ctx context.Context, siteID int64, path string) error
	SetTemplate(ctx context.Context, siteID int64, html string) error
}

// Placeholders reads and replaces the custom placeholders of a site.
type Placeholders interface {
	placeholder.CustomSource
	conversation.CustomSink
}

// Posts records published posts.
type Posts interface {
	Record(ctx context.Context, p *store.Post) error
	Update(ctx context.Context, p *store.Post) error
	Get(ctx context.Context, id uuid.UUID) (store.Post, error)
	ByPath(ctx context.Context, siteID int64, path string) (store.Post, error)
	ListBySite(ctx context.Context, siteID int64, limit int) ([]store.Post, error)
	SetFeatured(ctx context.Context, id uuid.UUID, featured bool) error
}

// Categories stores the categories of a site.
type Categories interface {
	List(ctx context.Context, siteID int64) ([]store.Category, error)
	Get(ctx context.Context, id int64) (store.Category, error)
	Create(ctx context.Context, siteID int64, name, color string) (store.Category, error)
	Rename(ctx context.Context, id int64, name string) (int64, error)
	Recolor(ctx context.Context, id int64, color string) error
	Delete(ctx context.Context, id int64, fallback string) (store.Category, int64, error)
}

// Events receives domain outcomes, typically the metrics exporter.
type Events interface {
	PlaceholderCommit(report conversation.CommitReport)
	Published(err error)
}

// Deps wires a Service.
type Deps struct {
	States       *conversation.Manager
	Users        Users
	Sites        Sites
	Placeholders Placeholders
	Posts        Posts
	Categories   Categories
	Sink         publish.Sink
	Composer     publish.Composer
	Events       Events
	// AdminID may activate and deactivate accounts.
	AdminID int64
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service runs the dialogues. Calls for different users may run
// concurrently; calls for one user must be serialized by the caller.
type Service struct {
	states       *conversation.Manager
	users        Users
	sites        Sites
	placeholders Placeholders
	posts        Posts
	categories   Categories
	sink         publish.Sink
	composer     publish.Composer
	events       Events
	adminID      int64
	now          func() time.Time
}

// New builds a Service. Every repository and the sink are required.
func New(d Deps) (*Service, error) {
	switch {
	case d.States == nil:
		return nil, errors.New("bot: nil state manager")
	case d.Users == nil, d.Sites == nil, d.Placeholders == nil, d.Posts == nil, d.Categories == nil:
		return nil, errors.New("bot: missing repository")
	case d.Sink == nil:
		return nil, errors.New("bot: nil publish sink")
	}
	s := &Service{
		states:       d.States,
		users:        d.Users,
		sites:        d.Sites,
		placeholders: d.Placeholders,
		posts:        d.Posts,
		categories:   d.Categories,
		sink:         d.Sink,
		composer:     d.Composer,
		events:       d.Events,
		adminID:      d.AdminID,
		now:          d.Now,
	}
	if s.events == nil {
		s.events = nopEvents{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.composer.Now == nil {
		s.composer.Now = s.now
	}
	return s, nil
}

type nopEvents struct{}

func (nopEvents) PlaceholderCommit(conversation.CommitReport) {}
func (nopEvents) Published(error)                             {}

// States exposes the conversation engine, used by the transport to route
// free text.
func (s *Service) States() *conversation.Manager { return s.states }

const (
	msgFailed      = "Something went wrong on our side. Please try again."
	msgAdminOnly   = "Only the administrator can do that."
	msgNotActive   = "Your account is not active yet. An administrator has to activate it."
	msgInactive    = "Your account is disabled."
	msgUnknownUser = "Send /start to register first."
	msgNoSite      = "You have no site yet. Configure one with /site."
	msgExpired     = "This button is no longer valid."
)

func say(ctx context.Context, out Responder, text string, rows ...[]Button) error {
	return out.Send(ctx, Reply{Text: text, Buttons: rows})
}

// fail reports an infrastructure error to the user and returns it to the
// transport for logging.
func (s *Service) fail(ctx context.Context, out Responder, op string, err error) error {
	logger.Error(ctx, "bot", op,
		slog.String("status", "fail"),
		slog.String("err", err.Error()),
	)
	if sendErr := say(ctx, out, msgFailed); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return err
}

// rejected answers an invalid user input. Rejections are not errors.
func rejected(ctx context.Context, out Responder, err error) error {
	var verr *placeholder.ValidationError
	var merr *placeholder.MissingPlaceholdersError
	switch {
	case errors.As(err, &verr):
		return say(ctx, out, "Invalid "+verr.Field+": "+verr.Reason+".")
	case errors.As(err, &merr):
		return say(ctx, out, "Missing placeholders: "+strings.Join(tokens(merr.Names), ", "))
	case errors.Is(err, placeholder.ErrNameCollision):
		return say(ctx, out, "That name belongs to a builtin placeholder and cannot be redefined. Skip it instead.")
	case errors.Is(err, conversation.ErrUnexpectedStep), errors.Is(err, conversation.ErrNoCustomFlow):
		return say(ctx, out, "That answer does not fit the current question.")
	default:
		return say(ctx, out, err.Error())
	}
}

// isRejection reports whether err is caused by the user's answer rather
// than by storage.
func isRejection(err error) bool {
	var verr *placeholder.ValidationError
	var merr *placeholder.MissingPlaceholdersError
	return errors.As(err, &verr) || errors.As(err, &merr) ||
		errors.Is(err, placeholder.ErrNameCollision) ||
		errors.Is(err, conversation.ErrUnexpectedStep) ||
		errors.Is(err, conversation.ErrNoCustomFlow)
}

// settle answers err: rejections are explained, anything else is reported
// as a failure of op.
func (s *Service) settle(ctx context.Context, out Responder, op string, err error) error {
	if err == nil {
		return nil
	}
	if isRejection(err) {
		return rejected(ctx, out, err)
	}
	return s.fail(ctx, out, op, err)
}

func tokens(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = placeholder.Token(n)
	}
	return out
}

// requireActive replies and returns false when in.UserID may not use
// account commands.
func (s *Service) requireActive(ctx context.Context, in Input, out Responder) (bool, error) {
	u, err := s.users.Get(ctx, in.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return false, say(ctx, out, msgUnknownUser)
	}
	if err != nil {
		return false, s.fail(ctx, out, "user.lookup", err)
	}
	switch u.Status {
	case store.StatusActive:
		return true, nil
	case store.StatusInactive:
		return false, say(ctx, out, msgInactive)
	default:
		return false, say(ctx, out, msgNotActive)
	}
}

// requireSite loads the site of the user, replying when there is none.
func (s *Service) requireSite(ctx context.Context, in Input, out Responder) (store.Site, bool, error) {
	site, err := s.sites.ByOwner(ctx, in.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Site{}, false, say(ctx, out, msgNoSite)
	}
	if err != nil {
		return store.Site{}, false, s.fail(ctx, out, "site.lookup", err)
	}
	return site, true, nil
}

func cancelRow() []Button {
	return []Button{{Text: "Cancel", Action: ActCancel}}
}

func (s *Service) toIdle(ctx context.Context, userID int64) error {
	return s.states.Update(ctx, userID, func(st *conversation.State) error {
		st.Phase = conversation.PhaseIdle
		st.ClearData()
		return nil
	})
}

func label(p placeholder.Placeholder) string {
	if p.Label != "" {
		return p.Label
	}
	return p.Name
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
