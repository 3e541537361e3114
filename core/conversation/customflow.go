package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/m3rciful/pressbot/core/logger"
	"github.com/m3rciful/pressbot/core/placeholder"
)

// FlowStep is the question the custom placeholder flow is waiting on.
type FlowStep string

const (
	StepChoose  FlowStep = "choose"
	StepLabel   FlowStep = "label"
	StepKind    FlowStep = "kind"
	StepOptions FlowStep = "options"
)

// ErrUnexpectedStep is returned when an answer arrives for a step the flow is
// not on.
var ErrUnexpectedStep = errors.New("answer does not match the current step")

// DraftRecord is one custom placeholder configured during the flow.
type DraftRecord struct {
	Name    string           `json:"name"`
	Label   string           `json:"label,omitempty"`
	Kind    placeholder.Kind `json:"kind,omitempty"`
	Options []string         `json:"options,omitempty"`
}

// Placeholder converts the record into its catalog form.
func (r DraftRecord) Placeholder() placeholder.Placeholder {
	return placeholder.Placeholder{
		Name:    r.Name,
		Label:   r.Label,
		Kind:    r.Kind,
		Options: slices.Clone(r.Options),
		Origin:  placeholder.OriginCustom,
	}
}

// CustomFlow walks the user through the unknown placeholders of an uploaded
// template one at a time. Nothing reaches storage until Commit.
type CustomFlow struct {
	SiteID  int64         `json:"site_id"`
	Pending []string      `json:"pending"`
	Index   int           `json:"index"`
	Step    FlowStep      `json:"step"`
	Current DraftRecord   `json:"current"`
	Draft   []DraftRecord `json:"draft,omitempty"`
}

// NewCustomFlow starts a flow over the given unknown names.
func NewCustomFlow(siteID int64, unknown []string) *CustomFlow {
	return &CustomFlow{
		SiteID:  siteID,
		Pending: slices.Clone(unknown),
		Step:    StepChoose,
	}
}

func (f *CustomFlow) clone() *CustomFlow {
	out := *f
	out.Pending = slices.Clone(f.Pending)
	out.Current.Options = slices.Clone(f.Current.Options)
	out.Draft = make([]DraftRecord, len(f.Draft))
	for i, r := range f.Draft {
		r.Options = slices.Clone(r.Options)
		out.Draft[i] = r
	}
	return &out
}

// Name returns the placeholder currently being decided on.
func (f *CustomFlow) Name() (string, bool) {
	if f.Done() {
		return "", false
	}
	return f.Pending[f.Index], true
}

// Done reports whether every pending name has been configured or skipped.
func (f *CustomFlow) Done() bool {
	return f.Index >= len(f.Pending)
}

// Progress returns the 1-based position of the current name and the total.
func (f *CustomFlow) Progress() (int, int) {
	return min(f.Index+1, len(f.Pending)), len(f.Pending)
}

// Configure accepts the current name as a custom placeholder and asks for
// its label. A name owned by the builtin catalog is refused.
func (f *CustomFlow) Configure() error {
	name, ok := f.Name()
	if !ok || f.Step != StepChoose {
		return ErrUnexpectedStep
	}
	if placeholder.IsBuiltin(name) {
		return fmt.Errorf("%s: %w", name, placeholder.ErrNameCollision)
	}
	f.Current = DraftRecord{Name: name}
	f.Step = StepLabel
	return nil
}

// Skip drops the current name without recording it.
func (f *CustomFlow) Skip() error {
	if f.Done() {
		return ErrUnexpectedStep
	}
	f.advance()
	return nil
}

// SetLabel records the display label of the current name.
func (f *CustomFlow) SetLabel(label string) error {
	if f.Step != StepLabel || f.Done() {
		return ErrUnexpectedStep
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return &placeholder.ValidationError{Field: "label", Reason: "label must not be empty"}
	}
	f.Current.Label = label
	f.Step = StepKind
	return nil
}

// SetKind records the kind of the current name. Enumerated kinds continue
// with the options step; every other kind completes the record.
func (f *CustomFlow) SetKind(kind placeholder.Kind) error {
	if f.Step != StepKind || f.Done() {
		return ErrUnexpectedStep
	}
	if !slices.Contains(placeholder.Kinds(), kind) {
		return &placeholder.ValidationError{Field: "kind", Reason: fmt.Sprintf("unsupported kind %q", kind)}
	}
	f.Current.Kind = kind
	if kind == placeholder.KindEnumerated {
		f.Step = StepOptions
		return nil
	}
	f.record()
	return nil
}

// SetOptions records the comma separated allowed values of an enumerated
// placeholder and completes the record.
func (f *CustomFlow) SetOptions(raw string) error {
	if f.Step != StepOptions || f.Done() {
		return ErrUnexpectedStep
	}
	opts := placeholder.SplitOptions(raw)
	if len(opts) == 0 {
		return &placeholder.ValidationError{Field: "options", Reason: "at least one option is required"}
	}
	f.Current.Options = opts
	f.record()
	return nil
}

func (f *CustomFlow) record() {
	f.Draft = append(f.Draft, f.Current)
	f.advance()
}

func (f *CustomFlow) advance() {
	f.Current = DraftRecord{}
	f.Step = StepChoose
	f.Index++
}

// CustomSink stores the custom placeholders of a site.
type CustomSink interface {
	DeleteCustom(ctx context.Context, siteID int64) error
	CreateCustom(ctx context.Context, siteID int64, p placeholder.Placeholder) error
}

// CommitFailure names a draft record that could not be stored.
type CommitFailure struct {
	Name string
	Err  error
}

// CommitReport summarises a Commit.
type CommitReport struct {
	Attempted int
	Succeeded int
	Failures  []CommitFailure
}

// OK reports whether every record was stored.
func (r CommitReport) OK() bool {
	return r.Succeeded == r.Attempted
}

func (r CommitReport) String() string {
	return fmt.Sprintf("%d of %d", r.Succeeded, r.Attempted)
}

// Commit replaces the site's custom placeholders with the draft. A failure to
// clear the previous set aborts before anything is created; failures of
// individual records are reported and do not stop the rest.
func (f *CustomFlow) Commit(ctx context.Context, sink CustomSink) (CommitReport, error) {
	report := CommitReport{Attempted: len(f.Draft)}
	if err := sink.DeleteCustom(ctx, f.SiteID); err != nil {
		logger.Error(ctx, "template", "placeholder.commit",
			slog.String("status", "fail"),
			slog.Int64("site_id", f.SiteID),
			slog.String("err", err.Error()),
		)
		return report, fmt.Errorf("clear custom placeholders of site %d: %w", f.SiteID, err)
	}
	for _, rec := range f.Draft {
		if err := sink.CreateCustom(ctx, f.SiteID, rec.Placeholder()); err != nil {
			report.Failures = append(report.Failures, CommitFailure{Name: rec.Name, Err: err})
			logger.Warn(ctx, "template", "placeholder.commit.item",
				slog.String("status", "fail"),
				slog.Int64("site_id", f.SiteID),
				slog.String("name", rec.Name),
				slog.String("err", err.Error()),
			)
			continue
		}
		report.Succeeded++
	}
	status := "ok"
	if !report.OK() {
		status = "fail"
	}
	logger.Info(ctx, "template", "placeholder.commit",
		slog.String("status", status),
		slog.Int64("site_id", f.SiteID),
		slog.Int("count", report.Succeeded),
		slog.Int("attempted", report.Attempted),
	)
	return report, nil
}
