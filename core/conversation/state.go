package conversation

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
)

// SitePayload accumulates the answers of the site configuration steps.
type SitePayload struct {
	SiteID int64  `json:"site_id,omitempty"`
	Step   string `json:"step,omitempty"`
	Name   string `json:"name,omitempty"`
	Domain string `json:"domain,omitempty"`
}

// TransportPayload accumulates the publishing destination of a site.
type TransportPayload struct {
	SiteID      int64  `json:"site_id,omitempty"`
	PublishPath string `json:"publish_path,omitempty"`
}

// PostPayload is the post being written.
type PostPayload struct {
	SiteID          int64             `json:"site_id,omitempty"`
	Step            string            `json:"step,omitempty"`
	Title           string            `json:"title,omitempty"`
	Description     string            `json:"description,omitempty"`
	FeatureImage    string            `json:"feature_image,omitempty"`
	FeatureImageAlt string            `json:"feature_image_alt,omitempty"`
	Category        string            `json:"category,omitempty"`
	Content         string            `json:"content,omitempty"`
	Sources         string            `json:"sources,omitempty"`
	PublishedAt     string            `json:"published_at,omitempty"`
	Custom          map[string]string `json:"custom,omitempty"`
	CustomIndex     int               `json:"custom_index,omitempty"`
	EditField       string            `json:"edit_field,omitempty"`
	// PostID and PublishedPath are set when a published post is revised.
	PostID        string `json:"post_id,omitempty"`
	PublishedPath string `json:"published_path,omitempty"`
}

// CategoryPayload tracks the category being created or changed.
type CategoryPayload struct {
	SiteID     int64  `json:"site_id,omitempty"`
	CategoryID int64  `json:"category_id,omitempty"`
	Step       string `json:"step,omitempty"`
	Name       string `json:"name,omitempty"`
}

// State is everything the engine remembers about one user. Typed payloads
// hold the structured accumulators of their phase; Scratch carries loose
// values set through Manager.SetValue.
type State struct {
	Phase     Phase
	Site      *SitePayload
	Transport *TransportPayload
	Post      *PostPayload
	Category  *CategoryPayload
	Custom    *CustomFlow
	Scratch   map[string]any
}

func newState() *State {
	return &State{Phase: PhaseIdle, Scratch: map[string]any{}}
}

// Clone returns a deep copy of s. Scratch values are copied by value, so
// reference types stored there stay shared.
func (s *State) Clone() *State {
	if s == nil {
		return newState()
	}
	out := &State{Phase: s.Phase, Scratch: make(map[string]any, len(s.Scratch))}
	maps.Copy(out.Scratch, s.Scratch)
	if s.Site != nil {
		v := *s.Site
		out.Site = &v
	}
	if s.Transport != nil {
		v := *s.Transport
		out.Transport = &v
	}
	if s.Post != nil {
		v := *s.Post
		v.Custom = maps.Clone(s.Post.Custom)
		out.Post = &v
	}
	if s.Category != nil {
		v := *s.Category
		out.Category = &v
	}
	if s.Custom != nil {
		out.Custom = s.Custom.clone()
	}
	return out
}

// ClearData drops every payload and scratch value, keeping the phase.
func (s *State) ClearData() {
	s.Site = nil
	s.Transport = nil
	s.Post = nil
	s.Category = nil
	s.Custom = nil
	s.Scratch = map[string]any{}
}

func (s *State) check() error {
	if !s.Phase.Valid() {
		return fmt.Errorf("%w: unknown phase %d", ErrCorruptState, int(s.Phase))
	}
	if s.Phase == PhaseConfiguringCustomPlaceholder {
		if s.Custom == nil {
			return fmt.Errorf("%w: %s without a flow", ErrCorruptState, s.Phase)
		}
		if s.Custom.Index < 0 || s.Custom.Index > len(s.Custom.Pending) {
			return fmt.Errorf("%w: flow index %d out of range", ErrCorruptState, s.Custom.Index)
		}
	}
	return nil
}

type stateData struct {
	Site      *SitePayload      `json:"site,omitempty"`
	Transport *TransportPayload `json:"transport,omitempty"`
	Post      *PostPayload      `json:"post,omitempty"`
	Category  *CategoryPayload  `json:"category,omitempty"`
	Custom    *CustomFlow       `json:"custom,omitempty"`
	Scratch   map[string]any    `json:"scratch,omitempty"`
}

func encodeState(userID int64, s *State) (Row, error) {
	data, err := json.Marshal(stateData{
		Site:      s.Site,
		Transport: s.Transport,
		Post:      s.Post,
		Category:  s.Category,
		Custom:    s.Custom,
		Scratch:   s.Scratch,
	})
	if err != nil {
		return Row{}, fmt.Errorf("encode state: %w", err)
	}
	return Row{UserID: userID, Phase: int(s.Phase), Data: data}, nil
}

func decodeRow(row Row) (*State, error) {
	st := newState()
	st.Phase = Phase(row.Phase)
	if len(row.Data) > 0 {
		var d stateData
		if err := json.Unmarshal(row.Data, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
		}
		st.Site, st.Transport, st.Post, st.Custom = d.Site, d.Transport, d.Post, d.Custom
		st.Category = d.Category
		if d.Scratch != nil {
			st.Scratch = d.Scratch
		}
	}
	if err := st.check(); err != nil {
		return nil, err
	}
	return st, nil
}

// Int64Value converts a scratch value to int64. Values read back from the
// row store arrive as float64.
func Int64Value(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), float64(int64(n)) == n
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// StringValue converts a scratch value to a string.
func StringValue(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
