package browser

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ElementType classifies an interactable element for the model.
type ElementType string

const (
	ElementText   ElementType = "text"
	ElementLink   ElementType = "link"
	ElementButton ElementType = "button"
	ElementInput  ElementType = "input"
)

// Element is one entry of the rendered viewport.
type Element struct {
	ID      string      `json:"id"`
	Type    ElementType `json:"type"`
	Content string      `json:"content"`
}

// Viewport is what the model sees of the current page.
type Viewport struct {
	URL      string    `json:"url"`
	Elements []Element `json:"elements"`
}

// Session is a per-task browsing session over a raw driver. The driver's
// raw handles never reach the model: each element gets a session-scoped
// numeric id on first observation and keeps it for the session's
// lifetime, so an id from an earlier read stays clickable after
// scrolling or re-reading.
type Session struct {
	driver   Driver
	notebook Notebook

	mu      sync.Mutex
	ids     map[string]string // raw handle -> stable id
	handles map[string]string // stable id -> raw handle
	nextID  int
}

// NewSession wraps a driver.
func NewSession(driver Driver) *Session {
	return &Session{
		driver:  driver,
		ids:     make(map[string]string),
		handles: make(map[string]string),
	}
}

// Notebook returns the session's notebook.
func (s *Session) Notebook() *Notebook { return &s.notebook }

// stableID returns the id assigned to a raw handle, assigning the next
// free one on first sight.
func (s *Session) stableID(rawHandle string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.ids[rawHandle]; ok {
		return id
	}
	s.nextID++
	id := strconv.Itoa(s.nextID)
	s.ids[rawHandle] = id
	s.handles[id] = rawHandle
	return id
}

// resolve maps a stable id back to the driver's raw handle.
func (s *Session) resolve(stableID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.handles[stableID]
	if !ok {
		return "", fmt.Errorf("unknown element id %q, read the page first", stableID)
	}
	return raw, nil
}

// Navigate loads a URL and returns the resulting viewport.
func (s *Session) Navigate(ctx context.Context, url string) (*Viewport, error) {
	if err := s.driver.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	return s.CurrentViewport(ctx)
}

// Click activates an element by stable id and returns the updated viewport.
func (s *Session) Click(ctx context.Context, elementID string) (*Viewport, error) {
	raw, err := s.resolve(elementID)
	if err != nil {
		return nil, err
	}
	if err := s.driver.Click(ctx, raw); err != nil {
		return nil, fmt.Errorf("click %s: %w", elementID, err)
	}
	return s.CurrentViewport(ctx)
}

// TypeText fills an input element by stable id and returns the updated
// viewport.
func (s *Session) TypeText(ctx context.Context, elementID, text string) (*Viewport, error) {
	raw, err := s.resolve(elementID)
	if err != nil {
		return nil, err
	}
	if err := s.driver.TypeText(ctx, raw, text); err != nil {
		return nil, fmt.Errorf("type into %s: %w", elementID, err)
	}
	return s.CurrentViewport(ctx)
}

// ScrollDown scrolls one viewport height and returns the updated viewport.
func (s *Session) ScrollDown(ctx context.Context) (*Viewport, error) {
	if err := s.driver.ScrollDown(ctx); err != nil {
		return nil, fmt.Errorf("scroll: %w", err)
	}
	return s.CurrentViewport(ctx)
}

// CurrentViewport reads and classifies the visible elements.
func (s *Session) CurrentViewport(ctx context.Context) (*Viewport, error) {
	url, err := s.driver.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("current url: %w", err)
	}
	raw, err := s.driver.ViewportElements(ctx)
	if err != nil {
		return nil, fmt.Errorf("viewport elements: %w", err)
	}
	vp := &Viewport{URL: url}
	for _, r := range raw {
		el := classify(r)
		if el.Content == "" && el.Type == ElementText {
			continue
		}
		el.ID = s.stableID(r.ID)
		vp.Elements = append(vp.Elements, el)
	}
	return vp, nil
}

// SaveToNotebook appends text to the notebook under the current URL.
func (s *Session) SaveToNotebook(ctx context.Context, text string) error {
	url, err := s.driver.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("current url: %w", err)
	}
	s.notebook.Append(url, text)
	return nil
}

// ReplaceNotebook discards all notes and starts over with text, recorded
// under the current URL.
func (s *Session) ReplaceNotebook(ctx context.Context, text string) error {
	url, err := s.driver.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("current url: %w", err)
	}
	s.notebook.Replace(url, text)
	return nil
}

// Close shuts down the underlying driver.
func (s *Session) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// classify maps a raw element onto the model-facing shape. The content
// fallback order depends on the element type.
func classify(r RawElement) Element {
	var el Element
	switch strings.ToLower(r.Tag) {
	case "a":
		el.Type = ElementLink
		el.Content = firstNonEmpty(r.Text, r.Title)
	case "button", "submit":
		el.Type = ElementButton
		el.Content = firstNonEmpty(r.Text, r.Value)
	case "input", "textarea", "select":
		el.Type = ElementInput
		el.Content = firstNonEmpty(r.Value, r.Placeholder, r.Label, r.Name)
	default:
		el.Type = ElementText
		el.Content = r.Text
	}
	return el
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}

// Render formats a viewport for inclusion in a tool result.
func (v *Viewport) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", v.URL)
	if len(v.Elements) == 0 {
		b.WriteString("No visible elements.\n")
		return b.String()
	}
	for _, el := range v.Elements {
		fmt.Fprintf(&b, "[%s] %s: %s\n", el.ID, el.Type, el.Content)
	}
	return b.String()
}
