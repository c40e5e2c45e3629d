package browser

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// fakeDriver serves a static page description.
type fakeDriver struct {
	url      string
	elements []RawElement
	clicked  []string
	typed    map[string]string
	scrolls  int
	closed   bool
}

func (f *fakeDriver) Navigate(ctx context.Context, url string) error {
	f.url = url
	return nil
}

func (f *fakeDriver) CurrentURL(ctx context.Context) (string, error) { return f.url, nil }

func (f *fakeDriver) ViewportElements(ctx context.Context) ([]RawElement, error) {
	return f.elements, nil
}

func (f *fakeDriver) Click(ctx context.Context, id string) error {
	for _, el := range f.elements {
		if el.ID == id {
			f.clicked = append(f.clicked, id)
			return nil
		}
	}
	return fmt.Errorf("no element %s", id)
}

func (f *fakeDriver) TypeText(ctx context.Context, id, text string) error {
	if f.typed == nil {
		f.typed = make(map[string]string)
	}
	f.typed[id] = text
	return nil
}

func (f *fakeDriver) ScrollDown(ctx context.Context) error {
	f.scrolls++
	return nil
}

func (f *fakeDriver) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func TestClassifyPrecedence(t *testing.T) {
	cases := []struct {
		raw     RawElement
		typ     ElementType
		content string
	}{
		{RawElement{ID: "1", Tag: "a", Text: "Docs", Title: "ignored"}, ElementLink, "Docs"},
		{RawElement{ID: "2", Tag: "a", Title: "Home"}, ElementLink, "Home"},
		{RawElement{ID: "3", Tag: "button", Value: "Send"}, ElementButton, "Send"},
		{RawElement{ID: "4", Tag: "button", Text: "Go", Value: "ignored"}, ElementButton, "Go"},
		{RawElement{ID: "5", Tag: "input", Placeholder: "Search"}, ElementInput, "Search"},
		{RawElement{ID: "6", Tag: "input", Value: "typed", Placeholder: "ignored"}, ElementInput, "typed"},
		{RawElement{ID: "7", Tag: "input", Label: "Email"}, ElementInput, "Email"},
		{RawElement{ID: "8", Tag: "input", Name: "q"}, ElementInput, "q"},
		{RawElement{ID: "9", Tag: "p", Text: "hello"}, ElementText, "hello"},
		// Surrounding markup whitespace is stripped from the content.
		{RawElement{ID: "10", Tag: "a", Text: "\n  Docs  \n"}, ElementLink, "Docs"},
		{RawElement{ID: "11", Tag: "button", Text: "   ", Value: " Send "}, ElementButton, "Send"},
	}
	for _, c := range cases {
		el := classify(c.raw)
		if el.Type != c.typ || el.Content != c.content {
			t.Errorf("classify(%+v) = %+v, want %s %q", c.raw, el, c.typ, c.content)
		}
	}
}

func TestNavigateRendersViewport(t *testing.T) {
	d := &fakeDriver{elements: []RawElement{
		{ID: "raw-h1", Tag: "h1", Text: "Results"},
		{ID: "raw-a", Tag: "a", Text: "First hit"},
		{ID: "raw-div", Tag: "div"}, // empty text nodes are dropped
	}}
	s := NewSession(d)

	vp, err := s.Navigate(context.Background(), "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if vp.URL != "https://example.com" {
		t.Errorf("url = %q", vp.URL)
	}
	if len(vp.Elements) != 2 {
		t.Fatalf("elements = %d, want 2", len(vp.Elements))
	}

	rendered := vp.Render()
	if !strings.Contains(rendered, "[2] link: First hit") {
		t.Errorf("render:\n%s", rendered)
	}
}

func TestStableIDsSurviveRereadsAndScrolling(t *testing.T) {
	d := &fakeDriver{elements: []RawElement{
		{ID: "raw-title", Tag: "h1", Text: "Shop"},
		{ID: "raw-buy", Tag: "button", Text: "Buy"},
	}}
	s := NewSession(d)
	ctx := context.Background()

	first, err := s.Navigate(ctx, "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	buyID := first.Elements[1].ID

	// Scrolling reveals a new element; already-seen ones keep their ids.
	d.elements = append(d.elements, RawElement{ID: "raw-footer", Tag: "a", Text: "Contact"})
	second, err := s.ScrollDown(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.Elements[1].ID != buyID {
		t.Errorf("buy button id changed: %q -> %q", buyID, second.Elements[1].ID)
	}
	if second.Elements[2].ID == buyID {
		t.Error("new element reused an existing id")
	}

	third, err := s.CurrentViewport(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if third.Elements[1].ID != buyID {
		t.Errorf("re-read changed the id: %q -> %q", buyID, third.Elements[1].ID)
	}
}

func TestClickResolvesStableIDToRawHandle(t *testing.T) {
	d := &fakeDriver{elements: []RawElement{
		{ID: "raw-buy", Tag: "button", Text: "Buy"},
	}}
	s := NewSession(d)
	ctx := context.Background()

	vp, err := s.Navigate(ctx, "https://example.com")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Click(ctx, vp.Elements[0].ID); err != nil {
		t.Fatal(err)
	}
	if len(d.clicked) != 1 || d.clicked[0] != "raw-buy" {
		t.Errorf("driver clicked %v, want [raw-buy]", d.clicked)
	}

	if _, err := s.Click(ctx, "99"); err == nil {
		t.Error("clicking an id never observed should fail")
	}
}

func TestNotebookAppendReplaceClear(t *testing.T) {
	d := &fakeDriver{}
	s := NewSession(d)
	ctx := context.Background()
	if _, err := s.Navigate(ctx, "https://example.com/a"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveToNotebook(ctx, "fact one"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Navigate(ctx, "https://example.com/b"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveToNotebook(ctx, "fact two"); err != nil {
		t.Fatal(err)
	}

	content := s.Notebook().Content()
	if !strings.Contains(content, "## https://example.com/a\nfact one") {
		t.Errorf("notebook:\n%s", content)
	}
	if !strings.Contains(content, "---") {
		t.Error("entries should be separated")
	}

	if err := s.ReplaceNotebook(ctx, "the distilled summary"); err != nil {
		t.Fatal(err)
	}
	content = s.Notebook().Content()
	if strings.Contains(content, "fact one") || !strings.Contains(content, "the distilled summary") {
		t.Errorf("replace kept old entries:\n%s", content)
	}

	s.Notebook().Clear()
	if !s.Notebook().Empty() {
		t.Error("notebook should be empty after clear")
	}
}

func TestManagerReusesAndCloses(t *testing.T) {
	var created int
	m := NewManager(func(ctx context.Context) (Driver, error) {
		created++
		return &fakeDriver{}, nil
	})

	ctx := context.Background()
	s1, err := m.Session(ctx, "task_1")
	if err != nil {
		t.Fatal(err)
	}
	s2, err := m.Session(ctx, "task_1")
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 || created != 1 {
		t.Errorf("session not reused: created=%d", created)
	}

	if _, ok := m.Peek("task_1"); !ok {
		t.Error("peek should see the open session")
	}
	if _, ok := m.Peek("task_9"); ok {
		t.Error("peek must not create sessions")
	}

	if _, err := m.Session(ctx, "task_2"); err != nil {
		t.Fatal(err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}

	if err := m.CloseSession(ctx, "task_1"); err != nil {
		t.Fatal(err)
	}
	s3, err := m.Session(ctx, "task_1")
	if err != nil {
		t.Fatal(err)
	}
	if s3 == s1 {
		t.Error("closed session should not be handed out again")
	}
}
