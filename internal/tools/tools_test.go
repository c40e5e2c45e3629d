package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/helmsman-ai/helmsman/internal/browser"
	"github.com/helmsman-ai/helmsman/internal/sandbox"
	"github.com/helmsman-ai/helmsman/internal/types"
)

func testDeps(t *testing.T) *Deps {
	t.Helper()
	sb, err := sandbox.New(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return &Deps{Sandbox: sb}
}

func TestForTaskRespectsCapabilities(t *testing.T) {
	d := testDeps(t)
	ctx := context.Background()
	task := &types.Task{ID: "task_1", CompanyID: "co1"}

	plain, err := d.ForTask(ctx, task, &types.Agent{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := plain.Get("execute"); ok {
		t.Error("execute should need the code interpreter flag")
	}
	if _, ok := plain.Get(ToolDone); !ok {
		t.Error("control tools should always be present")
	}

	coder, err := d.ForTask(ctx, task, &types.Agent{CodeInterpreterEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"execute", "save"} {
		if _, ok := coder.Get(name); !ok {
			t.Errorf("missing tool %s", name)
		}
	}
	if _, ok := coder.Get("navigate"); ok {
		t.Error("navigate should need the browsing flag")
	}
}

type stubDriver struct{ url string }

func (d *stubDriver) Navigate(_ context.Context, url string) error { d.url = url; return nil }
func (d *stubDriver) CurrentURL(context.Context) (string, error)   { return d.url, nil }
func (d *stubDriver) ViewportElements(context.Context) ([]browser.RawElement, error) {
	return nil, nil
}
func (d *stubDriver) Click(context.Context, string) error           { return nil }
func (d *stubDriver) TypeText(context.Context, string, string) error { return nil }
func (d *stubDriver) ScrollDown(context.Context) error              { return nil }
func (d *stubDriver) Close(context.Context) error                   { return nil }

func TestNotebookToolsAndContent(t *testing.T) {
	d := testDeps(t)
	d.Browser = browser.NewManager(func(context.Context) (browser.Driver, error) {
		return &stubDriver{}, nil
	})
	ctx := context.Background()
	task := &types.Task{ID: "task_1", CompanyID: "co1"}
	set, err := d.ForTask(ctx, task, &types.Agent{WebBrowsingEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"navigate", "save_to_notebook", "replace_notebook"} {
		if _, ok := set.Get(name); !ok {
			t.Errorf("missing tool %s", name)
		}
	}

	if got := d.NotebookContent(task.ID); got != "" {
		t.Errorf("notebook before any session = %q, want empty", got)
	}

	disp := &Dispatcher{}
	disp.Dispatch(ctx, set, types.ToolCall{
		ID: "c1", Name: "navigate", Arguments: `{"url":"https://example.com"}`,
	})
	disp.Dispatch(ctx, set, types.ToolCall{
		ID: "c2", Name: "save_to_notebook", Arguments: `{"text":"first finding"}`,
	})
	if got := d.NotebookContent(task.ID); !strings.Contains(got, "first finding") {
		t.Errorf("notebook = %q", got)
	}

	disp.Dispatch(ctx, set, types.ToolCall{
		ID: "c3", Name: "replace_notebook", Arguments: `{"text":"rewritten"}`,
	})
	got := d.NotebookContent(task.ID)
	if !strings.Contains(got, "rewritten") || strings.Contains(got, "first finding") {
		t.Errorf("notebook after replace = %q", got)
	}
}

func TestReflectionSetVerdictsOnly(t *testing.T) {
	set, err := ReflectionSet(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	infos, err := set.Infos(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 3 {
		t.Fatalf("reflection tools = %d, want 3", len(infos))
	}
	for _, name := range []string{ToolDone, ToolFail, ToolWaitForUser} {
		if _, ok := set.Get(name); !ok {
			t.Errorf("missing verdict %s", name)
		}
	}
}

func TestDispatchExecute(t *testing.T) {
	d := testDeps(t)
	ctx := context.Background()
	task := &types.Task{ID: "task_1", CompanyID: "co1"}
	set, err := d.ForTask(ctx, task, &types.Agent{CodeInterpreterEnabled: true})
	if err != nil {
		t.Fatal(err)
	}

	disp := &Dispatcher{}
	out := disp.Dispatch(ctx, set, types.ToolCall{
		ID: "c1", Name: "execute", Arguments: `{"command":"echo hi"}`,
	})
	if !strings.Contains(out, "hi") {
		t.Errorf("output = %q", out)
	}
}

func TestDispatchSaveThenRead(t *testing.T) {
	d := testDeps(t)
	ctx := context.Background()
	task := &types.Task{ID: "task_1", CompanyID: "co1"}
	set, err := d.ForTask(ctx, task, &types.Agent{CodeInterpreterEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	disp := &Dispatcher{}

	out := disp.Dispatch(ctx, set, types.ToolCall{
		ID: "c1", Name: "save", Arguments: `{"filename":"data.txt","content":"payload"}`,
	})
	if !strings.Contains(out, "Saved data.txt") {
		t.Fatalf("save output = %q", out)
	}

	out = disp.Dispatch(ctx, set, types.ToolCall{
		ID: "c2", Name: "execute", Arguments: `{"command":"cat data.txt"}`,
	})
	if !strings.Contains(out, "payload") {
		t.Errorf("read output = %q", out)
	}
}

func TestDispatchSaveRejectsEscape(t *testing.T) {
	d := testDeps(t)
	ctx := context.Background()
	task := &types.Task{ID: "task_1", CompanyID: "co1"}
	set, err := d.ForTask(ctx, task, &types.Agent{CodeInterpreterEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	disp := &Dispatcher{}
	out := disp.Dispatch(ctx, set, types.ToolCall{
		ID: "c1", Name: "save", Arguments: `{"filename":"../../etc/pwn","content":"x"}`,
	})
	if !strings.Contains(out, "Error") {
		t.Errorf("escape should be rejected: %q", out)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	set, err := NewSet(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	disp := &Dispatcher{}
	out := disp.Dispatch(context.Background(), set, types.ToolCall{ID: "c1", Name: "nope"})
	if !strings.Contains(out, "unknown tool") {
		t.Errorf("output = %q", out)
	}
}

func TestControlToolOutsideReflection(t *testing.T) {
	d := testDeps(t)
	ctx := context.Background()
	set, err := d.ForTask(ctx, &types.Task{ID: "task_1"}, &types.Agent{})
	if err != nil {
		t.Fatal(err)
	}
	disp := &Dispatcher{}
	out := disp.Dispatch(ctx, set, types.ToolCall{ID: "c1", Name: ToolDone, Arguments: "{}"})
	if !strings.Contains(out, "Error") {
		t.Errorf("verdict misuse should be an error result: %q", out)
	}
}

func TestParseControlVerdict(t *testing.T) {
	v, err := ParseControlVerdict(ToolFail, `{"reason":"no data available"}`)
	if err != nil {
		t.Fatal(err)
	}
	if v.Comment != "no data available" {
		t.Errorf("comment = %q", v.Comment)
	}

	v, err = ParseControlVerdict(ToolWaitForUser, `{"question":"which account?"}`)
	if err != nil {
		t.Fatal(err)
	}
	if v.Comment != "which account?" {
		t.Errorf("comment = %q", v.Comment)
	}

	if _, err := ParseControlVerdict(ToolDone, ""); err != nil {
		t.Errorf("empty args should parse: %v", err)
	}
}
