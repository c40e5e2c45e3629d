package repo

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/helmsman-ai/helmsman/internal/types"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTaskCreateGet(t *testing.T) {
	db := openTestDB(t)
	tasks := TaskRepo{DB: db}
	ctx := context.Background()

	task := &types.Task{
		CompanyID: "co1",
		UserID:    "u1",
		AgentID:   "agent_1",
		Title:     "summarize report",
	}
	if err := tasks.Create(ctx, task); err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.ID == "" || task.Status != types.TaskDraft {
		t.Fatalf("create did not fill defaults: %+v", task)
	}

	got, err := tasks.Get(ctx, "co1", task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "summarize report" || got.Status != types.TaskDraft {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if _, err := tasks.Get(ctx, "co2", task.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-company get should be not found, got %v", err)
	}
}

func TestTaskUpdateStatusOptimistic(t *testing.T) {
	db := openTestDB(t)
	tasks := TaskRepo{DB: db}
	ctx := context.Background()

	task := &types.Task{CompanyID: "co1", UserID: "u1", AgentID: "a1", Title: "t", Status: types.TaskToDo}
	if err := tasks.Create(ctx, task); err != nil {
		t.Fatal(err)
	}

	stale := *task
	if err := tasks.UpdateStatus(ctx, task, types.TaskInProgress); err != nil {
		t.Fatalf("first update: %v", err)
	}

	err := tasks.UpdateStatus(ctx, &stale, types.TaskInProgress)
	var conflict *types.ConcurrencyConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("stale update should conflict, got %v", err)
	}

	err = tasks.UpdateStatus(ctx, task, types.TaskToDo)
	var invalid *types.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("in_progress -> todo should be invalid, got %v", err)
	}
}

func TestTaskChildren(t *testing.T) {
	db := openTestDB(t)
	tasks := TaskRepo{DB: db}
	ctx := context.Background()

	root := &types.Task{CompanyID: "co1", UserID: "u1", AgentID: "a1", Title: "root", Status: types.TaskInProgress}
	if err := tasks.Create(ctx, root); err != nil {
		t.Fatal(err)
	}
	child := &types.Task{
		CompanyID: "co1", UserID: "u1", AgentID: "a1", Title: "child",
		Status: types.TaskToDo, Ancestry: root.ChildrenAncestry(), AncestryLevel: 1,
	}
	if err := tasks.Create(ctx, child); err != nil {
		t.Fatal(err)
	}
	grandchild := &types.Task{
		CompanyID: "co1", UserID: "u1", AgentID: "a1", Title: "grandchild",
		Status: types.TaskToDo, Ancestry: child.ChildrenAncestry(), AncestryLevel: 2,
	}
	if err := tasks.Create(ctx, grandchild); err != nil {
		t.Fatal(err)
	}

	desc, err := tasks.Children(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if len(desc) != 2 {
		t.Fatalf("descendants = %d, want 2", len(desc))
	}
	if desc[0].ID != child.ID || desc[1].ID != grandchild.ID {
		t.Errorf("descendant order: %s, %s", desc[0].ID, desc[1].ID)
	}

	roots, err := tasks.List(ctx, "co1")
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 || roots[0].ID != root.ID {
		t.Errorf("root listing = %+v", roots)
	}
}

func TestMessageBulkOrder(t *testing.T) {
	db := openTestDB(t)
	chats := ChatRepo{DB: db}
	msgs := MessageRepo{DB: db}
	ctx := context.Background()

	chat := &types.Chat{CompanyID: "co1", UserID: "u1", Kind: types.ChatExecution}
	if err := chats.Create(ctx, chat); err != nil {
		t.Fatal(err)
	}

	batch := []*types.Message{
		{CompanyID: "co1", ChatID: chat.ID, Role: types.RoleAssistant, Content: "first"},
		{CompanyID: "co1", ChatID: chat.ID, Role: types.RoleTool, Content: "second", ToolCallID: "call_1"},
		{CompanyID: "co1", ChatID: chat.ID, Role: types.RoleTool, Content: "third", ToolCallID: "call_2"},
	}
	if err := msgs.CreateMany(ctx, batch); err != nil {
		t.Fatalf("bulk insert: %v", err)
	}

	listed, err := msgs.List(ctx, "co1", chat.ID, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 3 {
		t.Fatalf("len = %d, want 3", len(listed))
	}
	for i, want := range []string{"first", "second", "third"} {
		if listed[i].Content != want {
			t.Errorf("message %d content = %q, want %q", i, listed[i].Content, want)
		}
	}
}

func TestMessageOrderWithUnevenSubsecondTimestamps(t *testing.T) {
	db := openTestDB(t)
	chats := ChatRepo{DB: db}
	msgs := MessageRepo{DB: db}
	ctx := context.Background()

	chat := &types.Chat{CompanyID: "co1", UserID: "u1", Kind: types.ChatExecution}
	if err := chats.Create(ctx, chat); err != nil {
		t.Fatal(err)
	}

	// .1s vs .11s: a variable-width text encoding would sort ".1" after
	// ".11" and flip these. Insert the later message first so row order
	// cannot mask a bad sort either.
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := &types.Message{
		CompanyID: "co1", ChatID: chat.ID, Role: types.RoleAssistant,
		Content: "second", CreatedAt: base.Add(110 * time.Millisecond),
	}
	earlier := &types.Message{
		CompanyID: "co1", ChatID: chat.ID, Role: types.RoleUser,
		Content: "first", CreatedAt: base.Add(100 * time.Millisecond),
	}
	for _, m := range []*types.Message{later, earlier} {
		if err := msgs.Create(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	listed, err := msgs.List(ctx, "co1", chat.ID, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 2 {
		t.Fatalf("len = %d, want 2", len(listed))
	}
	if listed[0].Content != "first" || listed[1].Content != "second" {
		t.Errorf("order = [%s %s], want [first second]", listed[0].Content, listed[1].Content)
	}
}

func TestMessageFilteringAndLast(t *testing.T) {
	db := openTestDB(t)
	chats := ChatRepo{DB: db}
	msgs := MessageRepo{DB: db}
	ctx := context.Background()

	chat := &types.Chat{CompanyID: "co1", UserID: "u1", Kind: types.ChatExecution}
	if err := chats.Create(ctx, chat); err != nil {
		t.Fatal(err)
	}

	batch := []*types.Message{
		{CompanyID: "co1", ChatID: chat.ID, Role: types.RoleUser, Content: "do the thing"},
		{CompanyID: "co1", ChatID: chat.ID, Role: types.RoleAssistant, Content: "done"},
		{CompanyID: "co1", ChatID: chat.ID, Role: types.RoleAssistant, Content: "verdict", IsSelfReflection: true,
			ToolCalls: []types.ToolCall{{ID: "c1", Name: "done", Arguments: "{}"}}},
		{CompanyID: "co1", ChatID: chat.ID, Role: types.RoleTool, Content: "ok", ToolCallID: "c1",
			IsSelfReflection: true, IsInternalToolOutput: true},
	}
	if err := msgs.CreateMany(ctx, batch); err != nil {
		t.Fatal(err)
	}

	visible, err := msgs.List(ctx, "co1", chat.ID, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 2 {
		t.Fatalf("visible = %d, want 2", len(visible))
	}

	all, err := msgs.List(ctx, "co1", chat.ID, ListOptions{IncludeReflection: true, IncludeInternal: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("all = %d, want 4", len(all))
	}
	if len(all[2].ToolCalls) != 1 || all[2].ToolCalls[0].Name != "done" {
		t.Errorf("tool calls did not round trip: %+v", all[2].ToolCalls)
	}

	last, err := msgs.Last(ctx, "co1", chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !last.IsInternalToolOutput {
		t.Errorf("last should be the internal tool output, got %+v", last)
	}

	lastVisible, err := msgs.LastNonReflection(ctx, "co1", chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if lastVisible.Content != "done" {
		t.Errorf("last non-reflection = %q, want done", lastVisible.Content)
	}

	n, err := msgs.CountAssistantTurns(ctx, "co1", chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("assistant turns = %d, want 1", n)
	}
}

func TestMessageFinalize(t *testing.T) {
	db := openTestDB(t)
	chats := ChatRepo{DB: db}
	msgs := MessageRepo{DB: db}
	ctx := context.Background()

	chat := &types.Chat{CompanyID: "co1", UserID: "u1", Kind: types.ChatExecution}
	if err := chats.Create(ctx, chat); err != nil {
		t.Fatal(err)
	}
	m := &types.Message{CompanyID: "co1", ChatID: chat.ID, Role: types.RoleAssistant, Status: types.MessagePending}
	if err := msgs.Create(ctx, m); err != nil {
		t.Fatal(err)
	}

	calls := []types.ToolCall{{ID: "call_9", Name: "run_code", Arguments: `{"code":"print(1)"}`}}
	if err := msgs.Finalize(ctx, m, "running code", calls, types.MessageWaitingForToolCall); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	got, err := msgs.Last(ctx, "co1", chat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.MessageWaitingForToolCall || got.Content != "running code" {
		t.Errorf("finalized message = %+v", got)
	}
	if len(got.ToolCalls) != 1 || got.ToolCalls[0].Name != "run_code" {
		t.Errorf("tool calls = %+v", got.ToolCalls)
	}
}

func TestAgentAndResultRoundTrip(t *testing.T) {
	db := openTestDB(t)
	agents := AgentRepo{DB: db}
	results := ResultRepo{DB: db}
	tasks := TaskRepo{DB: db}
	ctx := context.Background()

	agent := &types.Agent{
		CompanyID:              "co1",
		Name:                   "researcher",
		SystemPrompt:           "You research things.",
		CodeInterpreterEnabled: true,
		ExecutionStepsLimit:    12,
	}
	if err := agents.Create(ctx, agent); err != nil {
		t.Fatal(err)
	}
	got, err := agents.Get(ctx, "co1", agent.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.CodeInterpreterEnabled || got.WebBrowsingEnabled || got.ExecutionStepsLimit != 12 {
		t.Errorf("agent round trip: %+v", got)
	}

	task := &types.Task{CompanyID: "co1", UserID: "u1", AgentID: agent.ID, Title: "t", Status: types.TaskInProgress}
	if err := tasks.Create(ctx, task); err != nil {
		t.Fatal(err)
	}
	res := &types.TaskResult{CompanyID: "co1", AgentID: agent.ID, TaskID: task.ID, Kind: types.ResultText, Data: "answer"}
	if err := results.Create(ctx, res); err != nil {
		t.Fatal(err)
	}
	list, err := results.ListByTask(ctx, "co1", task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Data != "answer" {
		t.Errorf("results = %+v", list)
	}
}
