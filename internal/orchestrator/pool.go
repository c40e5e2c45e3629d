package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/helmsman-ai/helmsman/internal/events"
	"github.com/helmsman-ai/helmsman/internal/types"
)

// Start launches the scheduler loop.
func (o *Orchestrator) Start() {
	o.ctx, o.cancel = context.WithCancel(context.Background())
	o.wg.Add(1)
	go o.scheduleLoop()
	o.log().Info("orchestrator started", "workers", o.workers())
}

// Stop cancels in-flight advances and waits for workers to drain.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.log().Info("orchestrator stopped")
}

func (o *Orchestrator) workers() int {
	if o.Cfg.Workers > 0 {
		return o.Cfg.Workers
	}
	return 1
}

func (o *Orchestrator) pollInterval() time.Duration {
	if d := time.Duration(o.Cfg.PollInterval); d > 0 {
		return d
	}
	return 2 * time.Second
}

// wakeScheduler sends a non-blocking signal to the schedule loop.
func (o *Orchestrator) wakeScheduler() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// scheduleLoop is the main scheduler goroutine. It rescans on wake
// signals and on a poll ticker, whichever fires first.
func (o *Orchestrator) scheduleLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.pollInterval())
	defer ticker.Stop()

	for {
		o.schedule()

		select {
		case <-o.ctx.Done():
			return
		case <-o.wake:
		case <-ticker.C:
		}
	}
}

// schedule assigns runnable tasks to free worker slots. Draft roots go
// through planning; advanceable tasks go to the executor. One in-flight
// run per task.
func (o *Orchestrator) schedule() {
	runnable, err := o.Tasks.ListRunnable(o.ctx, types.TaskDraft, types.TaskToDo, types.TaskInProgress)
	if err != nil {
		if o.ctx.Err() == nil {
			o.log().Error("scan runnable tasks", "error", err)
		}
		return
	}

	for _, t := range runnable {
		if t.Status == types.TaskDraft && !t.IsRoot() {
			// Draft children belong to their root's planning pass.
			continue
		}
		if t.Status == types.TaskInProgress && o.isParked(t.ID) {
			continue
		}

		o.mu.Lock()
		if _, busy := o.running[t.ID]; busy || len(o.running) >= o.workers() {
			full := len(o.running) >= o.workers()
			o.mu.Unlock()
			if full {
				return
			}
			continue
		}
		o.running[t.ID] = struct{}{}
		o.mu.Unlock()

		o.startTask(t)
	}
}

// startTask runs one planning or execution pass on a worker goroutine.
func (o *Orchestrator) startTask(t *types.Task) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			delete(o.running, t.ID)
			o.mu.Unlock()
			o.wakeScheduler()
		}()

		switch t.Status {
		case types.TaskDraft:
			o.planTask(t)
		default:
			o.advanceTask(t)
		}
	}()
}

// planTask runs the planning pass on a draft root and promotes the
// planned subtree to runnable.
func (o *Orchestrator) planTask(t *types.Task) {
	if o.Planner == nil {
		o.promoteSubtree(t)
		return
	}
	if err := o.Planner.Plan(o.ctx, t); err != nil {
		if o.ctx.Err() != nil {
			return
		}
		o.log().Error("plan task", "task_id", t.ID, "error", err)
		// An unplannable task still runs whole.
	}
	o.promoteSubtree(t)
}

// promoteSubtree moves a draft task and its draft descendants to ToDo.
func (o *Orchestrator) promoteSubtree(t *types.Task) {
	subtree := []*types.Task{t}
	if children, err := o.Tasks.Children(o.ctx, t); err == nil {
		subtree = append(subtree, children...)
	}
	for _, st := range subtree {
		if st.Status != types.TaskDraft {
			continue
		}
		if err := o.Tasks.UpdateStatus(o.ctx, st, types.TaskToDo); err != nil {
			o.log().Warn("promote planned task", "task_id", st.ID, "error", err)
			continue
		}
		o.publish(events.TaskStatusChangedPayload{
			TaskID: st.ID, From: string(types.TaskDraft), To: string(types.TaskToDo), Reason: "planned",
		}, st.ID)
	}
}

// advanceTask drives one executor pass and settles the cancellation flag.
func (o *Orchestrator) advanceTask(t *types.Task) {
	agent, err := o.Agents.Get(o.ctx, t.CompanyID, t.AgentID)
	if err != nil {
		o.log().Error("load agent for task", "task_id", t.ID, "agent_id", t.AgentID, "error", err)
		return
	}

	if err := o.Exec.Advance(o.ctx, t, agent); err != nil {
		switch {
		case o.ctx.Err() != nil:
			o.log().Info("advance interrupted by shutdown", "task_id", t.ID)
		case errors.Is(err, context.Canceled):
			o.log().Info("advance cancelled", "task_id", t.ID)
		default:
			o.log().Error("advance task", "task_id", t.ID, "error", err)
		}
		return
	}

	switch {
	case t.Status.Terminal():
		o.clearCancel(t.ID)
		// An ancestor gated on this task may now pass its verdict.
		o.unpark(t.ParentIDs()...)
	case t.Status == types.TaskInProgress:
		// The advance returned without a verdict being accepted.
		// Shelve the task until a child finishes or the user replies.
		o.park(t.ID)
		// A child may have gone terminal between the verdict and the
		// park; its unpark would have hit a not-yet-parked parent and
		// been lost. Re-check after parking.
		if o.childrenSettled(t) {
			o.unpark(t.ID)
			o.wakeScheduler()
		}
	}
}

// childrenSettled reports whether the task has children and all of them
// are terminal.
func (o *Orchestrator) childrenSettled(t *types.Task) bool {
	children, err := o.Tasks.Children(o.ctx, t)
	if err != nil || len(children) == 0 {
		return false
	}
	for _, c := range children {
		if !c.Status.Terminal() {
			return false
		}
	}
	return true
}
