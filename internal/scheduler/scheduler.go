// Package scheduler submits recurring tasks from cron-style schedule
// entries in the configuration.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/orchestrator"
	"github.com/helmsman-ai/helmsman/internal/repo"
	"github.com/helmsman-ai/helmsman/internal/types"
)

// Submitter accepts scheduled task submissions.
type Submitter interface {
	Submit(ctx context.Context, req orchestrator.SubmitRequest) (*types.Task, error)
}

// entry is a parsed schedule with firing state.
type entry struct {
	cfg     config.ScheduleEntry
	cron    *CronExpr
	lastRun time.Time
}

// Scheduler fires configured schedules once per matching minute.
type Scheduler struct {
	submit Submitter
	agents repo.AgentRepo
	log    *slog.Logger

	mu      sync.Mutex
	entries []*entry

	done chan struct{}
	wg   sync.WaitGroup
}

// New parses the configured entries. Invalid expressions or incomplete
// entries are rejected up front so a typo fails startup rather than
// silently never firing.
func New(entries []config.ScheduleEntry, submit Submitter, agents repo.AgentRepo, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		submit: submit,
		agents: agents,
		log:    log,
		done:   make(chan struct{}),
	}
	for _, se := range entries {
		if se.CompanyID == "" || se.UserID == "" || se.Agent == "" || se.Title == "" {
			return nil, fmt.Errorf("schedule %q: company_id, user_id, agent and title are required", se.Name)
		}
		expr, err := ParseCron(se.Cron)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: %w", se.Name, err)
		}
		s.entries = append(s.entries, &entry{cfg: se, cron: expr})
	}
	return s, nil
}

// Start begins the minute ticker. A scheduler with no entries stays idle
// but still starts cleanly.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started", "entries", len(s.entries))
	s.wg.Add(1)
	go s.loop()
}

// Stop halts the ticker and waits for the loop to exit.
func (s *Scheduler) Stop() {
	close(s.done)
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.fireDue(now)
		}
	}
}

// fireDue submits every entry whose cron matches the current minute.
// lastRun keeps a half-minute tick from firing the same minute twice.
func (s *Scheduler) fireDue(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	minute := now.Truncate(time.Minute)
	for _, e := range s.entries {
		if !e.cron.Matches(now) || e.lastRun.Equal(minute) {
			continue
		}
		e.lastRun = minute
		s.trigger(e)
	}
}

func (s *Scheduler) trigger(e *entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	agent, err := s.agents.ByName(ctx, e.cfg.CompanyID, e.cfg.Agent)
	if err != nil {
		s.log.Error("schedule trigger: resolve agent", "schedule", e.cfg.Name, "agent", e.cfg.Agent, "error", err)
		return
	}

	task, err := s.submit.Submit(ctx, orchestrator.SubmitRequest{
		CompanyID: e.cfg.CompanyID,
		UserID:    e.cfg.UserID,
		AgentID:   agent.ID,
		Title:     e.cfg.Title,
		Summary:   e.cfg.Summary,
		Plan:      e.cfg.Plan,
	})
	if err != nil {
		s.log.Error("schedule trigger: submit", "schedule", e.cfg.Name, "error", err)
		return
	}
	s.log.Info("schedule fired", "schedule", e.cfg.Name, "task_id", task.ID)
}
