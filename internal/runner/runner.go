package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"mapleads/internal/config"
	"mapleads/internal/extract"
	"mapleads/internal/leads"
	"mapleads/internal/logger"
	"mapleads/internal/pace"
	"mapleads/internal/plan"
	"mapleads/internal/search"
)

// State names the phase the run loop is in. Transitions only move forward
// except Running <-> CoolingDown.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateCoolingDown  State = "cooling_down"
	StateCompleted    State = "completed"
	StateAborted      State = "aborted"
)

// Snapshot is a point-in-time view of run progress for the status server.
type Snapshot struct {
	RunID          string    `json:"run_id"`
	State          State     `json:"state"`
	CurrentTask    string    `json:"current_task,omitempty"`
	SearchesDone   int       `json:"searches_done"`
	SearchesTotal  int       `json:"searches_total"`
	LeadsTotal     int       `json:"leads_total"`
	LeadsQualified int       `json:"leads_qualified"`
	SoftBans       int       `json:"soft_bans"`
	StartedAt      time.Time `json:"started_at"`
}

// Searcher runs one search and yields openable result handles.
type Searcher interface {
	Run(page search.Page, term, location string) ([]extract.Handle, error)
}

// Extractor turns an open handle into a record.
type Extractor interface {
	Extract(page extract.Panel, h extract.Handle, task extract.TaskContext) (leads.BusinessRecord, error)
}

// BrowserPage is the combined surface a run needs from the session.
type BrowserPage interface {
	search.Page
	extract.Panel
}

// Runner drives the whole discovery loop: plan tasks through search,
// extraction and persistence until the lead target is met or the plan is
// exhausted.
type Runner struct {
	log    *logger.Logger
	cfg    *config.Config
	pacer  *pace.Controller
	store  *leads.Store
	ledger *plan.Ledger

	searcher  Searcher
	extractor Extractor

	mu   sync.Mutex
	snap Snapshot
}

func New(cfg *config.Config, pacer *pace.Controller, store *leads.Store, ledger *plan.Ledger, searcher Searcher, extractor Extractor) *Runner {
	return &Runner{
		log:       logger.New("Runner"),
		cfg:       cfg,
		pacer:     pacer,
		store:     store,
		ledger:    ledger,
		searcher:  searcher,
		extractor: extractor,
		snap:      Snapshot{RunID: uuid.NewString(), State: StateIdle},
	}
}

// Snapshot returns a copy of the current progress.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.snap.State = s
	r.mu.Unlock()
}

func (r *Runner) updateSnap(fn func(*Snapshot)) {
	r.mu.Lock()
	fn(&r.snap)
	r.mu.Unlock()
}

// Run executes every pending task. It returns nil both when the target is
// reached and when the plan is exhausted; only a fatal session error or
// context cancellation is an error.
func (r *Runner) Run(ctx context.Context, page BrowserPage, tasks []plan.Task) error {
	r.setState(StateInitializing)

	pending := plan.Pending(tasks, r.ledger)
	r.updateSnap(func(s *Snapshot) {
		s.SearchesTotal = len(tasks)
		s.SearchesDone = len(tasks) - len(pending)
		s.LeadsTotal = r.store.Count()
		s.LeadsQualified = r.store.QualifiedCount()
		s.StartedAt = time.Now().UTC()
	})
	r.log.LogInfof("Plan: %d tasks, %d pending, %d leads on disk (%d qualified)",
		len(tasks), len(pending), r.store.Count(), r.store.QualifiedCount())

	r.setState(StateRunning)
	for _, task := range pending {
		select {
		case <-ctx.Done():
			r.finish(StateAborted)
			return ctx.Err()
		default:
		}

		if r.store.QualifiedCount() >= r.cfg.TargetLeads {
			r.log.LogInfof("Target of %d qualified leads reached", r.cfg.TargetLeads)
			break
		}

		r.updateSnap(func(s *Snapshot) { s.CurrentTask = task.Key() })

		if err := r.runTask(ctx, page, task); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				r.finish(StateAborted)
				return err
			}
			if errors.Is(err, pace.ErrSessionFatal) {
				r.log.LogError("Session is unrecoverable, aborting run", err)
				r.finish(StateAborted)
				return err
			}
			// Task-level failure after retries: record it as completed so
			// restarts do not loop on a poisoned search, and move on.
			r.log.LogWarnf("Giving up on %q: %v", task.Key(), err)
		}

		if err := r.ledger.MarkCompleted(task); err != nil {
			r.log.LogError("ledger write failed", err)
		}
		r.updateSnap(func(s *Snapshot) {
			s.SearchesDone++
			s.LeadsTotal = r.store.Count()
			s.LeadsQualified = r.store.QualifiedCount()
			s.SoftBans = r.pacer.SoftBanCount()
		})

		if err := r.pacer.Pace(ctx, 1.0); err != nil {
			r.finish(StateAborted)
			return err
		}
	}

	r.finish(StateCompleted)
	r.log.LogInfof("Run complete: %d leads (%d qualified), %d searches done",
		r.store.Count(), r.store.QualifiedCount(), r.ledger.Count())
	return nil
}

// runTask performs one search with the retry/cooldown policy, then extracts
// every collected handle.
func (r *Runner) runTask(ctx context.Context, page BrowserPage, task plan.Task) error {
	var handles []extract.Handle

	for attempt := 1; ; attempt++ {
		var err error
		handles, err = r.searcher.Run(page, task.Term, task.Location)
		if err == nil {
			break
		}

		switch r.pacer.OnFailure(err, attempt) {
		case pace.ActionRetry:
			r.log.LogWarnf("Search %q attempt %d failed, retrying: %v", task.Key(), attempt, err)
			if serr := r.pacer.RetryPause(ctx); serr != nil {
				return serr
			}
		case pace.ActionCooldown:
			r.log.LogWarnf("Repeated timeouts, cooling down for %s", r.cfg.Cooldown)
			r.setState(StateCoolingDown)
			if serr := r.pacer.Cooldown(ctx); serr != nil {
				return serr
			}
			r.setState(StateRunning)
		case pace.ActionGiveUp:
			return err
		case pace.ActionAbort:
			return err
		}
	}

	if len(handles) == 0 {
		r.log.LogInfof("No results for %q", task.Key())
		return nil
	}

	accepted := 0
	for _, h := range handles {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rec, err := r.extractor.Extract(page, h, extract.TaskContext{
			CategoryKey: task.CategoryKey,
			Location:    task.Location,
		})
		if err != nil {
			if errors.Is(err, pace.ErrSessionFatal) {
				return err
			}
			r.log.LogDebugf("Skipping result: %v", err)
			continue
		}

		// A business with a live website is not a lead. The store stays
		// policy-free; the run loop owns the qualification filter.
		if !rec.Qualified() {
			r.log.LogDebugf("Skipping %s: active website %s", rec.Name, rec.WebsiteURL)
			continue
		}

		fresh, err := r.store.Accept(rec)
		if err != nil {
			r.log.LogError("persist lead failed", err)
			continue
		}
		if fresh {
			accepted++
			r.log.LogInfof("New lead: %s (%s)", rec.Name, rec.Phone)
		}
	}
	r.log.LogInfof("Task %q: %d handles, %d new leads", task.Key(), len(handles), accepted)
	return nil
}

// finish records the terminal state and flushes persistence best-effort.
func (r *Runner) finish(s State) {
	r.setState(s)
	r.updateSnap(func(sn *Snapshot) {
		sn.CurrentTask = ""
		sn.LeadsTotal = r.store.Count()
		sn.LeadsQualified = r.store.QualifiedCount()
	})
	if err := r.store.Flush(); err != nil {
		r.log.LogError("final store flush failed", err)
	}
	if err := r.ledger.Flush(); err != nil {
		r.log.LogError("final ledger flush failed", err)
	}
}
