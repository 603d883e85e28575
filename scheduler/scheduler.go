// Package scheduler implements the cron-triggered harvest launcher (spec
// §4.7): a persisted set of cron entries woken by a single monotonic
// timer, not one timer per entry. Grounded on
// kluzzebass-gastrolog/internal/orchestrator/scheduler.go's named-job
// bookkeeping-map shape and mutex discipline; the single-timer wake loop
// itself is bespoke (gocron, which that teacher wraps, schedules one timer
// per job internally, which the spec explicitly rules out), using
// robfig/cron/v3 only for expression parsing and next-fire computation.
package scheduler

import (
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harvestrt/harvestrt/bus"
	"github.com/harvestrt/harvestrt/cmn"
)

// scheduleJSON is the on-disk representation, per spec §6 ("Schedule":
// {"crons":[string,...]}).
type scheduleJSON struct {
	Crons []string `json:"crons"`
}

// Scheduler owns an in-memory, persisted set of cron entries and wakes a
// single timer at the earliest next-fire time across all of them.
type Scheduler struct {
	mu        sync.Mutex
	cachePath string
	bus       *bus.Bus
	parser    cron.Parser

	entries   map[string]time.Time      // normalized cron expr -> next fire
	schedules map[string]cron.Schedule  // normalized cron expr -> parsed schedule

	recompute chan struct{}
	stop      chan struct{}
	wg        sync.WaitGroup
	running   bool
}

// New constructs a Scheduler persisting its entry set to cachePath.
func New(cachePath string, b *bus.Bus) *Scheduler {
	return &Scheduler{
		cachePath: cachePath,
		bus:       b,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		entries:   make(map[string]time.Time),
		schedules: make(map[string]cron.Schedule),
		recompute: make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}
}

// normalize collapses whitespace so "0  9 * * 1-5" and "0 9 * * 1-5" map to
// the same set key.
func normalize(expr string) string {
	return strings.Join(strings.Fields(expr), " ")
}

// Add registers expr, rejecting duplicates and syntactically invalid
// expressions as InvalidArgument.
func (s *Scheduler) Add(expr string) error {
	norm := normalize(expr)
	sched, err := s.parser.Parse(norm)
	if err != nil {
		return cmn.NewInvalidArgumentError("invalid cron expression %q: %v", expr, err)
	}

	s.mu.Lock()
	if _, dup := s.entries[norm]; dup {
		s.mu.Unlock()
		return cmn.NewInvalidArgumentError("cron expression %q is already scheduled", expr)
	}
	s.entries[norm] = sched.Next(time.Now())
	s.schedules[norm] = sched
	s.mu.Unlock()

	if err := s.saveToDiskLocked(); err != nil {
		return err
	}
	s.signalRecompute()
	return nil
}

// Delete removes expr. Passing "" or "all" clears every entry without
// error; deleting an unknown entry otherwise is a NotFoundError.
func (s *Scheduler) Delete(expr string) error {
	if expr == "" || expr == "all" {
		s.mu.Lock()
		s.entries = make(map[string]time.Time)
		s.schedules = make(map[string]cron.Schedule)
		s.mu.Unlock()
		if err := s.saveToDiskLocked(); err != nil {
			return err
		}
		s.signalRecompute()
		return nil
	}

	norm := normalize(expr)
	s.mu.Lock()
	if _, ok := s.entries[norm]; !ok {
		s.mu.Unlock()
		return cmn.NewNotFoundError("schedule entry", expr)
	}
	delete(s.entries, norm)
	delete(s.schedules, norm)
	s.mu.Unlock()

	if err := s.saveToDiskLocked(); err != nil {
		return err
	}
	s.signalRecompute()
	return nil
}

// Size returns the number of scheduled entries.
func (s *Scheduler) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// GetAll returns every scheduled cron expression, sorted for determinism.
func (s *Scheduler) GetAll() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for expr := range s.entries {
		out = append(out, expr)
	}
	sort.Strings(out)
	return out
}

// LoadFromDisk restores the entry set from cachePath, if present.
func (s *Scheduler) LoadFromDisk() error {
	if s.cachePath == "" {
		return nil
	}
	var doc scheduleJSON
	if err := cmn.LoadJSON(s.cachePath, &doc); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, expr := range doc.Crons {
		if err := s.Add(expr); err != nil {
			continue
		}
	}
	return nil
}

func (s *Scheduler) saveToDiskLocked() error {
	if s.cachePath == "" {
		return nil
	}
	return cmn.SaveJSON(s.cachePath, scheduleJSON{Crons: s.GetAll()})
}

func (s *Scheduler) signalRecompute() {
	select {
	case s.recompute <- struct{}{}:
	default:
	}
}

// Start begins the single wake-timer loop. No-op if already started.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	for {
		next, ok := s.earliest()

		var wait <-chan time.Time
		var timer *time.Timer
		if ok {
			d := time.Until(next)
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			wait = timer.C
		}

		select {
		case <-s.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.recompute:
			if timer != nil {
				timer.Stop()
			}
		case <-wait:
			s.fireDue()
		}
	}
}

func (s *Scheduler) earliest() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best time.Time
	found := false
	for _, t := range s.entries {
		if !found || t.Before(best) {
			best = t
			found = true
		}
	}
	return best, found
}

func (s *Scheduler) fireDue() {
	now := time.Now()
	var due []string

	s.mu.Lock()
	for expr, t := range s.entries {
		if !t.After(now) {
			due = append(due, expr)
		}
	}
	for _, expr := range due {
		s.entries[expr] = s.schedules[expr].Next(now)
	}
	s.mu.Unlock()

	for _, expr := range due {
		s.bus.SendSynchronous(bus.StartHarvestEvent{FiredAt: now, Cron: expr})
	}
}

// OnContextDestroyed stops the wake loop and clears the in-memory entry
// set, per spec §4.7 ("cancel all timers, clear set, detach listeners").
// The persisted file is left untouched so the schedule survives a restart.
func (s *Scheduler) OnContextDestroyed() {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()

	if running {
		close(s.stop)
		s.wg.Wait()
	}

	s.mu.Lock()
	s.entries = make(map[string]time.Time)
	s.schedules = make(map[string]cron.Schedule)
	s.mu.Unlock()
}
