package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kimalale/tactical-workflow-manager/internal/scheduler"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
	"github.com/kimalale/tactical-workflow-manager/pkg/log"
)

// Schedules starts unseeded runs on fixed intervals. Each schedule is an
// independent repeating timer; a single switch arms or disarms them all.
// armMu orders every arm and disarm against the running switch. Timer
// callbacks take only mu, since they run on the scheduler goroutine
type Schedules struct {
	armMu   sync.Mutex
	mu      sync.RWMutex
	items   []*api.Schedule
	running bool
	sched   *scheduler.Scheduler
	runs    Starter
	console Console
	pub     Publisher
}

const (
	scheduleIDPrefix = "sch_"
	schedulePathRoot = "schedule"
)

// NewSchedules creates an empty, stopped schedule set on the given timer
// heap. The publisher may be nil
func NewSchedules(
	sched *scheduler.Scheduler, runs Starter, console Console, pub Publisher,
) *Schedules {
	return &Schedules{
		sched:   sched,
		runs:    runs,
		console: console,
		pub:     pub,
	}
}

// Add registers a schedule. It is armed immediately if schedules are
// running
func (s *Schedules) Add(
	ctx context.Context, intervalSeconds int,
) (*api.Schedule, error) {
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInterval, intervalSeconds)
	}
	sc := &api.Schedule{
		ID:              api.ScheduleID(scheduleIDPrefix + uuid.NewString()),
		IntervalSeconds: intervalSeconds,
	}
	sc.NextRunAt = s.sched.Now().Add(sc.Interval())

	s.armMu.Lock()
	defer s.armMu.Unlock()
	s.mu.Lock()
	s.items = append(s.items, sc)
	running := s.running
	s.mu.Unlock()

	if running {
		s.arm(ctx, sc.ID, sc.Interval())
	}
	s.console.Add(ctx, api.TagScheduler,
		fmt.Sprintf("Schedule added: every %ds", intervalSeconds),
		api.LogInfo)
	res := *sc
	return &res, nil
}

// Remove deletes a schedule and disarms its timer
func (s *Schedules) Remove(ctx context.Context, id api.ScheduleID) error {
	s.armMu.Lock()
	defer s.armMu.Unlock()
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrScheduleNotFound, id)
	}
	s.items = slices.Delete(s.items, idx, idx+1)
	s.mu.Unlock()

	s.sched.Cancel(ctx, schedulePath(id))
	s.console.Add(ctx, api.TagScheduler, "Schedule removed", api.LogInfo)
	return nil
}

// List returns every schedule in creation order
func (s *Schedules) List() []*api.Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]*api.Schedule, len(s.items))
	for i, sc := range s.items {
		cp := *sc
		res[i] = &cp
	}
	return res
}

// Running reports whether schedules are armed
func (s *Schedules) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Start arms every schedule. Starting a running set does nothing
func (s *Schedules) Start(ctx context.Context) {
	s.armMu.Lock()
	defer s.armMu.Unlock()
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	now := s.sched.Now()
	type armed struct {
		id    api.ScheduleID
		every time.Duration
	}
	var arm []armed
	for i, sc := range s.items {
		cp := *sc
		cp.NextRunAt = now.Add(cp.Interval())
		s.items[i] = &cp
		arm = append(arm, armed{id: cp.ID, every: cp.Interval()})
	}
	s.mu.Unlock()

	for _, a := range arm {
		s.arm(ctx, a.id, a.every)
	}
	s.console.Add(ctx, api.TagScheduler, "Schedule started", api.LogInfo)
}

// Stop disarms every schedule. Runs already started are unaffected
func (s *Schedules) Stop(ctx context.Context) {
	s.armMu.Lock()
	defer s.armMu.Unlock()
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.sched.CancelPrefix(ctx, []string{schedulePathRoot})
	s.console.Add(ctx, api.TagScheduler, "Schedule stopped", api.LogInfo)
}

// Armed returns the number of schedule timers currently set
func (s *Schedules) Armed(ctx context.Context) int {
	return s.sched.Pending(ctx, []string{schedulePathRoot})
}

func (s *Schedules) arm(
	ctx context.Context, id api.ScheduleID, every time.Duration,
) {
	s.sched.Repeat(ctx, schedulePath(id), every,
		func(fired time.Time) error {
			return s.fire(id, fired)
		},
	)
}

func (s *Schedules) fire(id api.ScheduleID, fired time.Time) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 || !s.running {
		s.mu.Unlock()
		return nil
	}
	cp := *s.items[idx]
	cp.NextRunAt = fired.Add(cp.Interval())
	s.items[idx] = &cp
	s.mu.Unlock()

	ctx := context.Background()
	s.console.Add(ctx, api.TagScheduler,
		fmt.Sprintf("Triggered execution (Schedule %d)", idx+1),
		api.LogInfo)

	runID, err := s.runs.StartCurrent(nil, api.TriggerSchedule)
	if s.pub != nil {
		s.pub.Publish(&api.Event{
			Type:  api.EventSchedule,
			RunID: runID,
			Data:  &cp,
		})
	}
	if err != nil {
		slog.Warn("Scheduled run failed to start",
			slog.String("schedule_id", string(id)),
			log.Error(err))
		return err
	}
	return nil
}

func (s *Schedules) indexOf(id api.ScheduleID) int {
	return slices.IndexFunc(s.items, func(sc *api.Schedule) bool {
		return sc.ID == id
	})
}

func schedulePath(id api.ScheduleID) []string {
	return []string{schedulePathRoot, string(id)}
}
