package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/kimalale/tactical-workflow-manager/pkg/log"
)

type (
	// Scheduler owns a heap of keyed timers. One-shot tasks fire once;
	// repeating tasks are re-armed one period after each firing. All heap
	// access happens on the Run goroutine
	Scheduler struct {
		now       Clock
		makeTimer TimerConstructor
		tasks     chan taskReq
	}

	// TaskFunc is called with the time its task fired
	TaskFunc func(fired time.Time) error

	taskReqOp uint8

	taskReq struct {
		op     taskReqOp
		task   *Task
		key    taskPath
		prefix taskPath
		reply  chan int
	}
)

const (
	taskReqSchedule taskReqOp = iota
	taskReqCancel
	taskReqCancelPrefix
	taskReqCount
)

const requestBuffer = 100

// New creates a scheduler using the provided clock and timer constructor
func New(now Clock, makeTimer TimerConstructor) *Scheduler {
	return &Scheduler{
		now:       now,
		makeTimer: makeTimer,
		tasks:     make(chan taskReq, requestBuffer),
	}
}

// NewSystem creates a scheduler on the wall clock
func NewSystem() *Scheduler {
	return New(time.Now, NewTimer)
}

// Now returns the scheduler's current time
func (s *Scheduler) Now() time.Time {
	return s.now()
}

// Schedule registers a one-shot task at the given time, replacing any task
// registered under the same path
func (s *Scheduler) Schedule(
	ctx context.Context, path []string, at time.Time, fn TaskFunc,
) {
	s.request(ctx, taskReq{
		op:   taskReqSchedule,
		task: &Task{Func: fn, At: at, Path: path},
	})
}

// Repeat registers a task that first fires one period from now and then
// every period after that, replacing any task under the same path
func (s *Scheduler) Repeat(
	ctx context.Context, path []string, every time.Duration, fn TaskFunc,
) {
	if every <= 0 {
		return
	}
	s.request(ctx, taskReq{
		op: taskReqSchedule,
		task: &Task{
			Func:  fn,
			At:    s.now().Add(every),
			Every: every,
			Path:  path,
		},
	})
}

// Cancel removes the task registered for the exact path
func (s *Scheduler) Cancel(ctx context.Context, path []string) {
	s.request(ctx, taskReq{op: taskReqCancel, key: path})
}

// CancelPrefix removes all tasks under the provided path prefix
func (s *Scheduler) CancelPrefix(ctx context.Context, prefix []string) {
	s.request(ctx, taskReq{
		op: taskReqCancelPrefix, prefix: prefix,
	})
}

// Pending returns the number of keyed tasks armed at or below prefix
func (s *Scheduler) Pending(ctx context.Context, prefix []string) int {
	reply := make(chan int, 1)
	s.request(ctx, taskReq{op: taskReqCount, prefix: prefix, reply: reply})
	select {
	case n := <-reply:
		return n
	case <-ctx.Done():
		return 0
	}
}

// Run processes scheduler requests until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	timer := s.makeTimer(0)
	var timerCh <-chan time.Time
	tasks := NewTaskHeap()

	resetTimer := func() {
		t := tasks.Peek()
		if t == nil {
			timer.Stop()
			timerCh = nil
			return
		}
		timer.Reset(t.At.Sub(s.now()))
		timerCh = timer.Channel()
	}

	resetTimer()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case req := <-s.tasks:
			switch req.op {
			case taskReqSchedule:
				tasks.Insert(req.task)
			case taskReqCancel:
				tasks.Cancel(req.key)
			case taskReqCancelPrefix:
				tasks.CancelPrefix(req.prefix)
			case taskReqCount:
				req.reply <- tasks.CountPrefix(req.prefix)
			}
			resetTimer()
		case fired := <-timerCh:
			task := tasks.PopTask()
			if task == nil {
				resetTimer()
				continue
			}
			if task.Every > 0 {
				tasks.Insert(task.rearm(s.now()))
			}
			if err := task.Func(fired); err != nil {
				slog.Error("Scheduled task failed",
					slog.Any("path", []string(task.Path)),
					log.Error(err))
			}
			resetTimer()
		}
	}
}

func (s *Scheduler) request(ctx context.Context, req taskReq) {
	select {
	case s.tasks <- req:
	case <-ctx.Done():
	}
}
