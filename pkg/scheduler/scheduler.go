// Package scheduler runs periodic tasks and one asynchronous trigger on a
// single goroutine. A task always runs to completion before the next one
// starts; there are no priorities.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"time"
)

// Task is a periodic job registered with Every.
type Task struct {
	name   string
	period time.Duration
	run    func(now time.Time)

	next  time.Time
	seq   int
	runs  uint64
	index int
}

// Name returns the task name.
func (t *Task) Name() string {
	return t.name
}

// Runs returns how many times the task has run.
func (t *Task) Runs() uint64 {
	return t.runs
}

// Scheduler is a min-heap of tasks keyed by their next fire time. Each task
// re-arms itself one period after its previous due time, so a late task runs
// back-to-back until it has caught up instead of skipping ticks.
type Scheduler struct {
	start time.Time
	tasks taskHeap
	seq   int

	trigger   <-chan struct{}
	onTrigger func(now time.Time)
	triggers  uint64

	now func() time.Time
}

// New creates a scheduler whose tasks first fire one period after start.
func New(start time.Time) *Scheduler {
	return &Scheduler{
		start: start,
		now:   time.Now,
	}
}

// Every registers fn to run once per period. fn receives the due time.
func (s *Scheduler) Every(name string, period time.Duration, fn func(now time.Time)) (*Task, error) {
	if period <= 0 {
		return nil, fmt.Errorf("task %s: invalid period %v", name, period)
	}
	if fn == nil {
		return nil, fmt.Errorf("task %s: nil function", name)
	}

	t := &Task{
		name:   name,
		period: period,
		run:    fn,
		next:   s.start.Add(period),
		seq:    s.seq,
	}
	s.seq++
	heap.Push(&s.tasks, t)
	return t, nil
}

// Trigger registers fn to run whenever signal is readable. It is meant for
// a producer that runs outside the scheduler, such as an ADC block source.
func (s *Scheduler) Trigger(signal <-chan struct{}, fn func(now time.Time)) {
	s.trigger = signal
	s.onTrigger = fn
}

// Triggers returns how many times the trigger function has run.
func (s *Scheduler) Triggers() uint64 {
	return s.triggers
}

// Next returns the earliest due time of all tasks.
func (s *Scheduler) Next() (time.Time, bool) {
	if len(s.tasks) == 0 {
		return time.Time{}, false
	}
	return s.tasks[0].next, true
}

// RunDue runs, in due-time order, every task due at or before now and
// returns how many task bodies ran. Tasks due at the same instant run in
// registration order.
func (s *Scheduler) RunDue(now time.Time) int {
	n := 0
	for len(s.tasks) > 0 {
		t := s.tasks[0]
		if t.next.After(now) {
			break
		}
		t.run(t.next)
		t.runs++
		t.next = t.next.Add(t.period)
		heap.Fix(&s.tasks, 0)
		n++
	}
	return n
}

// Fire runs the trigger function once.
func (s *Scheduler) Fire(now time.Time) {
	if s.onTrigger == nil {
		return
	}
	s.onTrigger(now)
	s.triggers++
}

// Run dispatches tasks in real time until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		var timerC <-chan time.Time
		if next, ok := s.Next(); ok {
			timer.Reset(max(next.Sub(s.now()), 0))
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.trigger:
			s.Fire(s.now())
		case <-timerC:
			s.RunDue(s.now())
		}
	}
}

type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].next.Equal(h[j].next) {
		return h[i].seq < h[j].seq
	}
	return h[i].next.Before(h[j].next)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	t.index = -1
	return t
}
