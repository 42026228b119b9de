// Package job serializes long-running jobs: at most one harvest and one
// dispatch may run at a time, and either can be stopped from outside.
package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Kind names a job slot. Jobs of different kinds run concurrently; two
// jobs of the same kind never do.
type Kind string

const (
	KindHarvest  Kind = "harvest"
	KindDispatch Kind = "dispatch"
)

// ErrBusy is returned by Start when the slot is already occupied.
var ErrBusy = errors.New("job already running")

// Info describes a running job.
type Info struct {
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	StartedAt   time.Time `json:"started_at"`
}

// Handle tracks one started job.
type Handle struct {
	done chan struct{}
	err  error
}

// Wait blocks until the job finishes and returns its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Supervisor owns the job slots. Acquisition never blocks: a second
// start of the same kind fails fast with ErrBusy instead of queueing.
type Supervisor struct {
	mu      sync.Mutex
	running map[Kind]*slot
	log     *zap.Logger
}

type slot struct {
	cancel context.CancelFunc
	handle *Handle
	info   Info
}

func NewSupervisor() *Supervisor {
	return &Supervisor{
		running: make(map[Kind]*slot),
		log:     zap.L().With(zap.String("component", "job")),
	}
}

// Start claims the kind's slot and runs fn in a goroutine with a
// cancelable context derived from ctx. It returns ErrBusy without
// touching fn when a job of the same kind is already running.
func (s *Supervisor) Start(ctx context.Context, kind Kind, description string, fn func(context.Context) error) (*Handle, error) {
	s.mu.Lock()
	if _, ok := s.running[kind]; ok {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	jobCtx, cancel := context.WithCancel(ctx)
	h := &Handle{done: make(chan struct{})}
	s.running[kind] = &slot{
		cancel: cancel,
		handle: h,
		info:   Info{Kind: kind, Description: description, StartedAt: time.Now()},
	}
	s.mu.Unlock()

	s.log.Info("job started", zap.String("kind", string(kind)), zap.String("description", description))
	go func() {
		defer cancel()
		err := fn(jobCtx)

		s.mu.Lock()
		delete(s.running, kind)
		s.mu.Unlock()

		h.err = err
		close(h.done)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("job failed", zap.String("kind", string(kind)), zap.Error(err))
		} else {
			s.log.Info("job finished", zap.String("kind", string(kind)))
		}
	}()
	return h, nil
}

// Run is Start followed by Wait, for callers that hold the foreground.
func (s *Supervisor) Run(ctx context.Context, kind Kind, description string, fn func(context.Context) error) error {
	h, err := s.Start(ctx, kind, description, fn)
	if err != nil {
		return err
	}
	return h.Wait()
}

// Stop cancels the running job of the given kind, if any, and reports
// whether there was one. It does not wait for the job to unwind.
func (s *Supervisor) Stop(kind Kind) bool {
	s.mu.Lock()
	sl, ok := s.running[kind]
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.log.Info("job stop requested", zap.String("kind", string(kind)))
	sl.cancel()
	return true
}

// Running reports whether a job of the given kind is active.
func (s *Supervisor) Running(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[kind]
	return ok
}

// Status lists the currently running jobs.
func (s *Supervisor) Status() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Info, 0, len(s.running))
	for _, sl := range s.running {
		out = append(out, sl.info)
	}
	return out
}
