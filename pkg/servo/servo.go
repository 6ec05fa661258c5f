// Package servo wires acquisition, aggregation, control and telemetry into
// one cooperatively scheduled system.
package servo

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/itohio/potservo/pkg/acquire"
	"github.com/itohio/potservo/pkg/config"
	"github.com/itohio/potservo/pkg/control"
	"github.com/itohio/potservo/pkg/hbridge"
	"github.com/itohio/potservo/pkg/sample"
	"github.com/itohio/potservo/pkg/scheduler"
	"github.com/itohio/potservo/pkg/state"
	"github.com/itohio/potservo/pkg/telemetry"
)

// Options are the external collaborators of a System.
type Options struct {
	Actuators []hbridge.Actuator // One per motor
	Telemetry io.Writer          // Telemetry stream; nil disables telemetry
	Logger    *log.Logger        // Diagnostics; defaults to the standard logger
	Start     time.Time          // Scheduler epoch; defaults to now
}

// System is one servo controller instance.
type System struct {
	cfg    *config.Config
	logger *log.Logger
	start  time.Time

	table *state.Table
	pool  *acquire.Pool
	agg   *sample.Aggregator
	loop  *control.Loop
	enc   *telemetry.Encoder
	sched *scheduler.Scheduler

	telemetryFault bool
}

// New validates cfg and builds the system. Nothing runs until Run.
func New(cfg *config.Config, opts Options) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now()
	}

	s := &System{
		cfg:    cfg,
		logger: opts.Logger,
		start:  opts.Start,
		table:  state.NewTable(cfg.Acquisition.Motors),
		sched:  scheduler.New(opts.Start),
	}

	var err error
	s.pool, err = acquire.NewPool(cfg.Acquisition.Buffers, cfg.BlockLen())
	if err != nil {
		return nil, err
	}
	s.agg = sample.NewAggregator(s.table, s.logger)
	s.loop, err = control.NewLoop(control.Law{Kp: cfg.Control.Kp}, s.table, opts.Actuators, s.logger)
	if err != nil {
		return nil, err
	}

	s.sched.Trigger(s.pool.Signal(), s.acquire)
	if _, err := s.sched.Every("control", cfg.ControlPeriod(), s.control); err != nil {
		return nil, err
	}
	if cfg.Telemetry.Enabled && opts.Telemetry != nil {
		mode, err := telemetry.ParseMode(cfg.Telemetry.Mode)
		if err != nil {
			return nil, err
		}
		s.enc = telemetry.NewEncoder(opts.Telemetry, mode)
		if _, err := s.sched.Every("telemetry", cfg.TelemetryPeriod(), s.telemetry); err != nil {
			return nil, err
		}
	}
	if _, err := s.sched.Every("heartbeat", cfg.Heartbeat.Interval, s.heartbeat); err != nil {
		return nil, err
	}

	return s, nil
}

// Pool returns the buffer pool sample sources fill.
func (s *System) Pool() *acquire.Pool {
	return s.pool
}

// Table returns the motor state table.
func (s *System) Table() *state.Table {
	return s.table
}

// Scheduler returns the task scheduler.
func (s *System) Scheduler() *scheduler.Scheduler {
	return s.sched
}

// Run dispatches all tasks until ctx is cancelled.
func (s *System) Run(ctx context.Context) error {
	s.logger.Printf("Servo running: %s", s.Summary())
	return s.sched.Run(ctx)
}

// acquire drains every delivery that is ready.
func (s *System) acquire(time.Time) {
	for {
		d, ok := s.pool.Next()
		if !ok {
			return
		}
		s.agg.Handle(d)
	}
}

func (s *System) control(time.Time) {
	s.loop.Tick()
}

// telemetry never retries; a failing sink is reported once per fault.
func (s *System) telemetry(time.Time) {
	err := s.enc.Emit(s.table)
	switch {
	case err != nil && !s.telemetryFault:
		s.logger.Printf("Telemetry sink fault, dropping lines: %v", err)
		s.telemetryFault = true
	case err == nil && s.telemetryFault:
		s.logger.Printf("Telemetry sink recovered")
		s.telemetryFault = false
	}
}

func (s *System) heartbeat(now time.Time) {
	s.logger.Printf("alive: uptime=%v overruns=%d blocks=%d",
		now.Sub(s.start).Truncate(time.Second), s.pool.Overruns(), s.agg.Blocks())
}

// Summary describes the running configuration in one line.
func (s *System) Summary() string {
	tm := "off"
	if s.enc != nil {
		tm = fmt.Sprintf("%gHz/%s", s.cfg.Telemetry.Frequency, s.cfg.Telemetry.Mode)
	}
	return fmt.Sprintf("motors=%d kp=%g control=%gHz telemetry=%s oversampling=%d buffers=%d",
		s.table.Len(), s.cfg.Control.Kp, s.cfg.Control.Frequency, tm,
		s.cfg.Acquisition.Oversampling, s.cfg.Acquisition.Buffers)
}
