// Package scheduler triggers posting cycles: once immediately at startup,
// then on a fixed interval. It only triggers; the posting controller owns
// everything that happens inside a cycle.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "chirpd/pkg/logx"
)

type Config struct {
	Interval time.Duration

	// UseGeneration routes cycles through the generative path.
	UseGeneration bool
	// Topics are rotated round-robin across generation cycles. Empty
	// means untopiced generation.
	Topics []string
}

// CycleFunc runs one posting cycle. Errors are the cycle's own business;
// the scheduler keeps triggering regardless.
type CycleFunc func(ctx context.Context, useGeneration bool, topic string)

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	run CycleFunc

	c     *cron.Cron
	entry cron.EntryID
	ctx   context.Context

	inFlight bool
	topicIdx int
}

func New(cfg Config, run CycleFunc, log logx.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, run: run, log: log}
}

// Start begins interval triggering and fires the startup cycle.
// Idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.c != nil {
		s.mu.Unlock()
		return
	}
	s.ctx = ctx
	s.c = cron.New()
	entry, err := s.c.AddFunc("@every "+s.cfg.Interval.String(), s.trigger)
	if err != nil {
		s.log.Error("cron registration failed", logx.Err(err))
	}
	s.entry = entry
	s.c.Start()
	interval := s.cfg.Interval
	s.mu.Unlock()

	s.log.Info("scheduler started", logx.Duration("interval", interval))

	// Post once right away rather than waiting a full interval.
	go s.trigger()
}

// Apply updates interval and topic settings live. A changed interval
// re-registers the cron entry; the next run counts from now.
func (s *Service) Apply(cfg Config) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := cfg.Interval != s.cfg.Interval
	s.cfg = cfg
	if s.topicIdx >= len(cfg.Topics) {
		s.topicIdx = 0
	}

	if !changed || s.c == nil {
		return
	}
	s.c.Remove(s.entry)
	entry, err := s.c.AddFunc("@every "+cfg.Interval.String(), s.trigger)
	if err != nil {
		s.log.Error("cron registration failed", logx.Err(err))
		return
	}
	s.entry = entry
	s.log.Info("posting interval updated", logx.Duration("interval", cfg.Interval))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort
	}
	s.log.Info("scheduler stopped")
}

// trigger runs one cycle, serialized: if the previous cycle is still in
// flight (e.g. deep in backoff), this tick is skipped. Cycles for the
// same identity must never overlap.
func (s *Service) trigger() {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.log.Warn("previous cycle still running, skipping this tick")
		return
	}
	s.inFlight = true
	ctx := s.ctx
	useGen := s.cfg.UseGeneration
	topic := s.nextTopicLocked()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	if ctx == nil || ctx.Err() != nil {
		return
	}
	s.run(ctx, useGen, topic)
}

func (s *Service) nextTopicLocked() string {
	if !s.cfg.UseGeneration || len(s.cfg.Topics) == 0 {
		return ""
	}
	t := s.cfg.Topics[s.topicIdx%len(s.cfg.Topics)]
	s.topicIdx++
	return t
}
