// Package app wires the agent together: config, logging, delivery
// channels, content source, posting controller, scheduler, and optional
// operator alerts.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chirpd/internal/alert"
	"chirpd/internal/config"
	"chirpd/internal/content"
	"chirpd/internal/llm"
	"chirpd/internal/poster"
	"chirpd/internal/runtime/supervisor"
	"chirpd/internal/scheduler"
	"chirpd/internal/transport"
	"chirpd/internal/transport/xapi"
	logx "chirpd/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	source *content.Source
	ctrl   *poster.Controller
	sched  *scheduler.Service
	alerts *alert.Notifier // nil when alerts are not configured
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	if dump, err := config.RedactedYAML(cfg); err == nil {
		log.Debug("effective config\n" + dump)
	}

	// Credentials are fatal at startup, with the full missing list.
	creds := platformCredentials(cfg)
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	// Corpus is the only durable input; fail fast if it is unusable.
	corpus, err := content.LoadCorpus(cfg.Posting.CorpusPath)
	if err != nil {
		return nil, err
	}
	log.Info("corpus loaded",
		logx.String("path", cfg.Posting.CorpusPath),
		logx.Int("messages", len(corpus)))

	var gen content.Completer
	if cfg.GenerationEnabled() {
		gen = llm.New(llm.Config{
			APIKey: cfg.Generation.APIKey,
			APIURL: cfg.Generation.APIURL,
			Model:  cfg.Generation.Model,
		})
		log.Info("generative backend enabled", logx.String("model", cfg.Generation.Model))
	} else {
		log.Warn("no generation API key; posting from corpus only")
	}

	source, err := content.NewSource(content.SourceConfig{
		Corpus:    corpus,
		Generator: gen,
		Generation: content.GenerationConfig{
			Subject: cfg.Generation.Subject,
			Context: cfg.Generation.Context,
		},
	}, log.With(logx.String("comp", "content")))
	if err != nil {
		return nil, err
	}

	chCfg := xapi.Config{
		Credentials:    creds,
		BaseURL:        cfg.Platform.BaseURL,
		RequestsPerMin: cfg.Platform.RequestsPerMin,
	}
	rich, legacy := xapi.NewChannels(chCfg, log.With(logx.String("comp", "xapi")))
	channels := []transport.Channel{rich, legacy}

	baseBackoff, err := config.ParseDuration("posting.base_backoff", cfg.Posting.BaseBackoff, 60*time.Second)
	if err != nil {
		return nil, err
	}
	jitterMax, err := config.ParseDuration("posting.jitter_max", cfg.Posting.JitterMax, 10*time.Second)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfgm:   cfgm,
		log:    log,
		logs:   logSvc,
		source: source,
	}

	a.ctrl = poster.New(poster.Config{
		MaxRetries:  cfg.Posting.MaxRetries,
		BaseBackoff: baseBackoff,
		JitterMax:   jitterMax,
	}, source, channels, log.With(logx.String("comp", "poster")))

	a.sched = scheduler.New(scheduler.Config{
		Interval:      time.Duration(cfg.Posting.IntervalMinutes) * time.Minute,
		UseGeneration: cfg.GenerationEnabled(),
		Topics:        cfg.Generation.Topics,
	}, a.runCycle, log.With(logx.String("comp", "scheduler")))

	if cfg.AlertsEnabled() {
		n, err := alert.New(alert.Config{
			Token:      cfg.Alert.TelegramToken,
			ChatID:     cfg.Alert.ChatID,
			RatePerMin: cfg.Alert.RatePerMin,
		}, log.With(logx.String("comp", "alert")))
		if err != nil {
			// Alerts are best-effort; a broken alert channel must not stop posting.
			log.Warn("operator alerts unavailable", logx.Err(err))
		} else {
			a.alerts = n
			log.Info("operator alerts enabled", logx.Int64("chat_id", cfg.Alert.ChatID))
		}
	}

	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log),
		supervisor.WithCancelOnError(false))

	a.sched.Start(a.sup.Context())

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	// Hot-reload fan-out: cadence, topics and logging apply live;
	// credentials and channel wiring need a restart.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(newCfg)
			}
		}
	})

	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		return watchdogLoop(c, a.log)
	})

	notifyReady(a.log)
	a.log.Info("agent started")
	return nil
}

func (a *App) applyReload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logs.Apply(mapLogging(cfg))
	a.sched.Apply(scheduler.Config{
		Interval:      time.Duration(cfg.Posting.IntervalMinutes) * time.Minute,
		UseGeneration: cfg.GenerationEnabled(),
		Topics:        cfg.Generation.Topics,
	})
	a.log.Info("config reloaded",
		logx.Int("interval_minutes", cfg.Posting.IntervalMinutes),
		logx.Int("topics", len(cfg.Generation.Topics)))
}

// runCycle is the scheduler callback: one posting cycle, with all
// per-cycle errors absorbed here so the schedule keeps going.
func (a *App) runCycle(ctx context.Context, useGeneration bool, topic string) {
	rec, err := a.ctrl.AttemptPost(ctx, useGeneration, topic)
	if err == nil {
		a.log.Info("cycle complete",
			logx.String("channel", rec.Channel),
			logx.String("id", rec.PostID))
		return
	}

	var cerr *poster.CycleError
	switch {
	case errors.As(err, &cerr):
		a.log.Error("cycle failed",
			logx.String("reason", string(cerr.Reason)),
			logx.Strings("channels", cerr.ChannelsTried),
			logx.Int("rounds", cerr.Rounds))
		a.log.Error(cerr.Remediation())
		a.alerts.Notify(fmt.Sprintf("chirpd: %v\n%s", cerr, cerr.Remediation()))
	case errors.Is(err, context.Canceled):
		a.log.Info("cycle cancelled during backoff")
	default:
		a.log.Error("cycle failed", logx.Err(err))
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	notifyStopping(a.log)

	// Cancel first so an in-flight backoff unwinds immediately.
	a.sup.Cancel()

	step(ctx, a.log, "scheduler", 2*time.Second, func(c context.Context) error {
		a.sched.Stop(c)
		return nil
	})
	step(ctx, a.log, "supervisor", 2*time.Second, func(c context.Context) error {
		return a.sup.Wait(c)
	})

	a.log.Info("stopped")
	return a.logs.Close()
}

// step runs one shutdown stage with an upper bound so a stuck component
// can't stall the whole stop.
func step(ctx context.Context, log logx.Logger, name string, max time.Duration, fn func(context.Context) error) {
	stepCtx := ctx
	var cancel context.CancelFunc
	if max > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, max)
		defer cancel()
	}

	start := time.Now()
	if err := fn(stepCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("stop step error", logx.String("name", name), logx.Err(err))
	}
	log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
}

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
			MaxAgeDays: cfg.Logging.File.MaxAgeDays,
		},
	}
}

func platformCredentials(cfg *config.Config) xapi.Credentials {
	return xapi.Credentials{
		APIKey:       cfg.Platform.APIKey,
		APISecret:    cfg.Platform.APISecret,
		AccessToken:  cfg.Platform.AccessToken,
		AccessSecret: cfg.Platform.AccessSecret,
		BearerToken:  cfg.Platform.BearerToken,
	}
}
