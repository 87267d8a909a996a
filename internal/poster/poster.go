// Package poster owns the posting-and-retry controller: select a
// candidate message, try the delivery channels in priority order,
// classify the failure, back off on rate limits, and rotate content on
// retry. All state lives for one AttemptPost call; nothing survives the
// return except log output.
package poster

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"chirpd/internal/transport"
	logx "chirpd/pkg/logx"
)

// Source supplies candidate messages. Implemented by content.Source.
type Source interface {
	PickRandom(excluding map[string]struct{}) (string, error)
	Generate(ctx context.Context, topic string) (string, error)
}

type Config struct {
	MaxRetries  int           // backoff rounds after the first (default 5)
	BaseBackoff time.Duration // first backoff delay (default 60s)
	JitterMax   time.Duration // additive uniform jitter cap (default 10s)
}

// Controller runs one posting cycle at a time. The caller (scheduler)
// serializes invocations; channel credentials must not be used for
// conflicting concurrent writes.
type Controller struct {
	cfg      Config
	source   Source
	channels []transport.Channel
	log      logx.Logger

	// Injection points for tests. Defaults sleep on a ctx-aware timer and
	// draw jitter uniformly from [0, JitterMax).
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

func New(cfg Config, source Source, channels []transport.Channel, log logx.Logger) *Controller {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 60 * time.Second
	}
	if cfg.JitterMax < 0 {
		cfg.JitterMax = 0
	} else if cfg.JitterMax == 0 {
		cfg.JitterMax = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Controller{
		cfg:      cfg,
		source:   source,
		channels: channels,
		log:      log,
	}
	c.sleep = sleepCtx
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	c.jitter = func() time.Duration {
		if c.cfg.JitterMax <= 0 {
			return 0
		}
		return time.Duration(rnd.Int63n(int64(c.cfg.JitterMax)))
	}
	return c
}

// AttemptPost runs one full posting cycle: SELECT, DELIVER, and on rate
// limits up to MaxRetries rounds of BACKOFF + SELECT_RETRY + DELIVER.
//
// Returns a Receipt on success, a *CycleError on terminal per-cycle
// failure, ctx.Err() when cancelled during backoff, or the selection
// error for an empty corpus.
func (c *Controller) AttemptPost(ctx context.Context, useGeneration bool, topic string) (Receipt, error) {
	log := c.log.With(logx.String("cycle", shortID()))

	used := make(map[string]struct{})

	var msg string
	var err error
	if useGeneration {
		msg, err = c.source.Generate(ctx, topic)
	} else {
		msg, err = c.source.PickRandom(nil)
	}
	if err != nil {
		return Receipt{}, err
	}
	used[msg] = struct{}{}

	var tried []string
	// start rotates after a rate-limit abort so the next round leads with
	// the channels that never got a turn, not with the channel that just
	// tripped the limit.
	start := 0
	for round := 0; ; round++ {
		if round > 0 {
			delay := c.backoffDelay(round)
			log.Warn("rate limit hit, backing off",
				logx.Int("retry", round),
				logx.Int("max_retries", c.cfg.MaxRetries),
				logx.Duration("delay", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return Receipt{}, err
			}

			// Rotate content so a retry doesn't trip duplicate detection.
			// PickRandom ignores the exclusion only when it covers the whole
			// corpus, so a duplicate pick means every corpus member has had
			// its turn (generated text in the set is not a corpus member and
			// never counts toward coverage). Only then does a fresh rotation
			// start.
			msg, err = c.source.PickRandom(used)
			if err != nil {
				return Receipt{}, err
			}
			if _, dup := used[msg]; dup {
				used = map[string]struct{}{msg: {}}
			} else {
				used[msg] = struct{}{}
			}
			log.Info("retrying with new message", logx.String("message", msg))
		}

		rateLimited := false
		n := len(c.channels)
		for k := 0; k < n; k++ {
			ch := c.channels[(start+k)%n]
			tried = appendUnique(tried, ch.Name())
			log.Info("attempting delivery",
				logx.String("channel", ch.Name()),
				logx.String("message", msg))

			rec, err := ch.Post(ctx, msg)
			if err == nil {
				log.Info("posted",
					logx.String("channel", rec.Channel),
					logx.String("id", rec.ID),
					logx.String("message", msg))
				return Receipt{Channel: rec.Channel, PostID: rec.ID, Message: msg}, nil
			}

			if transport.IsRateLimited(err) {
				// The whole round is rate-limited; the channels not yet
				// tried get their turn after backoff, with fresh content.
				log.Warn("delivery rate limited", logx.String("channel", ch.Name()), logx.Err(err))
				rateLimited = true
				start = (start + k + 1) % n
				break
			}

			log.Warn("delivery failed", logx.String("channel", ch.Name()), logx.Err(err))
		}

		if !rateLimited {
			cerr := &CycleError{
				Reason:        ReasonAllChannelsFailed,
				ChannelsTried: tried,
				Rounds:        round + 1,
			}
			log.Error("all channels failed", logx.Strings("channels", tried))
			return Receipt{}, cerr
		}

		if round == c.cfg.MaxRetries {
			cerr := &CycleError{
				Reason:        ReasonRateLimitExhausted,
				ChannelsTried: tried,
				Rounds:        round + 1,
			}
			log.Error("retries exhausted",
				logx.Int("rounds", round+1),
				logx.Strings("channels", tried))
			return Receipt{}, cerr
		}
	}
}

// backoffDelay computes base·2^(retry-1) plus additive jitter. Pure
// exponential, uncapped.
func (c *Controller) backoffDelay(retry int) time.Duration {
	d := c.cfg.BaseBackoff << (retry - 1)
	return d + c.jitter()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func shortID() string {
	return uuid.NewString()[:8]
}
