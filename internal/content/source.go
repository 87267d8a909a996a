package content

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	logx "chirpd/pkg/logx"
)

// Completer is the generative backend contract. Any failure is treated
// uniformly as generation failure.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

// GenerationConfig scopes generated messages to a fixed subject.
type GenerationConfig struct {
	// Subject names what the account posts about, e.g. "the Chirpd project".
	Subject string
	// Context is free-form background injected into the system prompt.
	Context string

	MaxTokens   int     // default 100
	Temperature float64 // default 0.7
}

type SourceConfig struct {
	Corpus []string

	// Generator enables Generate(); nil means Generate always falls back
	// to the corpus.
	Generator  Completer
	Generation GenerationConfig

	// Rand overrides the selection source (tests). Nil means time-seeded.
	Rand *rand.Rand
}

// Source picks candidate messages. Safe for use from a single posting
// cycle at a time; selection state is internally locked so Generate and
// PickRandom may share the rand source.
type Source struct {
	corpus []string
	gen    Completer
	genCfg GenerationConfig
	log    logx.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSource(cfg SourceConfig, log logx.Logger) (*Source, error) {
	if len(cfg.Corpus) == 0 {
		return nil, ErrEmptyCorpus
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	gc := cfg.Generation
	if gc.MaxTokens <= 0 {
		gc.MaxTokens = 100
	}
	if gc.Temperature <= 0 {
		gc.Temperature = 0.7
	}
	return &Source{
		corpus: append([]string(nil), cfg.Corpus...),
		gen:    cfg.Generator,
		genCfg: gc,
		log:    log,
		rnd:    rnd,
	}, nil
}

// PickRandom returns a uniformly random corpus message not in excluding.
// When excluding covers the whole corpus the exclusion is ignored, so a
// candidate is always found for a nonempty corpus.
func (s *Source) PickRandom(excluding map[string]struct{}) (string, error) {
	if len(s.corpus) == 0 {
		return "", ErrEmptyCorpus
	}

	candidates := s.corpus
	if len(excluding) > 0 {
		avail := make([]string, 0, len(s.corpus))
		for _, m := range s.corpus {
			if _, used := excluding[m]; !used {
				avail = append(avail, m)
			}
		}
		if len(avail) > 0 {
			candidates = avail
		}
	}

	s.mu.Lock()
	i := s.rnd.Intn(len(candidates))
	s.mu.Unlock()
	return candidates[i], nil
}

// Generate produces a message via the generative backend, scoped to the
// configured subject and an optional topic hint. It never fails outward:
// any backend problem falls back to a corpus pick.
func (s *Source) Generate(ctx context.Context, topic string) (string, error) {
	if s.gen == nil {
		s.log.Debug("generation disabled, using corpus")
		return s.PickRandom(nil)
	}

	text, err := s.gen.Complete(ctx,
		s.systemPrompt(topic), s.userPrompt(topic),
		s.genCfg.MaxTokens, s.genCfg.Temperature)
	if err != nil {
		s.log.Warn("generation failed, falling back to corpus", logx.Err(err))
		return s.PickRandom(nil)
	}

	text = Truncate(strings.TrimSpace(text))
	if text == "" {
		s.log.Warn("generation returned empty text, falling back to corpus")
		return s.PickRandom(nil)
	}
	s.log.Info("generated message", logx.String("text", text))
	return text, nil
}

func (s *Source) systemPrompt(topic string) string {
	subject := s.genCfg.Subject
	if subject == "" {
		subject = "this account"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You write social media posts for %s. ", subject)
	fmt.Fprintf(&b, "Generate ONE short, engaging post %s. ", topicPhrase(topic, subject))
	b.WriteString("The post must be under 280 characters, in a professional yet approachable tone. ")
	b.WriteString("No excessive emojis or hype language.")
	if s.genCfg.Context != "" {
		b.WriteString(" Context: ")
		b.WriteString(s.genCfg.Context)
	}
	return b.String()
}

func (s *Source) userPrompt(topic string) string {
	subject := s.genCfg.Subject
	if subject == "" {
		subject = "this account"
	}
	return fmt.Sprintf("Write a single post %s. Must be under 280 characters.", topicPhrase(topic, subject))
}

func topicPhrase(topic, subject string) string {
	if strings.TrimSpace(topic) != "" {
		return "about " + topic
	}
	return "about " + subject
}

// Truncate enforces the platform cap: anything over 280 characters is cut
// to 277 plus an ellipsis. Counts characters, not bytes.
func Truncate(text string) string {
	if utf8.RuneCountInString(text) <= MaxMessageLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxMessageLen-3]) + "..."
}
