package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chirpd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
platform:
  api_key: k
  api_secret: s
  access_token: at
  access_token_secret: ats
  bearer_token: b
posting:
  corpus_path: ./messages.txt
  interval_minutes: 30
generation:
  topics:
    - product updates
    - release notes
`

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Posting.IntervalMinutes != 30 {
		t.Fatalf("interval = %d", cfg.Posting.IntervalMinutes)
	}
	// env-defaults apply on top of the file
	if cfg.Posting.MaxRetries != 5 {
		t.Fatalf("max_retries = %d, want default 5", cfg.Posting.MaxRetries)
	}
	if cfg.Posting.BaseBackoff != "60s" {
		t.Fatalf("base_backoff = %q", cfg.Posting.BaseBackoff)
	}
	if len(cfg.Generation.Topics) != 2 {
		t.Fatalf("topics = %v", cfg.Generation.Topics)
	}
	if cfg.GenerationEnabled() {
		t.Fatal("generation should be disabled without an API key")
	}
	if cfg.AlertsEnabled() {
		t.Fatal("alerts should be disabled without token/chat")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("X_API_KEY", "k")
	t.Setenv("CHIRPD_INTERVAL_MINUTES", "15")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Platform.APIKey != "k" {
		t.Fatalf("api key = %q", cfg.Platform.APIKey)
	}
	if cfg.Posting.IntervalMinutes != 15 {
		t.Fatalf("interval = %d", cfg.Posting.IntervalMinutes)
	}
	if !cfg.GenerationEnabled() {
		t.Fatal("generation should be enabled")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "zero interval", mutate: func(c *Config) { c.Posting.IntervalMinutes = 0 }, want: "interval_minutes"},
		{name: "negative retries", mutate: func(c *Config) { c.Posting.MaxRetries = -1 }, want: "max_retries"},
		{name: "bad backoff", mutate: func(c *Config) { c.Posting.BaseBackoff = "soon" }, want: "base_backoff"},
		{name: "no corpus", mutate: func(c *Config) { c.Posting.CorpusPath = " " }, want: "corpus_path"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{
				Posting: PostingConfig{
					CorpusPath:      "./messages.txt",
					IntervalMinutes: 60,
					MaxRetries:      5,
					BaseBackoff:     "60s",
					JitterMax:       "10s",
				},
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()
	d, err := ParseDuration("x", " 90s ", time.Minute)
	if err != nil || d != 90*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
	if _, err := ParseDuration("x", "-5s", 0); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if _, err := ParseDuration("x", "soon", 0); err == nil {
		t.Fatal("expected error for garbage duration")
	}
	if d, err := ParseDuration("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := ParseDuration("x", "0s", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("got %v, %v", d, err)
	}
}

func TestRedactedYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	out, err := RedactedYAML(cfg)
	if err != nil {
		t.Fatalf("RedactedYAML error: %v", err)
	}
	for _, secret := range []string{"api_key: k", "bearer_token: b", "access_token: at"} {
		if strings.Contains(out, secret) {
			t.Fatalf("dump leaks secret: %s", secret)
		}
	}
	if !strings.Contains(out, masked) {
		t.Fatal("dump has no masked values")
	}
	if !strings.Contains(out, "interval_minutes: 30") {
		t.Fatalf("dump missing non-secret values:\n%s", out)
	}
}

func TestManagerLoadAndGet(t *testing.T) {
	m := NewManager(writeConfig(t, validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestManagerPublishDuringUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			m.publish(&Config{})
		}
	}()

	// Churning subscribers while publish runs must never send on a
	// channel that Unsubscribe has closed.
	for i := 0; i < 1000; i++ {
		ch := m.Subscribe(0)
		m.Unsubscribe(ch)
	}
	<-done
}

func TestManagerSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("")
	ch := m.Subscribe(1)
	m.publish(&Config{})
	select {
	case got := <-ch:
		if got == nil {
			t.Fatal("nil config published")
		}
	default:
		t.Fatal("no config delivered")
	}
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after Unsubscribe")
	}
}
