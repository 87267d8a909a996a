package content

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	logx "chirpd/pkg/logx"
)

func newTestSource(t *testing.T, cfg SourceConfig) *Source {
	t.Helper()
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}
	s, err := NewSource(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("NewSource error: %v", err)
	}
	return s
}

func TestLoadCorpus(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "corpus.txt")
	data := "first message\n\n   \n  second message  \nthird\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	msgs, err := LoadCorpus(path)
	if err != nil {
		t.Fatalf("LoadCorpus error: %v", err)
	}
	want := []string{"first message", "second message", "third"}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Fatalf("msgs[%d] = %q, want %q", i, msgs[i], want[i])
		}
	}
}

func TestLoadCorpusTruncatesLongLines(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "corpus.txt")
	long := strings.Repeat("x", 400)
	if err := os.WriteFile(path, []byte("short\n"+long+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	msgs, err := LoadCorpus(path)
	if err != nil {
		t.Fatalf("LoadCorpus error: %v", err)
	}
	if msgs[0] != "short" {
		t.Fatalf("msgs[0] = %q", msgs[0])
	}
	if n := utf8.RuneCountInString(msgs[1]); n != MaxMessageLen {
		t.Fatalf("long line length = %d, want %d", n, MaxMessageLen)
	}
	if !strings.HasSuffix(msgs[1], "...") {
		t.Fatal("long line was not truncated with an ellipsis")
	}
}

func TestLoadCorpusMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := LoadCorpus(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadCorpusEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("\n \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadCorpus(path)
	if !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("err = %v, want ErrEmptyCorpus", err)
	}
}

func TestPickRandomIsMember(t *testing.T) {
	t.Parallel()
	corpus := []string{"A", "B", "C"}
	s := newTestSource(t, SourceConfig{Corpus: corpus})

	for i := 0; i < 50; i++ {
		got, err := s.PickRandom(nil)
		if err != nil {
			t.Fatalf("PickRandom error: %v", err)
		}
		if got != "A" && got != "B" && got != "C" {
			t.Fatalf("picked %q, not a corpus member", got)
		}
	}
}

func TestPickRandomHonorsExclusion(t *testing.T) {
	t.Parallel()
	s := newTestSource(t, SourceConfig{Corpus: []string{"A", "B", "C"}})
	excluding := map[string]struct{}{"A": {}, "C": {}}

	for i := 0; i < 50; i++ {
		got, err := s.PickRandom(excluding)
		if err != nil {
			t.Fatalf("PickRandom error: %v", err)
		}
		if got != "B" {
			t.Fatalf("picked %q, want B", got)
		}
	}
}

func TestPickRandomIgnoresFullExclusion(t *testing.T) {
	t.Parallel()
	s := newTestSource(t, SourceConfig{Corpus: []string{"A", "B"}})
	excluding := map[string]struct{}{"A": {}, "B": {}}

	got, err := s.PickRandom(excluding)
	if err != nil {
		t.Fatalf("PickRandom error: %v", err)
	}
	if got != "A" && got != "B" {
		t.Fatalf("picked %q", got)
	}
}

type fakeCompleter struct {
	text string
	err  error
}

func (f fakeCompleter) Complete(_ context.Context, _, _ string, _ int, _ float64) (string, error) {
	return f.text, f.err
}

func TestGenerateReturnsBackendText(t *testing.T) {
	t.Parallel()
	s := newTestSource(t, SourceConfig{
		Corpus:    []string{"fallback"},
		Generator: fakeCompleter{text: "  shiny new post  "},
	})
	got, err := s.Generate(context.Background(), "launch week")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if got != "shiny new post" {
		t.Fatalf("got %q", got)
	}
}

func TestGenerateFallsBackOnError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		gen  Completer
	}{
		{name: "backend error", gen: fakeCompleter{err: errors.New("boom")}},
		{name: "empty text", gen: fakeCompleter{text: "   "}},
		{name: "no generator", gen: nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestSource(t, SourceConfig{Corpus: []string{"fallback"}, Generator: tt.gen})
			got, err := s.Generate(context.Background(), "")
			if err != nil {
				t.Fatalf("Generate error: %v", err)
			}
			if got != "fallback" {
				t.Fatalf("got %q, want corpus fallback", got)
			}
		})
	}
}

func TestGenerateCapsLength(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 400)
	s := newTestSource(t, SourceConfig{
		Corpus:    []string{"fallback"},
		Generator: fakeCompleter{text: long},
	})
	got, err := s.Generate(context.Background(), "")
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if n := utf8.RuneCountInString(got); n != MaxMessageLen {
		t.Fatalf("length = %d, want %d", n, MaxMessageLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated text does not end with ellipsis: %q", got[len(got)-10:])
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := Truncate("short"); got != "short" {
		t.Fatalf("got %q", got)
	}
	exact := strings.Repeat("a", MaxMessageLen)
	if got := Truncate(exact); got != exact {
		t.Fatal("exact-length text must not be truncated")
	}
	multi := strings.Repeat("ß", 300)
	got := Truncate(multi)
	if n := utf8.RuneCountInString(got); n != MaxMessageLen {
		t.Fatalf("rune length = %d, want %d", n, MaxMessageLen)
	}
}

func TestNewSourceEmptyCorpus(t *testing.T) {
	t.Parallel()
	if _, err := NewSource(SourceConfig{}, logx.Nop()); !errors.Is(err, ErrEmptyCorpus) {
		t.Fatalf("err = %v, want ErrEmptyCorpus", err)
	}
}
