package chunker

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

func TestChunk_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		window  int
		overlap int
	}{
		{0, 0},
		{-5, 0},
		{10, -1},
		{10, 10},
		{10, 15},
	}
	for _, tt := range tests {
		_, err := Chunk("some text", tt.window, tt.overlap)
		if !knowledgeModel.IsConfigurationError(err) {
			t.Errorf("Chunk(window=%d, overlap=%d) error = %v, want ConfigurationError", tt.window, tt.overlap, err)
		}
	}
}

func TestChunk_EmptyAndShortText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t \n"} {
		chunks, err := Chunk(text, 100, 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunks) != 0 {
			t.Errorf("Chunk(%q) = %v, want no fragments", text, chunks)
		}
	}

	chunks, err := Chunk("  Натощак за 8 часов.  ", 100, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "Натощак за 8 часов." {
		t.Errorf("short text chunks = %q", chunks)
	}
}

func TestChunk_SnapsToSentenceBoundary(t *testing.T) {
	text := "Первое предложение. Второе предложение длиннее."
	chunks, err := Chunk(text, 30, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %q", chunks)
	}
	if chunks[0] != "Первое предложение." {
		t.Errorf("first chunk = %q, want cut after the sentence terminator", chunks[0])
	}
}

func TestChunk_RawCutWithoutBoundary(t *testing.T) {
	text := strings.Repeat("abcdefghij", 3)
	chunks, err := Chunk(text, 10, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"abcdefghij", "ijabcdefgh", "ghijabcdef", "efghij"}
	if !reflect.DeepEqual(chunks, expected) {
		t.Errorf("chunks = %q, want %q", chunks, expected)
	}
}

func TestChunk_IgnoresBoundaryBeforeMidpoint(t *testing.T) {
	// the only terminator sits in the first half of the window
	text := "Ab. cdefghijklmnopqrstuvwxyz"
	chunks, err := Chunk(text, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks[0] != "Ab. cdefghijklmnopqr" {
		t.Errorf("first chunk = %q", chunks[0])
	}
}

func randomDocument(r *rand.Rand) string {
	words := []string{"подготовка", "ФГДС", "натощак", "анализ", "крови", "приём", "врача",
		"clinic", "fasting", "water", "за", "8", "часов", "до", "процедуры", "не", "есть"}
	seps := []string{" ", " ", " ", ". ", "! ", "? ", "\n", "… ", ", ", "\n\n"}
	var b strings.Builder
	n := 20 + r.Intn(400)
	for i := 0; i < n; i++ {
		b.WriteString(words[r.Intn(len(words))])
		b.WriteString(seps[r.Intn(len(seps))])
	}
	return b.String()
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// reassemble concatenates spans while skipping regions already covered by the previous fragment.
func reassemble(t *testing.T, runes []rune, spans []span) string {
	var b strings.Builder
	cursor := 0
	for i, s := range spans {
		if i > 0 && s.start <= spans[i-1].start {
			t.Fatalf("fragment %d does not advance: %d <= %d", i, s.start, spans[i-1].start)
		}
		if s.start > cursor {
			for _, r := range runes[cursor:s.start] {
				if !unicode.IsSpace(r) {
					t.Fatalf("non-whitespace rune %q lost before fragment %d", r, i)
				}
			}
		}
		from := max(cursor, s.start)
		if from < s.end {
			b.WriteString(string(runes[from:s.end]))
		}
		cursor = max(cursor, s.end)
	}
	return b.String()
}

func TestChunk_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	configs := []struct{ window, overlap int }{
		{50, 0}, {50, 10}, {50, 49}, {120, 30}, {1000, 150}, {7, 3},
	}

	for i := 0; i < 60; i++ {
		text := randomDocument(r)
		runes := []rune(text)
		for _, cfg := range configs {
			spans, err := chunkSpans(runes, cfg.window, cfg.overlap)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			chunks, _ := Chunk(text, cfg.window, cfg.overlap)
			if len(chunks) != len(spans) {
				t.Fatalf("chunk count mismatch %d vs %d", len(chunks), len(spans))
			}

			for j, c := range chunks {
				if strings.TrimSpace(c) == "" {
					t.Fatalf("fragment %d is empty", j)
				}
				if c != strings.TrimSpace(c) {
					t.Fatalf("fragment %d is not trimmed: %q", j, c)
				}
				if utf8.RuneCountInString(c) > cfg.window {
					t.Fatalf("fragment %d longer than window %d", j, cfg.window)
				}
			}

			if got, want := stripSpace(reassemble(t, runes, spans)), stripSpace(text); got != want {
				t.Fatalf("window=%d overlap=%d: reassembled text differs from source", cfg.window, cfg.overlap)
			}

			again, _ := Chunk(text, cfg.window, cfg.overlap)
			if !reflect.DeepEqual(chunks, again) {
				t.Fatalf("window=%d overlap=%d: chunking is not deterministic", cfg.window, cfg.overlap)
			}
		}
	}
}
