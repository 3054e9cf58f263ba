package chunker

import (
	"strconv"
	"unicode"

	"github.com/akolanti/ClinicRAG/internal/domain/knowledgeModel"
)

// span is a trimmed fragment position in runes, [start, end).
type span struct {
	start int
	end   int
}

// Chunk splits text into overlapping fragments of at most windowSize runes. A window that does not
// reach the end of the text is cut after the last sentence terminator or newline found past its
// midpoint; the next window starts overlap runes before that cut. Fragments are trimmed and empty
// ones dropped. The result is deterministic for the same input.
func Chunk(text string, windowSize int, overlap int) ([]string, error) {
	runes := []rune(text)
	spans, err := chunkSpans(runes, windowSize, overlap)
	if err != nil {
		return nil, err
	}
	chunks := make([]string, 0, len(spans))
	for _, s := range spans {
		chunks = append(chunks, string(runes[s.start:s.end]))
	}
	return chunks, nil
}

func Validate(windowSize int, overlap int) error {
	if windowSize <= 0 {
		return &knowledgeModel.ConfigurationError{Field: "windowSize", Reason: "must be positive, got " + strconv.Itoa(windowSize)}
	}
	if overlap < 0 || overlap >= windowSize {
		return &knowledgeModel.ConfigurationError{
			Field:  "overlap",
			Reason: "must be in [0, " + strconv.Itoa(windowSize) + "), got " + strconv.Itoa(overlap),
		}
	}
	return nil
}

func chunkSpans(runes []rune, windowSize int, overlap int) ([]span, error) {
	if err := Validate(windowSize, overlap); err != nil {
		return nil, err
	}

	var spans []span
	n := len(runes)
	start := 0
	for start < n {
		if unicode.IsSpace(runes[start]) {
			start++
			continue
		}
		end := start + windowSize
		if end >= n {
			spans = appendTrimmed(spans, runes, start, n)
			break
		}

		cut := end
		mid := start + windowSize/2
		for i := end - 1; i >= mid; i-- {
			if isBoundary(runes[i]) {
				cut = i + 1
				break
			}
		}
		spans = appendTrimmed(spans, runes, start, cut)

		next := cut - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return spans, nil
}

func appendTrimmed(spans []span, runes []rune, start int, end int) []span {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	if start == end {
		return spans
	}
	return append(spans, span{start: start, end: end})
}

func isBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '\n':
		return true
	}
	return false
}
