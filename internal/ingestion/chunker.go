package ingestion

import (
	"strings"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/healthbot/backend/pkg/logger"
)

// Chunker packs whole sentences into chunks of at most size bytes. Consecutive chunks share
// trailing sentences worth up to overlap bytes.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var current []string

	for _, sentence := range c.sentences(text) {
		if len(current) > 0 && joinedLen(current)+1+len(sentence) > c.size {
			chunks = append(chunks, strings.Join(current, " "))
			current = c.tail(current)
			if len(current) > 0 && joinedLen(current)+1+len(sentence) > c.size {
				current = nil
			}
		}
		current = append(current, sentence)
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// sentences segments text with prose and hard-splits anything longer than a chunk.
func (c *Chunker) sentences(text string) []string {
	var raw []string

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		logger.Warn("Sentence segmentation failed, splitting on lines", zap.Error(err))
		raw = strings.Split(text, "\n")
	} else {
		for _, s := range doc.Sentences() {
			raw = append(raw, s.Text)
		}
	}

	var out []string
	for _, s := range raw {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		if len(s) <= c.size {
			out = append(out, s)
			continue
		}
		out = append(out, c.window(s)...)
	}
	return out
}

// window cuts an over-long sentence into size-byte pieces overlapping by overlap bytes,
// preferring to break on a space.
func (c *Chunker) window(s string) []string {
	var pieces []string
	start := 0
	for start < len(s) {
		end := start + c.size
		if end >= len(s) {
			pieces = append(pieces, strings.TrimSpace(s[start:]))
			break
		}
		if cut := strings.LastIndexByte(s[start:end], ' '); cut > c.size/2 {
			end = start + cut
		}
		if b := runeBoundary(s, end); b > start {
			end = b
		}
		pieces = append(pieces, strings.TrimSpace(s[start:end]))

		next := runeBoundary(s, end-c.overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return pieces
}

func (c *Chunker) tail(sentences []string) []string {
	n := 0
	i := len(sentences)
	for i > 0 {
		add := len(sentences[i-1])
		if n > 0 {
			add++
		}
		if n+add > c.overlap {
			break
		}
		n += add
		i--
	}
	out := make([]string, len(sentences)-i)
	copy(out, sentences[i:])
	return out
}

func runeBoundary(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

func joinedLen(parts []string) int {
	if len(parts) == 0 {
		return 0
	}
	n := len(parts) - 1
	for _, p := range parts {
		n += len(p)
	}
	return n
}
