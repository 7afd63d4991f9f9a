package ingestion

import (
	"strings"
	"testing"
)

func TestChunkerShortTextIsOneChunk(t *testing.T) {
	c := NewChunker(1000, 200)
	got := c.Split("Hemoglobin is 13.5 g/dL. Glucose is 92 mg/dL.")
	if len(got) != 1 {
		t.Fatalf("expected one chunk, got %d: %q", len(got), got)
	}
}

func TestChunkerEmpty(t *testing.T) {
	if got := NewChunker(100, 20).Split("   \n "); got != nil {
		t.Fatalf("expected no chunks, got %q", got)
	}
}

func TestChunkerRespectsSizeAndOverlaps(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("The patient reports mild fatigue in the afternoons. ")
	}

	c := NewChunker(200, 60)
	chunks := c.Split(b.String())
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if len(chunk) > 200 {
			t.Errorf("chunk %d is %d bytes", i, len(chunk))
		}
		if !strings.HasSuffix(chunk, ".") {
			t.Errorf("chunk %d does not end on a sentence boundary: %q", i, chunk)
		}
	}

	// each chunk starts with the last sentence of the previous one
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		lastSentence := prev[strings.LastIndex(prev[:len(prev)-1], ".")+2:]
		if !strings.HasPrefix(chunks[i], lastSentence) {
			t.Errorf("chunk %d does not overlap the previous chunk", i)
		}
	}
}

func TestChunkerSplitsOverlongSentence(t *testing.T) {
	long := strings.Repeat("word ", 100) // 500 bytes, no sentence break
	chunks := NewChunker(120, 20).Split(long)
	if len(chunks) < 4 {
		t.Fatalf("expected the sentence to be windowed, got %d chunks", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 120 {
			t.Errorf("chunk %d is %d bytes", i, len(chunk))
		}
	}
}

func TestNewChunkerDefaults(t *testing.T) {
	c := NewChunker(0, -1)
	if c.size != 1000 || c.overlap != 200 {
		t.Fatalf("unexpected defaults size=%d overlap=%d", c.size, c.overlap)
	}
}
