package knowledge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

const FallbackAnswer = "I'm sorry, I don't have information on that specific query. Please consult a healthcare professional for personalized advice."

var (
	ErrEmptyQuestion  = errors.New("knowledge: empty question")
	ErrEmptyAnswer    = errors.New("knowledge: empty answer")
	ErrDuplicateEntry = errors.New("knowledge: duplicate question")
)

type Entry struct {
	Topic    string `yaml:"-"`
	Question string `yaml:"q"`
	Answer   string `yaml:"a"`
}

// KnowledgeBase maps normalized questions to canned answers. It is never mutated after New
// returns, so it can be shared between sessions without locking.
type KnowledgeBase struct {
	answers map[string]string
	topics  map[string][]string
}

// Normalize is applied to stored questions and lookup input alike.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func New(entries []Entry) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{
		answers: make(map[string]string, len(entries)),
		topics:  make(map[string][]string),
	}

	for i, e := range entries {
		key := Normalize(e.Question)
		if key == "" {
			return nil, fmt.Errorf("entry %d: %w", i, ErrEmptyQuestion)
		}
		if strings.TrimSpace(e.Answer) == "" {
			return nil, fmt.Errorf("entry %d (%q): %w", i, key, ErrEmptyAnswer)
		}
		if _, exists := kb.answers[key]; exists {
			return nil, fmt.Errorf("entry %d (%q): %w", i, key, ErrDuplicateEntry)
		}

		kb.answers[key] = e.Answer
		topic := e.Topic
		if topic == "" {
			topic = "general"
		}
		kb.topics[topic] = append(kb.topics[topic], key)
	}

	return kb, nil
}

func (kb *KnowledgeBase) Lookup(question string) (string, bool) {
	answer, ok := kb.answers[Normalize(question)]
	return answer, ok
}

// Answer never fails: unknown questions get FallbackAnswer.
func (kb *KnowledgeBase) Answer(question string) string {
	if answer, ok := kb.Lookup(question); ok {
		return answer
	}
	return FallbackAnswer
}

func (kb *KnowledgeBase) Len() int {
	return len(kb.answers)
}

func (kb *KnowledgeBase) Topics() map[string]int {
	counts := make(map[string]int, len(kb.topics))
	for topic, keys := range kb.topics {
		counts[topic] = len(keys)
	}
	return counts
}

// Questions returns the normalized questions of a topic in sorted order.
func (kb *KnowledgeBase) Questions(topic string) []string {
	keys := kb.topics[topic]
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)
	return out
}
