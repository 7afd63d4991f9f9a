package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/knowledge"
	"github.com/healthbot/backend/internal/metrics"
	"github.com/healthbot/backend/internal/scan"
	"github.com/healthbot/backend/pkg/logger"
)

var (
	ErrSessionClosed  = errors.New("chat: session closed")
	ErrScanInProgress = errors.New("chat: a scan is already in progress")
	ErrEmptyMessage   = errors.New("chat: message has no text and no image")
	ErrEmptyImage     = errors.New("chat: image is empty")
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

type State string

const (
	StateIdle      State = "idle"
	StateComposing State = "composing"
	StateScanning  State = "scanning"
	StateClosed    State = "closed"
)

type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text,omitempty"`
	ImageRef  string    `json:"image_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is one open chat. All fields behind mu; the classifier is called with mu released so
// that readers can still list messages while a scan is in flight.
type Session struct {
	id         string
	kb         *knowledge.KnowledgeBase
	classifier scan.Classifier
	now        func() time.Time

	mu         sync.Mutex
	state      State
	messages   []Message
	image      *scan.Image
	imageRef   string
	lastActive time.Time
}

func NewSession(kb *knowledge.KnowledgeBase, classifier scan.Classifier) *Session {
	return newSession(uuid.New().String(), kb, classifier, time.Now)
}

func newSession(id string, kb *knowledge.KnowledgeBase, classifier scan.Classifier, now func() time.Time) *Session {
	return &Session{
		id:         id,
		kb:         kb,
		classifier: classifier,
		now:        now,
		state:      StateIdle,
		lastActive: now(),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Messages returns a copy of the transcript in send order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// AttachImage stages an image for the next Send. A second call replaces the staged image.
func (s *Session) AttachImage(img scan.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", ErrEmptyImage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return "", ErrSessionClosed
	case StateScanning:
		return "", ErrScanInProgress
	}

	s.image = &img
	s.imageRef = uuid.New().String()
	s.state = StateComposing
	s.lastActive = s.now()
	return s.imageRef, nil
}

// Send posts a user message and returns the messages it appended. With an image attached the
// bot reply comes from the classifier; gateway failures become an apology message, never an error.
func (s *Session) Send(ctx context.Context, text string) ([]Message, error) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case StateScanning:
		s.mu.Unlock()
		return nil, ErrScanInProgress
	}

	if s.image == nil {
		defer s.mu.Unlock()
		return s.answerText(text)
	}

	img := *s.image
	user := s.appendLocked(SenderUser, text, s.imageRef)
	s.state = StateScanning
	s.mu.Unlock()

	reply := scan.ApologyMessage
	result, err := s.classifier.Classify(ctx, img)
	if err == nil {
		reply = result.Message()
	} else {
		logger.Warn("Scan failed, replying with apology", zap.String("session_id", s.id), zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		logger.Debug("Dropping scan result for closed session", zap.String("session_id", s.id))
		return nil, ErrSessionClosed
	}

	bot := s.appendLocked(SenderBot, reply, "")
	s.image = nil
	s.imageRef = ""
	s.state = StateIdle
	return []Message{user, bot}, nil
}

func (s *Session) answerText(text string) ([]Message, error) {
	if text == "" {
		return nil, ErrEmptyMessage
	}

	answer, ok := s.kb.Lookup(text)
	if ok {
		metrics.ChatLookups.WithLabelValues("matched").Inc()
	} else {
		answer = knowledge.FallbackAnswer
		metrics.ChatLookups.WithLabelValues("fallback").Inc()
	}

	user := s.appendLocked(SenderUser, text, "")
	bot := s.appendLocked(SenderBot, answer, "")
	s.state = StateIdle
	return []Message{user, bot}, nil
}

func (s *Session) appendLocked(sender Sender, text, imageRef string) Message {
	now := s.now()
	msg := Message{
		ID:        uuid.New().String(),
		Sender:    sender,
		Text:      text,
		ImageRef:  imageRef,
		CreatedAt: now,
	}
	s.messages = append(s.messages, msg)
	s.lastActive = now
	return msg
}

// Close discards the transcript. A scan still in flight finishes but its result is dropped.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateClosed
	s.messages = nil
	s.image = nil
	s.imageRef = ""
}
