package chat

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/healthbot/backend/internal/knowledge"
	"github.com/healthbot/backend/internal/metrics"
	"github.com/healthbot/backend/internal/scan"
	"github.com/healthbot/backend/pkg/logger"
)

var ErrSessionNotFound = errors.New("chat: session not found")

// Manager keeps open sessions in memory. Transcripts are never persisted.
type Manager struct {
	kb          *knowledge.KnowledgeBase
	classifier  scan.Classifier
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	cron *cron.Cron
}

func NewManager(kb *knowledge.KnowledgeBase, classifier scan.Classifier, idleTimeout time.Duration) *Manager {
	return &Manager{
		kb:          kb,
		classifier:  classifier,
		idleTimeout: idleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

func (m *Manager) Open() *Session {
	s := newSession(uuid.New().String(), m.kb, m.classifier, m.now)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	metrics.ChatSessionsOpen.Inc()
	logger.Debug("Chat session opened", zap.String("session_id", s.ID()))
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	s.Close()
	metrics.ChatSessionsOpen.Dec()
	logger.Debug("Chat session closed", zap.String("session_id", id))
	return nil
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ReapIdle closes sessions inactive since before now-idleTimeout. Sessions waiting on a scan
// are left alone.
func (m *Manager) ReapIdle(now time.Time) int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-m.idleTimeout)

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.State() != StateScanning && s.LastActive().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	reaped := 0
	for _, id := range stale {
		if err := m.Close(id); err == nil {
			reaped++
		}
	}

	if reaped > 0 {
		metrics.ChatSessionsReaped.Add(float64(reaped))
		logger.Info("Reaped idle chat sessions", zap.Int("count", reaped))
	}
	return reaped
}

// Start schedules ReapIdle with a cron spec such as "@every 5m".
func (m *Manager) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { m.ReapIdle(m.now()) }); err != nil {
		return fmt.Errorf("invalid reap schedule %q: %w", schedule, err)
	}
	c.Start()
	m.cron = c

	logger.Info("Chat session reaper started",
		zap.String("schedule", schedule),
		zap.Duration("idle_timeout", m.idleTimeout),
	)
	return nil
}

func (m *Manager) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
	logger.Info("Chat session reaper stopped")
}
