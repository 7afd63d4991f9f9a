package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/healthbot/backend/internal/knowledge"
	"github.com/healthbot/backend/internal/scan"
)

type fakeClassifier struct {
	result *scan.Result
	err    error

	// when set, Classify blocks until release is closed
	started chan struct{}
	release chan struct{}
}

func (f *fakeClassifier) Classify(ctx context.Context, img scan.Image) (*scan.Result, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	return f.result, f.err
}

func testKB(t *testing.T) *knowledge.KnowledgeBase {
	t.Helper()
	kb, err := knowledge.New([]knowledge.Entry{
		{Question: "what is a normal heart rate", Answer: "60 to 100 bpm."},
		{Question: "how can i sleep better", Answer: "Keep a schedule."},
	})
	if err != nil {
		t.Fatalf("knowledge.New: %v", err)
	}
	return kb
}

func testImage() scan.Image {
	return scan.Image{Filename: "rash.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}}
}

func TestSendTextAnswersFromKnowledgeBase(t *testing.T) {
	s := NewSession(testKB(t), &fakeClassifier{})

	msgs, err := s.Send(context.Background(), "What Is A Normal Heart Rate")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Sender != SenderUser || msgs[1].Sender != SenderBot {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if msgs[1].Text != "60 to 100 bpm." {
		t.Errorf("unexpected answer %q", msgs[1].Text)
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle, got %s", s.State())
	}
}

func TestSendUnknownTextGetsFallback(t *testing.T) {
	s := NewSession(testKB(t), &fakeClassifier{})

	msgs, err := s.Send(context.Background(), "tell me a joke")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msgs[1].Text != knowledge.FallbackAnswer {
		t.Errorf("expected fallback, got %q", msgs[1].Text)
	}
}

func TestMessagesKeepSendOrder(t *testing.T) {
	s := NewSession(testKB(t), &fakeClassifier{})

	if _, err := s.Send(context.Background(), "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Send(context.Background(), "B"); err != nil {
		t.Fatal(err)
	}

	var userTexts []string
	for _, m := range s.Messages() {
		if m.Sender == SenderUser {
			userTexts = append(userTexts, m.Text)
		}
	}
	if len(userTexts) != 2 || userTexts[0] != "A" || userTexts[1] != "B" {
		t.Fatalf("expected A before B, got %v", userTexts)
	}
}

func TestSendBlankTextRejected(t *testing.T) {
	s := NewSession(testKB(t), &fakeClassifier{})

	if _, err := s.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if len(s.Messages()) != 0 {
		t.Error("blank send must not append messages")
	}
}

func TestScanSuccess(t *testing.T) {
	s := NewSession(testKB(t), &fakeClassifier{result: &scan.Result{Label: "Eczema", Confidence: 87.3}})

	ref, err := s.AttachImage(testImage())
	if err != nil {
		t.Fatalf("AttachImage: %v", err)
	}
	if s.State() != StateComposing {
		t.Fatalf("expected composing, got %s", s.State())
	}

	msgs, err := s.Send(context.Background(), "")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msgs[0].ImageRef != ref {
		t.Errorf("user message should reference the image")
	}
	if want := "Scan complete. Prediction: Eczema with 87.30% confidence."; msgs[1].Text != want {
		t.Errorf("got %q, want %q", msgs[1].Text, want)
	}
	if s.State() != StateIdle {
		t.Errorf("expected idle, got %s", s.State())
	}

	// image is cleared, so the next send is a text lookup
	msgs, _ = s.Send(context.Background(), "how can i sleep better")
	if msgs[1].Text != "Keep a schedule." {
		t.Errorf("expected text answer after scan, got %q", msgs[1].Text)
	}
}

func TestScanFailureRepliesWithApology(t *testing.T) {
	s := NewSession(testKB(t), &fakeClassifier{err: errors.New("connection refused")})

	if _, err := s.AttachImage(testImage()); err != nil {
		t.Fatal(err)
	}
	msgs, err := s.Send(context.Background(), "what is this?")
	if err != nil {
		t.Fatalf("gateway errors must not surface, got %v", err)
	}
	if msgs[1].Text != scan.ApologyMessage {
		t.Errorf("expected apology, got %q", msgs[1].Text)
	}
	if s.State() != StateIdle {
		t.Errorf("busy flag must clear after failure, state %s", s.State())
	}
}

func TestSendWhileScanningIsRejected(t *testing.T) {
	fc := &fakeClassifier{
		result:  &scan.Result{Label: "Acne", Confidence: 50},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := NewSession(testKB(t), fc)
	if _, err := s.AttachImage(testImage()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := s.Send(context.Background(), ""); err != nil {
			t.Errorf("scan send: %v", err)
		}
	}()

	<-fc.started
	if s.State() != StateScanning {
		t.Fatalf("expected scanning, got %s", s.State())
	}
	if _, err := s.Send(context.Background(), "hello"); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("expected ErrScanInProgress, got %v", err)
	}
	if _, err := s.AttachImage(testImage()); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("expected ErrScanInProgress on attach, got %v", err)
	}
	// transcript stays readable during the scan
	if n := len(s.Messages()); n != 1 {
		t.Errorf("expected only the user message during scan, got %d", n)
	}

	close(fc.release)
	wg.Wait()

	if s.State() != StateIdle {
		t.Errorf("expected idle after scan, got %s", s.State())
	}
}

func TestCloseDropsLateScanResult(t *testing.T) {
	fc := &fakeClassifier{
		result:  &scan.Result{Label: "Acne", Confidence: 50},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := NewSession(testKB(t), fc)
	if _, err := s.AttachImage(testImage()); err != nil {
		t.Fatal(err)
	}

	errc := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "")
		errc <- err
	}()

	<-fc.started
	s.Close()
	close(fc.release)

	if err := <-errc; !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if len(s.Messages()) != 0 {
		t.Error("closed session must not keep messages")
	}
	if _, err := s.Send(context.Background(), "hi"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestAttachEmptyImageRejected(t *testing.T) {
	s := NewSession(testKB(t), &fakeClassifier{})
	if _, err := s.AttachImage(scan.Image{}); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(testKB(t), &fakeClassifier{}, time.Minute)

	s := m.Open()
	got, err := m.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get: %v", err)
	}
	if m.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", m.Count())
	}

	if err := m.Close(s.ID()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := m.Close(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second close: expected ErrSessionNotFound, got %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("expected closed, got %s", s.State())
	}
}

func TestManagerReapIdle(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	m := NewManager(testKB(t), &fakeClassifier{}, 10*time.Minute)
	m.now = func() time.Time { return clock }

	stale := m.Open()
	clock = clock.Add(8 * time.Minute)
	fresh := m.Open()

	if n := m.ReapIdle(clock.Add(5 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 reaped, got %d", n)
	}
	if _, err := m.Get(stale.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Error("stale session should be gone")
	}
	if _, err := m.Get(fresh.ID()); err != nil {
		t.Error("fresh session should survive")
	}
}

func TestManagerStartRejectsBadSchedule(t *testing.T) {
	m := NewManager(testKB(t), &fakeClassifier{}, time.Minute)
	if err := m.Start("not a schedule"); err == nil {
		t.Fatal("expected schedule error")
	}
	m.Stop()
}
