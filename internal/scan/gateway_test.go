package scan

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResultMessage(t *testing.T) {
	tests := []struct {
		conf float64
		want string
	}{
		{0.873, "87.30"},
		{0.87125, "87.13"},
		{0.00125, "0.13"},
		{1, "100.00"},
		{0, "0.00"},
	}

	for _, tt := range tests {
		r := Result{Label: "Eczema", Confidence: tt.conf * 100}
		want := "Scan complete. Prediction: Eczema with " + tt.want + "% confidence."
		if got := r.Message(); got != want {
			t.Errorf("conf %v: got %q, want %q", tt.conf, got, want)
		}
	}
}

func TestClassifySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file field: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "png-bytes" || header.Filename != "rash.png" {
			t.Errorf("unexpected upload %q (%s)", data, header.Filename)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"label":"Eczema","conf":0.873}]}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, 0)
	res, err := g.Classify(context.Background(), Image{Filename: "rash.png", ContentType: "image/png", Data: []byte("png-bytes")})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got := res.Message(); got != "Scan complete. Prediction: Eczema with 87.30% confidence." {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestClassifyFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, ErrBadStatus},
		{"malformed json", http.StatusOK, `not json`, ErrMalformed},
		{"empty data", http.StatusOK, `{"data":[]}`, ErrNoPrediction},
		{"missing conf", http.StatusOK, `{"data":[{"label":"Acne"}]}`, ErrMalformed},
		{"conf out of range", http.StatusOK, `{"data":[{"label":"Acne","conf":1.5}]}`, ErrBadConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			g := NewHTTPGateway(srv.URL, 0)
			_, err := g.Classify(context.Background(), Image{Filename: "x.jpg", Data: []byte{1}})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestClassifyDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, 0)
	if _, err := g.Classify(context.Background(), Image{Data: []byte{1}}); err == nil {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one request, got %d", calls)
	}
}

func TestClassifyTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	g := NewHTTPGateway(srv.URL, 50*time.Millisecond)
	if _, err := g.Classify(context.Background(), Image{Data: []byte{1}}); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestClassifyUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := NewHTTPGateway(url, time.Second)
	if _, err := g.Classify(context.Background(), Image{Data: []byte{1}}); err == nil {
		t.Fatal("expected transport error")
	}
}
