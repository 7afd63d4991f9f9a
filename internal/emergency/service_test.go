package emergency

import (
	"context"
	"errors"
	"testing"

	"github.com/healthbot/backend/internal/storage/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sqlite.NewClient(":memory:")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(db)
}

func TestSubmitStoresReport(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	r, err := s.Submit(ctx, "u1", SubmitRequest{
		Type:        " Mental-Health ",
		Location:    "12 Elm St",
		Description: "Friend is in distress",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.Type != "mental-health" || r.Status != StatusSubmitted {
		t.Errorf("unexpected report %+v", r)
	}

	list, err := s.List(ctx, "u1")
	if err != nil || len(list) != 1 || list[0].ID != r.ID {
		t.Fatalf("List: %+v %v", list, err)
	}
}

func TestSubmitValidation(t *testing.T) {
	s := newTestService(t)

	tests := []struct {
		name string
		req  SubmitRequest
	}{
		{"missing type", SubmitRequest{Location: "x", Description: "y"}},
		{"unknown type", SubmitRequest{Type: "flood", Location: "x", Description: "y"}},
		{"missing location", SubmitRequest{Type: "fire", Location: " ", Description: "y"}},
		{"missing description", SubmitRequest{Type: "fire", Location: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Submit(context.Background(), "u1", tt.req); !errors.Is(err, ErrInvalidReport) {
				t.Fatalf("expected ErrInvalidReport, got %v", err)
			}
		})
	}
}

func TestContacts(t *testing.T) {
	c := Contacts()
	if len(c) != 4 || c[2].Number != "988" {
		t.Fatalf("unexpected contacts %+v", c)
	}
	c[0].Number = "000"
	if Contacts()[0].Number != "911" {
		t.Error("Contacts must return a copy")
	}
}
