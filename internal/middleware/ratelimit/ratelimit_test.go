package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func TestAllowRefillsOverTime(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 2})
	defer rl.Stop()

	clock := time.Unix(0, 0)
	rl.now = func() time.Time { return clock }

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.allow("b") {
		t.Fatal("buckets must be per key")
	}

	clock = clock.Add(30 * time.Second)
	if !rl.allow("a") {
		t.Fatal("one token should have refilled")
	}
	if rl.allow("a") {
		t.Fatal("only one token should have refilled")
	}
}

func TestRefillIsCappedAtBurst(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 2})
	defer rl.Stop()

	clock := time.Unix(0, 0)
	rl.now = func() time.Time { return clock }

	rl.allow("a")
	clock = clock.Add(time.Hour)

	for i := 0; i < 2; i++ {
		if !rl.allow("a") {
			t.Fatalf("request %d after idle hour should pass", i)
		}
	}
	if rl.allow("a") {
		t.Fatal("an idle bucket must not refill past its burst size")
	}
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	rl := New(Config{})
	defer rl.Stop()

	clock := time.Unix(0, 0)
	rl.now = func() time.Time { return clock }
	rl.allow("a")

	clock = clock.Add(11 * time.Minute)
	rl.sweep(10 * time.Minute)
	if len(rl.buckets) != 0 {
		t.Fatalf("expected idle bucket removed, have %d", len(rl.buckets))
	}
}

func TestMiddlewareReturns429(t *testing.T) {
	rl := New(Config{
		MaxRequestsPerMinute: 1,
		KeyFunc:              func(c *fiber.Ctx) string { return "same" },
	})
	defer rl.Stop()

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for i, want := range []int{fiber.StatusNoContent, fiber.StatusTooManyRequests} {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != want {
			t.Errorf("request %d: expected %d, got %d", i, want, resp.StatusCode)
		}
	}
}
