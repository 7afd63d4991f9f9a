package security

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestConnectSrcAddsWebsocketOrigins(t *testing.T) {
	got := connectSrc([]string{"https://app.healthbot.example/", "http://localhost:5173", "*", ""})
	want := "'self' https://app.healthbot.example wss://app.healthbot.example http://localhost:5173 ws://localhost:5173"
	if got != want {
		t.Fatalf("connectSrc:\n got %q\nwant %q", got, want)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	for _, dev := range []bool{true, false} {
		app := fiber.New()
		app.Use(HeadersMiddleware(HeadersConfig{AllowedOrigins: []string{"http://localhost:5173"}, IsDevelopment: dev}))
		app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}

		if resp.Header.Get("X-Frame-Options") != "DENY" {
			t.Error("missing X-Frame-Options")
		}
		if !strings.Contains(resp.Header.Get("Content-Security-Policy"), "ws://localhost:5173") {
			t.Errorf("CSP missing websocket origin: %q", resp.Header.Get("Content-Security-Policy"))
		}
		if hsts := resp.Header.Get("Strict-Transport-Security"); (hsts != "") == dev {
			t.Errorf("development=%v: unexpected HSTS header %q", dev, hsts)
		}
	}
}
