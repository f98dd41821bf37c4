package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/edgewallet/internal/auth"
	"github.com/congo-pay/edgewallet/internal/logging"
)

func TestRateLimitRejectsAfterLimit(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimit(newCache(t), 2, logging.Discard()))
	app.Post("/x", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	var last int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/x", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		last = resp.StatusCode
		if i < 2 && last != fiber.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, last)
		}
	}
	if last != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last)
	}
}

func TestRateLimitWithoutCache(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimit(nil, 1, logging.Discard()))
	app.Post("/x", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/x", nil))
		if err != nil || resp.StatusCode != fiber.StatusNoContent {
			t.Fatalf("expected pass-through, got %v %v", resp, err)
		}
	}
}

func TestOperatorAuth(t *testing.T) {
	secret := []byte("topsecret")
	app := fiber.New()
	app.Use(OperatorAuth(secret))
	app.Post("/x", func(c *fiber.Ctx) error { return c.SendString(Operator(c)) })

	token, err := auth.IssueOperatorToken(secret, "ops-bot", time.Minute, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	expired, err := auth.IssueOperatorToken(secret, "ops-bot", time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + token, fiber.StatusOK},
		{"missing", "", fiber.StatusUnauthorized},
		{"expired", "Bearer " + expired, fiber.StatusUnauthorized},
		{"garbage", "Bearer nope", fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodPost, "/x", nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d got %d", tc.want, resp.StatusCode)
			}
		})
	}
}

func TestOperatorAuthDisabledWithoutSecret(t *testing.T) {
	app := fiber.New()
	app.Use(OperatorAuth(nil))
	app.Post("/x", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/x", nil))
	if err != nil || resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected pass-through, got %v %v", resp, err)
	}
}

func TestAuditLogsRouteAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New()
	app.Use(RequestID(), Audit(logger))
	app.Get("/edges/:edgeId", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "edge_id 4 not found")
	})

	req := httptest.NewRequest(fiber.MethodGet, "/edges/4", nil)
	req.Header.Set(requestIDHeader, "req-1")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.Header.Get(requestIDHeader) != "req-1" {
		t.Fatalf("request id not echoed: %q", resp.Header.Get(requestIDHeader))
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["level"] != "WARN" || entry["route"] != "/edges/:edgeId" || entry["edge_id"] != "4" ||
		entry["request_id"] != "req-1" || entry["status"] != float64(fiber.StatusNotFound) {
		t.Fatalf("unexpected audit entry %v", entry)
	}
}
