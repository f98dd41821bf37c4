package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/edgewallet/internal/logging"
)

func newCache(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})
	return cache
}

func setupTestApp(t *testing.T) (*fiber.App, *int) {
	t.Helper()
	calls := new(int)
	app := fiber.New()
	app.Use(Idempotency(newCache(t), time.Minute, logging.Discard()))
	app.Post("/edges/:edgeId/transfers", func(c *fiber.Ctx) error {
		*calls++
		if c.Params("edgeId") == "13" {
			return fiber.NewError(fiber.StatusBadGateway, "ledger down")
		}
		if c.Params("edgeId") == "99" {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ledger_tx_id": "abc"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": *calls})
	})
	return app, calls
}

func post(t *testing.T, app *fiber.App, path, key, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(payload)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, _ := setupTestApp(t)

	if status, _ := post(t, app, "/edges/1/transfers", "", "{}"); status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls := setupTestApp(t)

	status, first := post(t, app, "/edges/1/transfers", "abc123", "{}")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	// The replay must not invoke the handler again.
	status, second := post(t, app, "/edges/1/transfers", "abc123", "{}")
	if status != fiber.StatusCreated || second != first {
		t.Fatalf("expected cached %d %s got %d %s", fiber.StatusCreated, first, status, second)
	}
	if *calls != 1 {
		t.Fatalf("expected one handler call, got %d", *calls)
	}
}

func TestIdempotencyKeyIsScopedToPath(t *testing.T) {
	app, calls := setupTestApp(t)

	post(t, app, "/edges/1/transfers", "shared", "{}")
	post(t, app, "/edges/2/transfers", "shared", "{}")
	if *calls != 2 {
		t.Fatalf("expected both paths to run, got %d calls", *calls)
	}
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	app, _ := setupTestApp(t)

	post(t, app, "/edges/1/transfers", "k1", `{"a":1}`)
	if status, _ := post(t, app, "/edges/1/transfers", "k1", `{"a":2}`); status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", status)
	}
}

func TestIdempotencyReleasesKeyOnHandlerError(t *testing.T) {
	app, calls := setupTestApp(t)

	if status, _ := post(t, app, "/edges/13/transfers", "retry", "{}"); status != fiber.StatusBadGateway {
		t.Fatalf("expected 502, got %d", status)
	}
	post(t, app, "/edges/13/transfers", "retry", "{}")
	if *calls != 2 {
		t.Fatalf("expected the retry to reach the handler, got %d calls", *calls)
	}
}

func TestIdempotencyKeepsWrittenFailureResponse(t *testing.T) {
	app, calls := setupTestApp(t)

	_, first := post(t, app, "/edges/99/transfers", "partial", "{}")
	status, second := post(t, app, "/edges/99/transfers", "partial", "{}")
	if status != fiber.StatusInternalServerError || second != first || *calls != 1 {
		t.Fatalf("expected replayed 500 without a second call, got %d %s calls=%d", status, second, *calls)
	}
}
