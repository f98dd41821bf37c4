package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/congo-pay/edgewallet/internal/metrics"
)

const (
	apiPrefix      = "/api/v1"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// BigchainClient talks to a BigchainDB node over its HTTP API.
type BigchainClient struct {
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
}

// BigchainOption customises a BigchainClient.
type BigchainOption func(*BigchainClient)

// WithTimeout bounds every HTTP round trip.
func WithTimeout(d time.Duration) BigchainOption {
	return func(c *BigchainClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit throttles outgoing requests. A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) BigchainOption {
	return func(c *BigchainClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger attaches a logger for request failures.
func WithLogger(logger *slog.Logger) BigchainOption {
	return func(c *BigchainClient) {
		c.logger = logger
	}
}

// NewBigchainClient builds a client for the node rooted at baseURL (e.g. http://localhost:9984).
func NewBigchainClient(baseURL string, opts ...BigchainOption) *BigchainClient {
	c := &BigchainClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListUnspentOutputs returns the unspent outputs owned by publicKey.
func (c *BigchainClient) ListUnspentOutputs(ctx context.Context, publicKey string) ([]OutputRef, error) {
	q := url.Values{"public_key": {publicKey}, "spent": {"false"}}
	var refs []OutputRef
	if err := c.do(ctx, "list_outputs", fiber.MethodGet, "/outputs?"+q.Encode(), nil, &refs); err != nil {
		return nil, fmt.Errorf("list outputs of %s: %w", publicKey, err)
	}
	return refs, nil
}

// GetTransaction fetches a committed transaction.
func (c *BigchainClient) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	var tx Transaction
	if err := c.do(ctx, "get_transaction", fiber.MethodGet, "/transactions/"+url.PathEscape(id), nil, &tx); err != nil {
		return Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return tx, nil
}

// PostTransactionCommit submits a signed transaction in commit mode.
func (c *BigchainClient) PostTransactionCommit(ctx context.Context, tx Transaction) (Transaction, error) {
	body, err := Serialize(tx)
	if err != nil {
		return Transaction{}, err
	}
	var committed Transaction
	if err := c.do(ctx, "post_transaction", fiber.MethodPost, "/transactions?mode=commit", body, &committed); err != nil {
		return Transaction{}, fmt.Errorf("%w: %s %s: %w", ErrSubmission, tx.Operation, tx.TxID(), err)
	}
	if committed.ID == nil {
		committed = tx
	}
	return committed, nil
}

// Ping checks that the node answers on the API root.
func (c *BigchainClient) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/", nil, nil)
}

func (c *BigchainClient) do(ctx context.Context, op, method, path string, body []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	agent := fiber.AcquireAgent()
	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + apiPrefix + path)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	agent.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		agent.ContentType(fiber.MIMEApplicationJSON)
		agent.Body(body)
	}
	agent.Timeout(c.timeout)
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	status, respBody, errs := agent.Bytes()
	metrics.ObserveLedgerRequest(op, status, time.Since(start))
	if len(errs) > 0 {
		err := errors.Join(errs...)
		if c.logger != nil {
			c.logger.Warn("ledger request failed", slog.String("operation", op), slog.Any("error", err))
		}
		return err
	}

	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= http.StatusMultipleChoices:
		msg := string(respBody)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		if c.logger != nil {
			c.logger.Warn("ledger rejected request", slog.String("operation", op), slog.Int("status", status), slog.String("body", msg))
		}
		return fmt.Errorf("ledger status %d: %s", status, msg)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
