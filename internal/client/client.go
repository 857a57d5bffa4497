package client

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sustena-platforms/julctl/internal/metrics"
	"github.com/sustena-platforms/julctl/internal/models"
	"github.com/sustena-platforms/julctl/internal/otel"
)

const (
	mempoolPathSnake = "/get_mempool"
	mempoolPathCamel = "/getMempool"
)

// Options configures a LedgerClient.
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	MempoolPath string
	Metrics     *metrics.Metrics
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// LedgerClient is a typed adapter over the remote ledger API. It performs no
// retries and touches no local state beyond remembering which mempool path works.
type LedgerClient struct {
	http    *resty.Client
	metrics *metrics.Metrics

	mu          sync.Mutex
	mempoolPath string
}

// New creates a LedgerClient for the ledger API rooted at opts.BaseURL.
func New(opts Options) *LedgerClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MempoolPath == "" {
		opts.MempoolPath = mempoolPathSnake
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	if opts.Transport != nil {
		rc.SetTransport(opts.Transport)
	}
	return &LedgerClient{
		http:        rc,
		metrics:     opts.Metrics,
		mempoolPath: opts.MempoolPath,
	}
}

type request struct {
	op         string
	method     string
	path       string
	pathParams map[string]string
	body       any
}

// do executes one ledger call inside a span and records its latency.
func (c *LedgerClient) do(ctx context.Context, r request) (*resty.Response, error) {
	ctx, span := otel.Tracer().Start(ctx, "ledger."+r.op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", r.method), attribute.String("ledger.path", r.path))

	start := time.Now()
	resp, err := c.roundTrip(ctx, r)
	c.metrics.ObserveLedger(r.op, start, errKind(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

func (c *LedgerClient) roundTrip(ctx context.Context, r request) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if len(r.pathParams) > 0 {
		req.SetPathParams(r.pathParams)
	}
	if r.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(r.body)
	}
	resp, err := req.Execute(r.method, r.path)
	if err != nil {
		return nil, transportError(r.op, err)
	}
	if !resp.IsSuccess() {
		return nil, statusError(r.op, resp.StatusCode(), resp.Body())
	}
	return resp, nil
}

func (c *LedgerClient) currentMempoolPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mempoolPath
}

func (c *LedgerClient) setMempoolPath(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mempoolPath = p
}

func alternateMempoolPath(p string) string {
	if p == mempoolPathCamel {
		return mempoolPathSnake
	}
	return mempoolPathCamel
}

func errKind(err error) string {
	switch {
	case err == nil:
		return ""
	case models.IsRejection(err):
		return "rejection"
	case errors.Is(err, models.ErrMalformedResponse):
		return "malformed"
	default:
		return "network"
	}
}
