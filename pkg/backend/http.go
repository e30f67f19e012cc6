package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/helmcode/pairprog-ai/pkg/metrics"
	"go.uber.org/zap"
)

// RequestIDHeader carries a per-call correlation id.
const RequestIDHeader = "X-Request-ID"

const maxResponseBytes = 10 << 20

type httpCore struct {
	baseURL  string
	client   *http.Client
	logger   *zap.Logger
	recorder *metrics.Recorder
}

type rawResponse struct {
	requestID string
	body      []byte
	started   time.Time
}

func newHTTPCore(opts Options) *httpCore {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &httpCore{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		client:   client,
		logger:   logger,
		recorder: opts.Recorder,
	}
}

// post sends body to path and returns the 2xx body. Non-2xx answers become
// RejectedError, transport failures UnreachableError. Successful calls are
// recorded by the caller through finish once the body has been parsed.
func (c *httpCore) post(ctx context.Context, protocol Protocol, path string, body []byte) (*rawResponse, error) {
	endpoint := c.baseURL + path
	requestID := uuid.NewString()
	logger := c.logger.With(
		zap.String("protocol", string(protocol)),
		zap.String("url", endpoint),
		zap.String("request_id", requestID),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	logger.Debug("sending analysis request", zap.Int("bytes", len(body)))
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		err = &UnreachableError{URL: endpoint, Err: unwrapURLError(err)}
		c.observe(protocol, err, start)
		logger.Warn("backend unreachable", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		err = &UnreachableError{URL: endpoint, Err: fmt.Errorf("read response: %w", err)}
		c.observe(protocol, err, start)
		logger.Warn("backend response read failed", zap.Error(err))
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err = &RejectedError{
			StatusCode: resp.StatusCode,
			StatusText: statusText(resp),
			Body:       respBytes,
		}
		c.observe(protocol, err, start)
		logger.Warn("backend rejected request", zap.Int("status", resp.StatusCode))
		return nil, err
	}

	logger.Debug("backend answered",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(respBytes)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &rawResponse{requestID: requestID, body: respBytes, started: start}, nil
}

func (c *httpCore) finish(protocol Protocol, raw *rawResponse, err error) {
	c.observe(protocol, err, raw.started)
	if err != nil {
		c.logger.Warn("malformed backend response",
			zap.String("protocol", string(protocol)),
			zap.String("request_id", raw.requestID),
			zap.Error(err),
		)
	}
}

func (c *httpCore) observe(protocol Protocol, err error, start time.Time) {
	c.recorder.ObserveRequest(string(protocol), outcomeLabel(err), time.Since(start))
}

// statusText returns the reason phrase of resp, e.g. "Bad Request".
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// unwrapURLError drops the *url.Error envelope so the transport message reads
// like the underlying failure ("connection refused").
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}
