package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/MKhiriev/go-firesync/internal/config"
	"github.com/MKhiriev/go-firesync/internal/logger"
	"github.com/MKhiriev/go-firesync/internal/utils"
)

const (
	traceIDHeader      = "X-Trace-ID"
	eventStreamMIME    = "text/event-stream"
	maxErrorBodyLength = 4 << 10
)

type postResult struct {
	Name string `json:"name"`
}

type httpTransport struct {
	// rest has the request timeout; streams stay open indefinitely.
	rest   *utils.HTTPClient
	stream *utils.HTTPClient

	limiter *rate.Limiter
	traceID *utils.UUIDGenerator

	logger *logger.Logger
}

// NewHTTPTransport constructs the resty-backed [Transport]. A positive
// cfg.RequestsPerSecond enables client-side rate limiting of REST calls and
// stream connects.
func NewHTTPTransport(cfg config.ClientAdapter, log *logger.Logger) Transport {
	rest := utils.NewHTTPClient()
	rest.SetTimeout(cfg.RequestTimeout)

	t := &httpTransport{
		rest:    rest,
		stream:  utils.NewHTTPClient(),
		traceID: utils.NewUUIDGenerator(),
		logger:  log,
	}
	if cfg.RequestsPerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	}
	return t
}

func (t *httpTransport) Get(ctx context.Context, q *Query) ([]byte, error) {
	resp, err := t.do(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func (t *httpTransport) Put(ctx context.Context, q *Query, body []byte) error {
	_, err := t.do(ctx, http.MethodPut, q, body)
	return err
}

func (t *httpTransport) Post(ctx context.Context, q *Query, body []byte) (string, error) {
	resp, err := t.do(ctx, http.MethodPost, q, body)
	if err != nil {
		return "", err
	}

	var result postResult
	if err = json.Unmarshal(resp.Body(), &result); err != nil {
		return "", fmt.Errorf("decode post response: %w", err)
	}
	return result.Name, nil
}

func (t *httpTransport) Patch(ctx context.Context, q *Query, body []byte) error {
	_, err := t.do(ctx, http.MethodPatch, q, body)
	return err
}

func (t *httpTransport) Delete(ctx context.Context, q *Query) error {
	_, err := t.do(ctx, http.MethodDelete, q, nil)
	return err
}

func (t *httpTransport) Stream(ctx context.Context, q *Query) (io.ReadCloser, error) {
	u, err := t.prepare(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.stream.R().
		SetContext(ctx).
		SetHeader("Accept", eventStreamMIME).
		SetHeader(traceIDHeader, t.traceIDFor(ctx)).
		SetDoNotParseResponse(true).
		Get(u)
	if err != nil {
		return nil, &RequestError{Method: http.MethodGet, URL: redactURL(u), Err: fmt.Errorf("stream request: %w", err)}
	}

	raw := resp.RawBody()
	if !resp.IsSuccess() {
		defer raw.Close()
		body, _ := io.ReadAll(io.LimitReader(raw, maxErrorBodyLength))
		return nil, &RequestError{
			Method:       http.MethodGet,
			URL:          redactURL(u),
			ResponseBody: string(body),
			StatusCode:   resp.StatusCode(),
			Err:          statusError(resp.StatusCode()),
		}
	}

	t.logger.Debug().
		Str("func", "httpTransport.Stream").
		Str("url", redactURL(u)).
		Msg("event stream opened")
	return raw, nil
}

// prepare builds the URL and waits for the rate limiter.
func (t *httpTransport) prepare(ctx context.Context, method string, q *Query, body []byte) (string, error) {
	u, err := q.BuildURL(ctx)
	if err != nil {
		return "", &RequestError{Method: method, URL: q.String(), RequestBody: string(body), Err: err}
	}

	if t.limiter != nil {
		if err = t.limiter.Wait(ctx); err != nil {
			return "", &RequestError{Method: method, URL: redactURL(u), RequestBody: string(body), Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}
	return u, nil
}

func (t *httpTransport) do(ctx context.Context, method string, q *Query, body []byte) (*resty.Response, error) {
	u, err := t.prepare(ctx, method, q, body)
	if err != nil {
		return nil, err
	}

	req := t.rest.R().
		SetContext(ctx).
		SetHeader(traceIDHeader, t.traceIDFor(ctx))
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, u)
	if err != nil {
		t.logger.Err(err).
			Str("func", "httpTransport.do").
			Str("method", method).
			Str("url", redactURL(u)).
			Msg("request failed")
		return nil, &RequestError{Method: method, URL: redactURL(u), RequestBody: string(body), Err: fmt.Errorf("%s request: %w", method, err)}
	}

	if err = mapHTTPError(method, u, body, resp); err != nil {
		t.logger.Warn().
			Str("func", "httpTransport.do").
			Str("method", method).
			Str("url", redactURL(u)).
			Int("status", resp.StatusCode()).
			Msg("request rejected")
		return nil, err
	}
	return resp, nil
}

// traceIDFor reuses the trace ID of ctx so one user action can be followed
// across requests.
func (t *httpTransport) traceIDFor(ctx context.Context) string {
	if traceID, ok := utils.TraceIDFromContext(ctx); ok {
		return traceID
	}
	return t.traceID.Generate()
}
