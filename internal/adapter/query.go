package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/MKhiriev/go-firesync/internal/auth"
	"github.com/MKhiriev/go-firesync/internal/config"
)

const (
	paramAuth         = "auth"
	paramAccessToken  = "access_token"
	paramOrderBy      = "orderBy"
	paramStartAt      = "startAt"
	paramEndAt        = "endAt"
	paramEqualTo      = "equalTo"
	paramLimitToFirst = "limitToFirst"
	paramLimitToLast  = "limitToLast"
	paramShallow      = "shallow"
	paramPrint        = "print"
)

type queryParam struct {
	name  string
	value func() string
}

// Query is an immutable reference to a location of the remote tree plus the
// filter parameters of a request against it. Every builder method returns a
// new Query.
type Query struct {
	base          string
	segments      []string
	params        []queryParam
	tokens        auth.TokenSource
	asAccessToken bool
}

// NewQuery returns the root query of the tree served at baseURL. tokens may
// be nil for unauthenticated access.
func NewQuery(baseURL string, tokens auth.TokenSource) (*Query, error) {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	return &Query{base: base, tokens: tokens}, nil
}

// NewQueryFromConfig returns the root query described by the adapter
// configuration.
func NewQueryFromConfig(cfg config.ClientAdapter) (*Query, error) {
	var tokens auth.TokenSource
	if cfg.AuthToken != "" {
		tokens = auth.StaticToken(cfg.AuthToken)
	}

	q, err := NewQuery(cfg.BaseURL, tokens)
	if err != nil {
		return nil, err
	}
	q.asAccessToken = cfg.AsAccessToken
	return q, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

func (q *Query) clone() *Query {
	c := *q
	c.segments = slices.Clone(q.segments)
	c.params = slices.Clone(q.params)
	return &c
}

func (q *Query) withParam(name string, value func() string) *Query {
	c := q.clone()
	c.params = slices.DeleteFunc(c.params, func(p queryParam) bool { return p.name == name })
	c.params = append(c.params, queryParam{name: name, value: value})
	return c
}

// Child descends into path. Empty segments are ignored; filter parameters
// are not inherited by the child.
func (q *Query) Child(path string) *Query {
	c := q.clone()
	c.params = nil
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			c.segments = append(c.segments, seg)
		}
	}
	return c
}

// Path returns the location as "/a/b"; "/" for the root.
func (q *Query) Path() string {
	return "/" + strings.Join(q.segments, "/")
}

// Key returns the last path segment, "" for the root.
func (q *Query) Key() string {
	if len(q.segments) == 0 {
		return ""
	}
	return q.segments[len(q.segments)-1]
}

// WithTokenSource returns a copy authenticated by tokens.
func (q *Query) WithTokenSource(tokens auth.TokenSource) *Query {
	c := q.clone()
	c.tokens = tokens
	return c
}

// Tokens returns the token source of the query, nil when unauthenticated.
func (q *Query) Tokens() auth.TokenSource {
	return q.tokens
}

// AsAccessToken sends the token as access_token (OAuth) instead of auth.
func (q *Query) AsAccessToken() *Query {
	c := q.clone()
	c.asAccessToken = true
	return c
}

func (q *Query) OrderBy(property string) *Query {
	return q.withParam(paramOrderBy, quoted(property))
}

func (q *Query) OrderByKey() *Query {
	return q.OrderBy("$key")
}

func (q *Query) OrderByValue() *Query {
	return q.OrderBy("$value")
}

func (q *Query) OrderByPriority() *Query {
	return q.OrderBy("$priority")
}

func (q *Query) StartAt(value string) *Query {
	return q.withParam(paramStartAt, quoted(value))
}

// StartAtFunc defers computing the bound until the URL is built.
func (q *Query) StartAtFunc(value func() string) *Query {
	return q.withParam(paramStartAt, func() string { return quoted(value())() })
}

func (q *Query) StartAtNumber(value float64) *Query {
	return q.withParam(paramStartAt, number(value))
}

func (q *Query) EndAt(value string) *Query {
	return q.withParam(paramEndAt, quoted(value))
}

func (q *Query) EndAtNumber(value float64) *Query {
	return q.withParam(paramEndAt, number(value))
}

func (q *Query) EqualTo(value string) *Query {
	return q.withParam(paramEqualTo, quoted(value))
}

func (q *Query) EqualToNumber(value float64) *Query {
	return q.withParam(paramEqualTo, number(value))
}

func (q *Query) LimitToFirst(n int) *Query {
	return q.withParam(paramLimitToFirst, literal(strconv.Itoa(n)))
}

func (q *Query) LimitToLast(n int) *Query {
	return q.withParam(paramLimitToLast, literal(strconv.Itoa(n)))
}

// Shallow asks for the keys of the location only.
func (q *Query) Shallow() *Query {
	return q.withParam(paramShallow, literal("true"))
}

// Silent suppresses the response body of writes.
func (q *Query) Silent() *Query {
	return q.withParam(paramPrint, literal("silent"))
}

// BuildURL renders the request URL. The token source is consulted on every
// call so that refreshed tokens are picked up.
func (q *Query) BuildURL(ctx context.Context) (string, error) {
	escaped := make([]string, len(q.segments))
	for i, seg := range q.segments {
		escaped[i] = url.PathEscape(seg)
	}
	raw := q.base + "/" + strings.Join(escaped, "/") + ".json"

	values := url.Values{}
	for _, p := range q.params {
		values.Set(p.name, p.value())
	}

	if q.tokens != nil {
		token, err := q.tokens.Token(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrBuildURL, err)
		}
		if token != "" {
			name := paramAuth
			if q.asAccessToken {
				name = paramAccessToken
			}
			values.Set(name, token)
		}
	}

	if len(values) > 0 {
		raw += "?" + values.Encode()
	}
	return raw, nil
}

// String renders the URL without auth parameters.
func (q *Query) String() string {
	c := q.clone()
	c.tokens = nil
	u, _ := c.BuildURL(context.Background())
	return u
}

func quoted(s string) func() string {
	encoded, _ := json.Marshal(s)
	return literal(string(encoded))
}

func number(v float64) func() string {
	return literal(strconv.FormatFloat(v, 'f', -1, 64))
}

func literal(s string) func() string {
	return func() string { return s }
}
