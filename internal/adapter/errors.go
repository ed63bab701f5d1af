package adapter

import (
	"errors"
	"fmt"
	"net/url"
)

var (
	ErrBuildURL = errors.New("failed to build request url")

	ErrBadRequest          = errors.New("bad request")
	ErrUnauthorized        = errors.New("client unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrPreconditionFailed  = errors.New("precondition failed")
	ErrTooManyRequests     = errors.New("too many requests")
	ErrInternalServerError = errors.New("internal server error")
	ErrServiceUnavailable  = errors.New("service unavailable")
	ErrUnexpectedStatus    = errors.New("unexpected http status")
)

// RequestError describes a failed request to the remote store. StatusCode is
// zero when no response was received.
type RequestError struct {
	Method       string
	URL          string
	RequestBody  string
	ResponseBody string
	StatusCode   int
	Err          error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: http %d: %v", e.Method, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// redactURL hides auth tokens so that URLs can be logged and returned in
// errors.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	values := u.Query()
	for _, name := range []string{paramAuth, paramAccessToken} {
		if values.Has(name) {
			values.Set(name, "REDACTED")
		}
	}
	u.RawQuery = values.Encode()
	return u.String()
}
