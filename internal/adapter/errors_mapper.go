package adapter

import (
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

func statusError(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusPreconditionFailed:
		return ErrPreconditionFailed
	case http.StatusTooManyRequests:
		return ErrTooManyRequests
	case http.StatusInternalServerError:
		return ErrInternalServerError
	case http.StatusServiceUnavailable:
		return ErrServiceUnavailable
	default:
		return ErrUnexpectedStatus
	}
}

func mapHTTPError(method, rawURL string, body []byte, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	return &RequestError{
		Method:       method,
		URL:          redactURL(rawURL),
		RequestBody:  string(body),
		ResponseBody: strings.TrimSpace(string(resp.Body())),
		StatusCode:   resp.StatusCode(),
		Err:          statusError(resp.StatusCode()),
	}
}
