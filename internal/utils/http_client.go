package utils

import (
	"github.com/go-resty/resty/v2"
)

const userAgent = "go-firesync"

// HTTPClient wraps resty.Client so the transport can be extended with
// application-specific behavior.
//
//	client := utils.NewHTTPClient()
//	resp, err := client.R().SetContext(ctx).Get(url)
type HTTPClient struct {
	*resty.Client
}

// NewHTTPClient returns an independent client with its own connection pool.
// Every request carries the go-firesync User-Agent.
func NewHTTPClient() *HTTPClient {
	c := resty.New().SetHeader("User-Agent", userAgent)
	return &HTTPClient{Client: c}
}
