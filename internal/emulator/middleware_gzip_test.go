// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package emulator

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, s string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestGZip(t *testing.T) {
	srv, h := newTestServer(t, "")
	h.tree.Set("/msgs/k1", map[string]any{"text": "hi"})

	tests := []struct {
		name           string
		accept         string
		acceptEncoding string
		wantGzipped    bool
	}{
		{name: "compress when client accepts gzip", acceptEncoding: "gzip", wantGzipped: true},
		{name: "several encodings", acceptEncoding: "deflate, gzip, br", wantGzipped: true},
		{name: "no compression without accept-encoding", acceptEncoding: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/msgs.json", nil)
			require.NoError(t, err)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}

			// явный Accept-Encoding отключает прозрачную распаковку в http.Transport
			resp, err := http.DefaultTransport.RoundTrip(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, http.StatusOK, resp.StatusCode)

			var body io.Reader = resp.Body
			if tt.wantGzipped {
				require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
				zr, err := gzip.NewReader(resp.Body)
				require.NoError(t, err)
				body = zr
			} else {
				assert.Empty(t, resp.Header.Get("Content-Encoding"))
			}

			data, err := io.ReadAll(body)
			require.NoError(t, err)
			assert.JSONEq(t, `{"k1":{"text":"hi"}}`, string(data))
		})
	}
}

func TestGZip_DecodesRequestBody(t *testing.T) {
	srv, h := newTestServer(t, "")

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/msgs/k1.json", bytes.NewReader(gzipped(t, `{"text":"zip"}`)))
	require.NoError(t, err)
	req.Header.Set("Content-Encoding", "gzip")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"text": "zip"}, h.tree.Get("/msgs/k1"))
}

func TestGZip_InvalidRequestBody(t *testing.T) {
	srv, _ := newTestServer(t, "")

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/msgs/k1.json", bytes.NewReader([]byte("not gzip")))
	require.NoError(t, err)
	req.Header.Set("Content-Encoding", "gzip")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGZip_SkipsEventStream(t *testing.T) {
	srv, _ := newTestServer(t, "")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/msgs.json", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", eventStreamType)
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
}
