// Package testutil holds helpers shared by handler tests.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// LoopbackRequest creates a request that appears to come from localhost,
// which tsweb requires before serving /debug/ handlers.
func LoopbackRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// FormRequest creates a loopback POST carrying an urlencoded form body.
func FormRequest(target, form string) *http.Request {
	req := LoopbackRequest(http.MethodPost, target, strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// Serve runs req through h and returns the recorded response.
func Serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
