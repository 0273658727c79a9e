package testutil

import (
	"io"
	"net/http"
	"testing"
)

func TestLoopbackRequest(t *testing.T) {
	req := LoopbackRequest(http.MethodGet, "/debug/pointers", nil)
	if req.RemoteAddr != "127.0.0.1:12345" {
		t.Errorf("RemoteAddr = %q", req.RemoteAddr)
	}
	if req.URL.Path != "/debug/pointers" {
		t.Errorf("path = %q", req.URL.Path)
	}
}

func TestFormRequest(t *testing.T) {
	req := FormRequest("/debug/send-command-api", "command=STREAM+on")
	if req.Method != http.MethodPost {
		t.Errorf("method = %s", req.Method)
	}
	if err := req.ParseForm(); err != nil {
		t.Fatal(err)
	}
	if got := req.PostForm.Get("command"); got != "STREAM on" {
		t.Errorf("command = %q", got)
	}
}

func TestServe(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.RemoteAddr != "127.0.0.1:12345" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		io.WriteString(w, "ok")
	})
	rec := Serve(t, h, LoopbackRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}
