package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	qt "github.com/frankban/quicktest"
)

const testToken = "test-secret-token"

// syncBuffer collects log output from concurrent requests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := strings.Split(strings.TrimSpace(s.buf.String()), "\n")
	if len(out) == 1 && out[0] == "" {
		return nil
	}
	return out
}

// Records decodes every JSON log line.
func (s *syncBuffer) Records(c *qt.C) []map[string]any {
	var recs []map[string]any
	for _, line := range s.Lines() {
		var rec map[string]any
		c.Assert(json.Unmarshal([]byte(line), &rec), qt.IsNil, qt.Commentf("line %q", line))
		recs = append(recs, rec)
	}
	return recs
}

type testEnv struct {
	handler http.Handler
	logs    *syncBuffer
}

func newTestEnv(c *qt.C, store Store, opts ...func(*RouterOptions)) *testEnv {
	logs := &syncBuffer{}
	o := RouterOptions{
		Store: store,
		Gate:  Gate{Token: testToken},
		Log:   NewLogger(logs, "INFO", "json"),
	}
	for _, f := range opts {
		f(&o)
	}
	return &testEnv{handler: NewRouter(o), logs: logs}
}

func newRequest(method, path, body, token string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	return e.serve(newRequest(method, path, body, testToken))
}

func decodeJSON[T any](c *qt.C, rr *httptest.ResponseRecorder) T {
	var v T
	c.Assert(json.Unmarshal(rr.Body.Bytes(), &v), qt.IsNil, qt.Commentf("body %q", rr.Body.String()))
	return v
}
