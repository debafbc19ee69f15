package testing

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"prediction-relay/internal/platform/config"
	"prediction-relay/internal/platform/logging"
)

// SetupTestConfig returns defaults with the prediction secrets pointed at endpoint.
func SetupTestConfig(t *testing.T, endpoint string) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Log.Level = "debug"
	cfg.Prediction.Endpoint = endpoint
	cfg.Prediction.Key = "test-key"
	cfg.Prediction.Timeout = 5 * time.Second
	return cfg
}

// SetupTestLogger writes to a buffer and a JSON file under t.TempDir.
func SetupTestLogger(t *testing.T) (*logging.Logger, *SafeBuffer) {
	t.Helper()

	buf := &SafeBuffer{}
	logger, err := logging.New(logging.Config{
		Level:    "debug",
		Dir:      t.TempDir(),
		Filename: "test.log",
		Console:  buf,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger, buf
}

// SafeBuffer is a bytes.Buffer safe for concurrent writers.
type SafeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// FakeUpstream is a canned classifier endpoint that records what it received.
type FakeUpstream struct {
	Server *httptest.Server

	calls atomic.Int32
	mu    sync.Mutex
	last  *http.Request
	body  []byte
}

// NewFakeUpstream answers every request with status and response.
func NewFakeUpstream(t *testing.T, status int, response string) *FakeUpstream {
	t.Helper()

	u := &FakeUpstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.last = r.Clone(r.Context())
		u.body = body
		u.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(u.Server.Close)
	return u
}

// URL of the fake endpoint.
func (u *FakeUpstream) URL() string { return u.Server.URL }

// Calls counts requests received so far.
func (u *FakeUpstream) Calls() int { return int(u.calls.Load()) }

// LastBody returns the body of the most recent request.
func (u *FakeUpstream) LastBody() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.body
}

// LastHeader returns a header of the most recent request.
func (u *FakeUpstream) LastHeader(key string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.last == nil {
		return ""
	}
	return u.last.Header.Get(key)
}
