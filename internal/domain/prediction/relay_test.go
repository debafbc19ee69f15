package prediction

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prediction-relay/internal/domain/eventbus"
	"prediction-relay/internal/platform/config"
	platformerrors "prediction-relay/internal/platform/errors"
)

type upstream struct {
	server *httptest.Server
	calls  atomic.Int32

	mu          sync.Mutex
	body        []byte
	key         string
	contentType string
}

func newUpstream(t *testing.T, status int, response string) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.body = body
		u.key = r.Header.Get(HeaderPredictionKey)
		u.contentType = r.Header.Get("Content-Type")
		u.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func predictionConfig(endpoint string) config.PredictionConfig {
	return config.PredictionConfig{
		Endpoint: endpoint,
		Key:      "secret-key",
		Timeout:  5 * time.Second,
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	data   []eventbus.PredictionEventData
}

func (p *recordingPublisher) PublishAsync(topic string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	if len(args) > 0 {
		if data, ok := args[0].(eventbus.PredictionEventData); ok {
			p.data = append(p.data, data)
		}
	}
}

func newRelay(cfg config.PredictionConfig, events Publisher) *Relay {
	return NewRelay(Options{Config: cfg, Events: events})
}

func TestPredict_NotConfigured(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{"predictions":[]}`)

	tests := []struct {
		name string
		cfg  config.PredictionConfig
	}{
		{"missing endpoint", config.PredictionConfig{Key: "k", Timeout: time.Second}},
		{"missing key", config.PredictionConfig{Endpoint: up.server.URL, Timeout: time.Second}},
		{"empty values", config.PredictionConfig{Endpoint: "", Key: "", Timeout: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &recordingPublisher{}
			relay := newRelay(tt.cfg, events)

			_, err := relay.Predict(context.Background(), []byte("image"))
			require.Error(t, err)
			assert.True(t, platformerrors.IsKind(err, platformerrors.KindConfig))
			assert.Contains(t, err.Error(), MessageNotConfigured)
			assert.Equal(t, []string{eventbus.EventPredictionRejected}, events.topics)
		})
	}
	assert.Zero(t, up.calls.Load())
}

func TestPredict_ConfigCheckedBeforeBody(t *testing.T) {
	relay := newRelay(config.PredictionConfig{}, nil)
	_, err := relay.Predict(context.Background(), nil)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindConfig))
}

func TestPredict_EmptyBody(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{"predictions":[]}`)
	events := &recordingPublisher{}
	relay := newRelay(predictionConfig(up.server.URL), events)

	for _, body := range [][]byte{nil, {}} {
		_, err := relay.Predict(context.Background(), body)
		require.Error(t, err)
		assert.True(t, platformerrors.IsKind(err, platformerrors.KindInput))
		assert.Contains(t, err.Error(), MessageMissingBody)
	}
	assert.Zero(t, up.calls.Load())
	require.Len(t, events.data, 2)
	assert.Equal(t, string(platformerrors.KindInput), events.data[0].Kind)
}

func TestPredict_Success(t *testing.T) {
	up := newUpstream(t, http.StatusOK,
		`{"id":"x","predictions":[{"tagName":"Stop","probability":0.97},{"tagName":"Yield","probability":0.02}]}`)
	events := &recordingPublisher{}
	relay := newRelay(predictionConfig(up.server.URL), events)

	ctx := WithRequestID(context.Background(), "req-1")
	result, err := relay.Predict(ctx, []byte{0x89, 0x50, 0x4e, 0x47})
	require.NoError(t, err)
	assert.Equal(t, Result{Sign: "Stop", Confidence: 0.97}, result)

	assert.Equal(t, int32(1), up.calls.Load())
	assert.Equal(t, "secret-key", up.key)
	assert.Equal(t, ContentTypeOctet, up.contentType)

	require.Len(t, events.data, 1)
	assert.Equal(t, eventbus.EventPredictionCompleted, events.topics[0])
	assert.Equal(t, "req-1", events.data[0].RequestID)
	assert.Equal(t, "Stop", events.data[0].Sign)
}

func TestPredict_BodyForwardedUnmodified(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{"predictions":[]}`)
	relay := newRelay(predictionConfig(up.server.URL), nil)

	body := make([]byte, 4096)
	for i := range body {
		body[i] = byte(i % 251)
	}
	_, err := relay.Predict(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, body, up.body)
}

func TestPredict_FirstPredictionWins(t *testing.T) {
	up := newUpstream(t, http.StatusOK,
		`{"predictions":[{"tagName":"Yield","probability":0.1},{"tagName":"Stop","probability":0.9}]}`)
	relay := newRelay(predictionConfig(up.server.URL), nil)

	result, err := relay.Predict(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, Result{Sign: "Yield", Confidence: 0.1}, result)
}

func TestPredict_DefaultResult(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     Result
	}{
		{"empty list", `{"predictions":[]}`, DefaultResult()},
		{"absent list", `{"id":"abc"}`, DefaultResult()},
		{"null list", `{"predictions":null}`, DefaultResult()},
		{"null document", `null`, DefaultResult()},
		{"missing tag", `{"predictions":[{"probability":0.4}]}`, Result{Sign: "?", Confidence: 0.4}},
		{"missing probability", `{"predictions":[{"tagName":"Stop"}]}`, Result{Sign: "Stop", Confidence: 0}},
		{"null tag", `{"predictions":[{"tagName":null,"probability":0.5}]}`, Result{Sign: "?", Confidence: 0.5}},
		{"empty array document", `[]`, DefaultResult()},
		{"false document", `false`, DefaultResult()},
		{"zero document", `0`, DefaultResult()},
		{"empty string document", `""`, DefaultResult()},
		{"empty object document", `{}`, DefaultResult()},
		{"false list", `{"predictions":false}`, DefaultResult()},
		{"empty object list", `{"predictions":{}}`, DefaultResult()},
		{"zero list", `{"predictions":0}`, DefaultResult()},
		{"empty string list", `{"predictions":""}`, DefaultResult()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpstream(t, http.StatusOK, tt.response)
			relay := newRelay(predictionConfig(up.server.URL), nil)

			result, err := relay.Predict(context.Background(), []byte("img"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestPredict_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"unauthorized", http.StatusUnauthorized, `{"code":"Unauthorized"}`},
		{"redirect status", http.StatusNotModified, ``},
		{"invalid json", http.StatusOK, `not json`},
		{"empty body", http.StatusOK, ``},
		{"array document", http.StatusOK, `[1,2,3]`},
		{"mistyped probability", http.StatusOK, `{"predictions":[{"tagName":"Stop","probability":"high"}]}`},
		{"null first prediction", http.StatusOK, `{"predictions":[null]}`},
		{"string document", http.StatusOK, `"Stop"`},
		{"number document", http.StatusOK, `1`},
		{"true document", http.StatusOK, `true`},
		{"object list", http.StatusOK, `{"predictions":{"tagName":"Stop"}}`},
		{"string list", http.StatusOK, `{"predictions":"Stop"}`},
		{"true list", http.StatusOK, `{"predictions":true}`},
		{"scalar first prediction", http.StatusOK, `{"predictions":["Stop"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := newUpstream(t, tt.status, tt.response)
			events := &recordingPublisher{}
			relay := newRelay(predictionConfig(up.server.URL), events)

			_, err := relay.Predict(context.Background(), []byte("img"))
			require.Error(t, err)
			assert.True(t, platformerrors.IsKind(err, platformerrors.KindUpstream), "got %v", err)
			assert.Equal(t, int32(1), up.calls.Load())
			assert.Equal(t, []string{eventbus.EventPredictionFailed}, events.topics)
		})
	}
}

func TestPredict_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	relay := newRelay(predictionConfig(url), nil)
	_, err := relay.Predict(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindUpstream))
}

func TestPredict_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	cfg := predictionConfig(server.URL)
	cfg.Timeout = 50 * time.Millisecond
	relay := newRelay(cfg, nil)

	_, err := relay.Predict(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindUpstream))
}

type stubClassifier struct {
	resp *UpstreamResponse
	err  error
}

func (s stubClassifier) Classify(context.Context, []byte) (*UpstreamResponse, error) {
	return s.resp, s.err
}

func TestPredict_ClassifierErrorIsUpstream(t *testing.T) {
	relay := NewRelay(Options{
		Config:     predictionConfig("http://unused"),
		Classifier: stubClassifier{err: io.ErrUnexpectedEOF},
	})
	_, err := relay.Predict(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.True(t, platformerrors.IsKind(err, platformerrors.KindUpstream))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestPredict_NilResponseIsDefault(t *testing.T) {
	relay := NewRelay(Options{
		Config:     predictionConfig("http://unused"),
		Classifier: stubClassifier{},
	})
	result, err := relay.Predict(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, DefaultResult(), result)
}

func TestPredict_Concurrent(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{"predictions":[{"tagName":"Stop","probability":0.97}]}`)
	relay := newRelay(predictionConfig(up.server.URL), nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := relay.Predict(context.Background(), []byte("img"))
			assert.NoError(t, err)
			assert.Equal(t, "Stop", result.Sign)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(16), up.calls.Load())
}

func TestRequestIDFromContext(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
	assert.Equal(t, "abc", RequestIDFromContext(WithRequestID(context.Background(), "abc")))
}

func TestPredict_SecretsSentAsConfigured(t *testing.T) {
	up := newUpstream(t, http.StatusOK, `{"predictions":[]}`)
	cfg := predictionConfig(up.server.URL)
	cfg.Key = "key with spaces"

	relay := newRelay(cfg, nil)
	_, err := relay.Predict(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "key with spaces", up.key)

	padded := NewHTTPClient(config.PredictionConfig{Endpoint: " http://x ", Key: " k "}, nil)
	assert.Equal(t, " http://x ", padded.endpoint)
	assert.Equal(t, " k ", padded.key)
}

func TestPredict_WhitespaceSecretsCountAsConfigured(t *testing.T) {
	cfg := config.PredictionConfig{Endpoint: "http://unused", Key: " ", Timeout: time.Second}
	relay := NewRelay(Options{Config: cfg, Classifier: stubClassifier{}})

	assert.True(t, relay.Configured())
	result, err := relay.Predict(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, DefaultResult(), result)
}
