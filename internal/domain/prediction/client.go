package prediction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"prediction-relay/internal/platform/config"
	platformerrors "prediction-relay/internal/platform/errors"
)

const (
	HeaderPredictionKey = "Prediction-Key"
	ContentTypeOctet    = "application/octet-stream"

	opClassify = "prediction.classify"
	opParse    = "prediction.parse"

	// maxUpstreamBody bounds how much of the upstream response is read.
	maxUpstreamBody = 8 << 20
	// maxErrorSnippet bounds the upstream body kept in error causes for logs.
	maxErrorSnippet = 256
)

// Classifier sends image bytes to the hosted model.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*UpstreamResponse, error)
}

// HTTPClient calls the prediction endpoint over HTTP(S).
type HTTPClient struct {
	endpoint string
	key      string
	client   *http.Client
}

// NewHTTPClient builds a client for cfg. When httpClient is nil a client
// bounded by cfg.Timeout is created.
func NewHTTPClient(cfg config.PredictionConfig, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPClient{
		endpoint: cfg.Endpoint,
		key:      cfg.Key,
		client:   httpClient,
	}
}

// Classify posts image unmodified and decodes the JSON answer. Every failure
// is a KindUpstream error whose cause carries the detail.
func (c *HTTPClient) Classify(ctx context.Context, image []byte) (*UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindUpstream, opClassify, "build request", err)
	}
	req.Header.Set(HeaderPredictionKey, c.key)
	req.Header.Set("Content-Type", ContentTypeOctet)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindUpstream, opClassify, "send request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody+1))
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindUpstream, opClassify, "read response", err)
	}
	if len(body) > maxUpstreamBody {
		return nil, platformerrors.New(platformerrors.KindUpstream, opClassify,
			fmt.Sprintf("response exceeds %d bytes", maxUpstreamBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, platformerrors.Wrap(platformerrors.KindUpstream, opClassify, "bad response status",
			fmt.Errorf("status %d, body: %s", resp.StatusCode, snippet(body)))
	}

	return decodeResponse(body)
}

// decodeResponse treats an empty document or an empty predictions value
// (null, false, 0, "", [] or {}) as no predictions. Anything else must be
// an object whose predictions field is a list.
func decodeResponse(body []byte) (*UpstreamResponse, error) {
	var doc interface{}
	if err := sonic.Unmarshal(body, &doc); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindUpstream, opParse, "decode response", err)
	}
	if isEmptyValue(doc) {
		return &UpstreamResponse{}, nil
	}

	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, platformerrors.New(platformerrors.KindUpstream, opParse,
			fmt.Sprintf("response is %T, want object", doc))
	}
	predictions := obj["predictions"]
	if isEmptyValue(predictions) {
		return &UpstreamResponse{}, nil
	}
	if _, ok := predictions.([]interface{}); !ok {
		return nil, platformerrors.New(platformerrors.KindUpstream, opParse,
			fmt.Sprintf("predictions is %T, want list", predictions))
	}

	var out UpstreamResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindUpstream, opParse, "decode response", err)
	}
	return &out, nil
}

func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case float64:
		return val == 0
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorSnippet {
		return s[:maxErrorSnippet] + "..."
	}
	return s
}
