package prediction

import (
	"context"

	platformerrors "prediction-relay/internal/platform/errors"
)

const (
	// DefaultSign is reported when the upstream has no usable label.
	DefaultSign = "?"

	// Caller-facing messages. Upstream detail never reaches the caller.
	MessageNotConfigured    = "ERROR: Application is not configured. PREDICTION_ENDPOINT or PREDICTION_KEY is missing."
	MessageMissingBody      = "Please pass image data in the request body"
	MessagePredictionFailed = "An error occurred during prediction."
)

// Result is the normalized answer returned to the caller.
type Result struct {
	Sign       string  `json:"sign"`
	Confidence float64 `json:"confidence"`
}

// DefaultResult is returned when the upstream has no predictions.
func DefaultResult() Result {
	return Result{Sign: DefaultSign, Confidence: 0}
}

// UpstreamResponse is the subset of the classifier response the relay reads.
type UpstreamResponse struct {
	Predictions []*Prediction `json:"predictions"`
}

// Prediction is one upstream label. Absent fields decode to nil.
type Prediction struct {
	TagName     *string  `json:"tagName"`
	Probability *float64 `json:"probability"`
}

// Top maps the first prediction to a Result. The upstream order is trusted
// as-is: no comparison by probability is done. An absent or empty list
// yields DefaultResult.
func (r *UpstreamResponse) Top() (Result, error) {
	if r == nil || len(r.Predictions) == 0 {
		return DefaultResult(), nil
	}

	first := r.Predictions[0]
	if first == nil {
		return DefaultResult(), platformerrors.New(platformerrors.KindUpstream, opParse, "first prediction is null")
	}

	result := DefaultResult()
	if first.TagName != nil {
		result.Sign = *first.TagName
	}
	if first.Probability != nil {
		result.Confidence = *first.Probability
	}
	return result, nil
}

type requestIDKey struct{}

// WithRequestID stores the inbound request id for logs and events.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id stored by WithRequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
