package prediction

import (
	"context"
	"time"

	"prediction-relay/internal/domain/eventbus"
	"prediction-relay/internal/platform/config"
	platformerrors "prediction-relay/internal/platform/errors"
	"prediction-relay/internal/platform/logging"
	"prediction-relay/internal/platform/observability"
)

const (
	opPredict = "prediction.predict"
	component = "prediction"
)

// Publisher receives lifecycle events. The async event bus satisfies it.
type Publisher interface {
	PublishAsync(topic string, args ...interface{})
}

type noopPublisher struct{}

func (noopPublisher) PublishAsync(string, ...interface{}) {}

// Options wires the relay dependencies.
type Options struct {
	Config     config.PredictionConfig
	Classifier Classifier
	Logger     *logging.Logger
	Events     Publisher
}

// Relay validates a request, forwards it to the classifier and normalizes
// the answer. It holds no per-request state and is safe for concurrent use.
type Relay struct {
	config     config.PredictionConfig
	classifier Classifier
	logger     *logging.Logger
	events     Publisher
}

// NewRelay builds a relay. A nil Classifier defaults to HTTPClient.
func NewRelay(opts Options) *Relay {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Events == nil {
		opts.Events = noopPublisher{}
	}
	if opts.Classifier == nil {
		opts.Classifier = NewHTTPClient(opts.Config, nil)
	}
	return &Relay{
		config:     opts.Config,
		classifier: opts.Classifier,
		logger:     opts.Logger,
		events:     opts.Events,
	}
}

// Configured reports whether both the endpoint and the key are present.
func (r *Relay) Configured() bool {
	return r.config.Configured()
}

// Predict runs one request. The returned error is always kinded:
// KindConfig and KindInput reject before the upstream is contacted,
// KindUpstream covers transport, status and parse failures.
func (r *Relay) Predict(ctx context.Context, body []byte) (Result, error) {
	requestID := RequestIDFromContext(ctx)

	if !r.config.Configured() {
		r.logger.ErrorTag("预测", "预测服务未配置: request_id=%s", requestID)
		r.reject(requestID, platformerrors.KindConfig)
		return Result{}, platformerrors.New(platformerrors.KindConfig, opPredict, MessageNotConfigured)
	}

	if len(body) == 0 {
		r.logger.WarnTag("预测", "请求体为空: request_id=%s", requestID)
		r.reject(requestID, platformerrors.KindInput)
		return Result{}, platformerrors.New(platformerrors.KindInput, opPredict, MessageMissingBody)
	}

	ctx, end := observability.StartSpan(ctx, component, "classify")
	start := time.Now()

	result, err := r.classify(ctx, body)
	elapsed := time.Since(start)
	end(err)

	observability.RecordMetric(ctx, "prediction.upstream_ms", float64(elapsed.Milliseconds()),
		map[string]string{"outcome": outcome(err)})

	if err != nil {
		r.logger.ErrorTag("预测", "预测失败: request_id=%s 耗时=%s 错误=%v", requestID, elapsed, err)
		r.events.PublishAsync(eventbus.EventPredictionFailed, eventbus.PredictionEventData{
			RequestID: requestID,
			Kind:      string(platformerrors.KindOf(err)),
			Duration:  elapsed,
			Error:     err.Error(),
		})
		return Result{}, err
	}

	r.logger.InfoTag("预测", "预测完成: request_id=%s sign=%s confidence=%.4f 耗时=%s",
		requestID, result.Sign, result.Confidence, elapsed)
	r.events.PublishAsync(eventbus.EventPredictionCompleted, eventbus.PredictionEventData{
		RequestID:  requestID,
		Sign:       result.Sign,
		Confidence: result.Confidence,
		Duration:   elapsed,
	})
	return result, nil
}

func (r *Relay) classify(ctx context.Context, body []byte) (Result, error) {
	resp, err := r.classifier.Classify(ctx, body)
	if err != nil {
		return Result{}, platformerrors.Wrap(platformerrors.KindUpstream, opPredict, MessagePredictionFailed, err)
	}
	result, err := resp.Top()
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (r *Relay) reject(requestID string, kind platformerrors.Kind) {
	r.events.PublishAsync(eventbus.EventPredictionRejected, eventbus.PredictionEventData{
		RequestID: requestID,
		Kind:      string(kind),
	})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
