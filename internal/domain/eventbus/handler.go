package eventbus

import (
	"prediction-relay/internal/platform/logging"
)

// Subscriber 可以订阅事件总线的对象
type Subscriber interface {
	Subscribe(topic string, fn interface{}) error
}

// LogHandler 把预测事件写入调试日志
type LogHandler struct {
	logger *logging.Logger
}

// NewLogHandler 创建日志事件处理器
func NewLogHandler(logger *logging.Logger) *LogHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &LogHandler{logger: logger}
}

// Register 订阅所有预测事件
func (h *LogHandler) Register(bus Subscriber) error {
	handlers := map[string]func(PredictionEventData){
		EventPredictionCompleted: h.handleCompleted,
		EventPredictionFailed:    h.handleFailed,
		EventPredictionRejected:  h.handleRejected,
	}
	for topic, fn := range handlers {
		if err := bus.Subscribe(topic, fn); err != nil {
			return err
		}
	}
	return nil
}

func (h *LogHandler) handleCompleted(data PredictionEventData) {
	h.logger.DebugTag("事件", "预测完成: request_id=%s sign=%s confidence=%.4f 耗时=%s",
		data.RequestID, data.Sign, data.Confidence, data.Duration)
}

func (h *LogHandler) handleFailed(data PredictionEventData) {
	h.logger.DebugTag("事件", "预测失败: request_id=%s 耗时=%s 错误=%s",
		data.RequestID, data.Duration, data.Error)
}

func (h *LogHandler) handleRejected(data PredictionEventData) {
	h.logger.DebugTag("事件", "请求被拒绝: request_id=%s kind=%s",
		data.RequestID, data.Kind)
}
