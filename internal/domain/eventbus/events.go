package eventbus

import "time"

// 事件类型定义
const (
	// EventPredictionCompleted 上游返回并成功解析（包括没有预测结果的默认值）
	EventPredictionCompleted = "prediction:completed"
	// EventPredictionFailed 上游调用或解析失败
	EventPredictionFailed = "prediction:failed"
	// EventPredictionRejected 配置缺失或请求体为空，未调用上游
	EventPredictionRejected = "prediction:rejected"
)

// PredictionEventData 预测生命周期事件数据
type PredictionEventData struct {
	RequestID  string        `json:"request_id"`
	Kind       string        `json:"kind,omitempty"`
	Sign       string        `json:"sign,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}
