package predict

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"prediction-relay/internal/domain/prediction"
	platformerrors "prediction-relay/internal/platform/errors"
	"prediction-relay/internal/platform/logging"
	httptransport "prediction-relay/internal/transport/http"
)

const (
	// MessageBodyTooLarge 请求体超过 PREDICTION_MAX_BODY_BYTES 时返回
	MessageBodyTooLarge = "Request body too large"
	// MessageStatus GET 请求返回的状态说明
	MessageStatus = "Prediction relay is running. POST raw image bytes to this endpoint."
)

// Predictor 预测服务需要的领域能力
type Predictor interface {
	Predict(ctx context.Context, body []byte) (prediction.Result, error)
}

// Service 预测接口的HTTP传输层实现
type Service struct {
	predictor    Predictor
	logger       *logging.Logger
	maxBodyBytes int64
}

// NewService 创建预测服务，maxBodyBytes 为0表示不限制请求体大小
func NewService(predictor Predictor, logger *logging.Logger, maxBodyBytes int64) (*Service, error) {
	if predictor == nil {
		return nil, platformerrors.New(platformerrors.KindBootstrap, "predict.new", "predictor is required")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		predictor:    predictor,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}, nil
}

// Register 注册预测相关的HTTP路由
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.POST("/predict", s.handlePost)
	router.GET("/predict", s.handleGet)

	s.logger.InfoTag("HTTP", "预测服务路由注册完成")
	return nil
}

// handlePost 转发图片并返回识别结果
// @Summary 识别图片中的交通标志
// @Accept application/octet-stream
// @Produce json
// @Success 200 {object} prediction.Result
// @Failure 400 {string} string
// @Failure 413 {string} string
// @Failure 500 {string} string
// @Router /api/predict [post]
func (s *Service) handlePost(c *gin.Context) {
	body, err := s.readBody(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.WarnTag("HTTP", "请求体过大: limit=%d", tooLarge.Limit)
			httptransport.RespondText(c, http.StatusRequestEntityTooLarge, MessageBodyTooLarge)
			return
		}
		s.logger.ErrorTag("HTTP", "读取请求体失败: %v", err)
		_ = c.Error(err)
		httptransport.RespondText(c, http.StatusInternalServerError, prediction.MessagePredictionFailed)
		return
	}

	result, err := s.predictor.Predict(c.Request.Context(), body)
	if err != nil {
		status, message := statusFor(err)
		_ = c.Error(err)
		httptransport.RespondText(c, status, message)
		return
	}

	httptransport.RespondJSON(c, http.StatusOK, result)
}

// handleGet 返回接口说明
func (s *Service) handleGet(c *gin.Context) {
	httptransport.RespondText(c, http.StatusOK, MessageStatus)
}

func (s *Service) readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	reader := io.Reader(c.Request.Body)
	if s.maxBodyBytes > 0 {
		reader = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes)
	}
	return io.ReadAll(reader)
}

// statusFor 把领域错误映射为固定的状态码和消息，不透出上游细节
func statusFor(err error) (int, string) {
	switch platformerrors.KindOf(err) {
	case platformerrors.KindConfig:
		return http.StatusInternalServerError, prediction.MessageNotConfigured
	case platformerrors.KindInput:
		return http.StatusBadRequest, prediction.MessageMissingBody
	default:
		return http.StatusInternalServerError, prediction.MessagePredictionFailed
	}
}
