package system

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"

	"prediction-relay/internal/domain/eventbus"
	"prediction-relay/internal/platform/logging"
	httptransport "prediction-relay/internal/transport/http"
)

// StatsSource 提供预测统计快照
type StatsSource interface {
	Snapshot() eventbus.StatsSnapshot
}

// MemoryProbe 返回内存使用百分比
type MemoryProbe func(ctx context.Context) (float64, error)

// Options 系统服务依赖
type Options struct {
	Logger     *logging.Logger
	Stats      StatsSource
	Configured func() bool
	Memory     MemoryProbe
	StartedAt  time.Time
}

// Service 健康检查接口
type Service struct {
	logger     *logging.Logger
	stats      StatsSource
	configured func() bool
	memory     MemoryProbe
	startedAt  time.Time
}

// HealthData 健康检查返回的数据，不包含任何密钥信息
type HealthData struct {
	Configured        bool                   `json:"configured"`
	Stats             eventbus.StatsSnapshot `json:"stats"`
	MemoryUsedPercent *float64               `json:"memory_used_percent,omitempty"`
	UptimeSeconds     int64                  `json:"uptime_seconds"`
}

// NewService 创建健康检查服务
func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Stats == nil {
		opts.Stats = eventbus.NewStats()
	}
	if opts.Configured == nil {
		opts.Configured = func() bool { return false }
	}
	if opts.Memory == nil {
		opts.Memory = virtualMemoryPercent
	}
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}
	return &Service{
		logger:     opts.Logger,
		stats:      opts.Stats,
		configured: opts.Configured,
		memory:     opts.Memory,
		startedAt:  opts.StartedAt,
	}
}

// Register 注册健康检查路由
func (s *Service) Register(_ context.Context, router gin.IRoutes) error {
	router.GET("/health", s.handleHealth)
	s.logger.InfoTag("HTTP", "健康检查路由注册完成")
	return nil
}

// handleHealth 返回服务状态
// @Summary 健康检查
// @Produce json
// @Success 200 {object} httptransport.APIResponse
// @Router /health [get]
func (s *Service) handleHealth(c *gin.Context) {
	data := HealthData{
		Configured:    s.configured(),
		Stats:         s.stats.Snapshot(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	if percent, err := s.memory(c.Request.Context()); err == nil {
		data.MemoryUsedPercent = &percent
	} else {
		s.logger.DebugTag("HTTP", "读取内存信息失败: %v", err)
	}
	httptransport.RespondSuccess(c, http.StatusOK, data, "")
}

func virtualMemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}
