package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swaggo/swag"
	"golang.org/x/sync/errgroup"

	_ "prediction-relay/docs"
	"prediction-relay/internal/domain/eventbus"
	"prediction-relay/internal/domain/prediction"
	platformconfig "prediction-relay/internal/platform/config"
	platformerrors "prediction-relay/internal/platform/errors"
	platformlogging "prediction-relay/internal/platform/logging"
	platformobservability "prediction-relay/internal/platform/observability"
	httptransport "prediction-relay/internal/transport/http"
	httppredict "prediction-relay/internal/transport/http/predict"
	httpsystem "prediction-relay/internal/transport/http/system"
)

const scalarHTML = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="utf-8" />
		<title>Prediction Relay API Reference</title>
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"
			data-layout="modern"
			src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"
		></script>
	</body>
</html>`

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	loader                *platformconfig.Loader
	console               io.Writer
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	bus                   *eventbus.AsyncEventBus
	stats                 *eventbus.Stats
	relay                 *prediction.Relay
}

// Options 控制应用的构建方式，零值使用默认加载器和标准输出
type Options struct {
	Loader  *platformconfig.Loader
	Console io.Writer
}

// Application 已完成初始化的服务，可作为 http.Handler 直接挂载
type Application struct {
	Config  *platformconfig.Config
	Logger  *platformlogging.Logger
	Handler http.Handler

	state     *appState
	steps     []initStep
	startedAt time.Time
}

// New 执行初始化依赖图并构建HTTP路由，不监听端口
func New(ctx context.Context, opts Options) (*Application, error) {
	state := &appState{loader: opts.Loader, console: opts.Console}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		state.close(ctx)
		return nil, err
	}

	app := &Application{
		Config:    state.config,
		Logger:    state.logger,
		state:     state,
		steps:     steps,
		startedAt: time.Now(),
	}

	handler, err := app.buildRouter(ctx)
	if err != nil {
		state.close(ctx)
		return nil, err
	}
	app.Handler = handler
	return app, nil
}

// Close 释放事件总线、可观测性钩子和日志文件
func (a *Application) Close(ctx context.Context) {
	if a == nil || a.state == nil {
		return
	}
	a.state.close(ctx)
}

func (s *appState) close(ctx context.Context) {
	if s.bus != nil {
		s.bus.Stop()
		s.bus = nil
	}
	if shutdown := s.observabilityShutdown; shutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := shutdown(shutdownCtx); err != nil && s.logger != nil {
			s.logger.WarnTag("引导", "可观测性未正常关闭: %v", err)
		}
		cancel()
		s.observabilityShutdown = nil
	}
	if s.logger != nil {
		_ = s.logger.Close()
	}
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context) error {
	app, err := New(ctx, Options{})
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	logger := app.Logger
	logBootstrapGraph(app.steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(rootCtx)

	// 服务异常退出时 groupCtx 被取消，同样触发清理
	signalCtx, stop := signal.NotifyContext(groupCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", listenAddr(app.Config.Server))
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindTransport, "http:listen", "failed to listen", err)
	}
	startHTTPServer(app, listener, group, groupCtx)

	return waitForShutdown(signalCtx, cancel, logger, group, shutdownTimeout(app.Config.Server))
}

func shutdownTimeout(server platformconfig.ServerConfig) time.Duration {
	if server.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return server.ShutdownTimeout
}

func listenAddr(server platformconfig.ServerConfig) string {
	return net.JoinHostPort(server.IP, strconv.Itoa(server.ListenPort()))
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	logger.InfoTag("引导", "初始化依赖关系概览")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("引导", "%s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag("引导", "%s (%s) <- %v", step.ID, step.Title, step.DependsOn)
	}
	logger.InfoTag("引导", "启动服务")
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph 返回按依赖顺序排列的初始化步骤
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration from file and environment",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "eventbus:init",
			Title:     "Start prediction event bus",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "prediction:init-relay",
			Title:     "Initialise prediction relay",
			DependsOn: []string{"config:load", "eventbus:init"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initRelayStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := state.loader
	if loader == nil {
		loader = platformconfig.NewLoader()
	}
	result, err := loader.Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
		Console:  state.console,
	})
	if err != nil {
		return err
	}
	state.logger = logger
	logger.InfoTag("引导", "配置加载完成，来源: %s", state.configPath)
	if !state.config.Prediction.Configured() {
		logger.WarnTag("引导", "PREDICTION_ENDPOINT 或 PREDICTION_KEY 未设置，预测请求将返回配置错误")
	}
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	shutdown, err := platformobservability.Setup(ctx, platformobservability.Config{
		Enabled: state.logger.IsDebug(),
	}, state.logger.Slog())
	if err != nil {
		return err
	}
	state.observabilityShutdown = shutdown
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	bus := eventbus.NewAsyncEventBus(state.config.Events.Workers, state.config.Events.QueueSize)

	stats := eventbus.NewStats()
	if err := stats.Register(bus); err != nil {
		return err
	}
	if err := eventbus.NewLogHandler(state.logger).Register(bus); err != nil {
		return err
	}

	bus.Start()
	state.bus = bus
	state.stats = stats
	state.logger.InfoTag("事件", "事件总线已启动: workers=%d queue=%d",
		state.config.Events.Workers, state.config.Events.QueueSize)
	return nil
}

func initRelayStep(_ context.Context, state *appState) error {
	state.relay = prediction.NewRelay(prediction.Options{
		Config: state.config.Prediction,
		Logger: state.logger,
		Events: state.bus,
	})
	return nil
}

func (a *Application) buildRouter(ctx context.Context) (http.Handler, error) {
	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: a.Config,
		Logger: a.Logger,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine

	predictService, err := httppredict.NewService(a.state.relay, a.Logger, a.Config.Prediction.MaxBodyBytes)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindBootstrap, "predict:new-service", "failed to create predict service", err)
	}
	if err := predictService.Register(ctx, httpRouter.API); err != nil {
		return nil, err
	}

	systemService := httpsystem.NewService(httpsystem.Options{
		Logger:     a.Logger,
		Stats:      a.state.stats,
		Configured: a.state.relay.Configured,
		StartedAt:  a.startedAt,
	})
	if err := systemService.Register(ctx, router); err != nil {
		return nil, err
	}

	router.GET("/openapi.json", func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			a.Logger.ErrorTag("HTTP", "生成 OpenAPI 文档失败: %v", err)
			httptransport.RespondError(c, http.StatusInternalServerError, "failed to generate openapi document", nil)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	})

	router.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(scalarHTML))
	})

	return router, nil
}

func startHTTPServer(app *Application, listener net.Listener, g *errgroup.Group, groupCtx context.Context) {
	logger := app.Logger
	httpServer := &http.Server{
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	timeout := shutdownTimeout(app.Config.Server)

	g.Go(func() error {
		logger.InfoTag("HTTP", "Gin 服务已启动，监听地址 %s", listener.Addr())
		logger.InfoTag("HTTP", "预测接口: POST http://%s/api/predict", listener.Addr())
		logger.InfoTag("HTTP", "在线文档入口: http://%s/docs", listener.Addr())

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP 服务关闭失败: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP 服务已优雅关闭")
			}
		}()

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP 服务启动失败: %v", err)
			return err
		}
		return nil
	})
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
	timeout time.Duration,
) error {
	<-ctx.Done()
	logger.InfoTag("引导", "收到停止信号 %v，正在进行资源清理", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	// 留出比 HTTP Shutdown 更长的等待时间
	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("引导", "服务关闭过程中出现错误: %v", err)
			return err
		}
		logger.InfoTag("引导", "所有服务已成功关闭")
	case <-time.After(timeout + 5*time.Second):
		logger.ErrorTag("引导", "服务关闭超时，已强制退出")
		return platformerrors.New(platformerrors.KindBootstrap, "shutdown", "graceful shutdown timed out")
	}
	return nil
}
