package webserver

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/talkincode/wagate/internal/app"
	"go.uber.org/zap"
)

const appContextKey = "appctx"

// WebServer hosts the HTTP API under /api and the metrics endpoint.
type WebServer struct {
	root   *echo.Echo
	api    *echo.Group
	appCtx app.AppContext
}

var server *WebServer

// request metrics register on the default registry once per process
var prometheusMiddleware = sync.OnceValue(func() echo.MiddlewareFunc {
	return echoprometheus.NewMiddleware("wagate")
})

// Init creates the process-wide server. Routes registered through ApiGET and
// friends attach to it.
func Init(appCtx app.AppContext) {
	server = NewWebServer(appCtx)
}

func NewWebServer(appCtx app.AppContext) *WebServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(prometheusMiddleware())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.L().Info("webserver: request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(appContextKey, appCtx)
			return next(c)
		}
	})

	e.GET("/metrics", echoprometheus.NewHandler())

	return &WebServer{root: e, api: e.Group("/api"), appCtx: appCtx}
}

// GetAppContext returns the application context attached to the request.
func GetAppContext(c echo.Context) app.AppContext {
	appCtx, _ := c.Get(appContextKey).(app.AppContext)
	return appCtx
}

func ApiGET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.GET(path, h, m...)
}

func ApiPOST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.POST(path, h, m...)
}

func ApiPUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.PUT(path, h, m...)
}

func ApiDELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) {
	server.api.DELETE(path, h, m...)
}

// Handler exposes the router, mainly for tests.
func Handler() http.Handler {
	return server.root
}

// Start serves until Shutdown is called.
func Start() error {
	cfg := server.appCtx.Config().Web
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	zap.L().Info("webserver: listening", zap.String("addr", addr))
	if err := server.root.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "listen %s", addr)
	}
	return nil
}

func Shutdown(ctx context.Context) error {
	return server.root.Shutdown(ctx)
}
