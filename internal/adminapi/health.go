package adminapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wagate/internal/webserver"
)

func registerHealthRoutes() {
	webserver.ApiGET("/health", getHealth)
}

// getHealth reports liveness and, when an application context is attached,
// database reachability.
func getHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	appCtx := webserver.GetAppContext(c)
	if appCtx == nil || appCtx.DB() == nil {
		return ok(c, resp)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	sqlDB, err := appCtx.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		resp["status"] = "degraded"
		resp["database"] = err.Error()
		return c.JSON(http.StatusServiceUnavailable, webserver.Response{Data: resp, Code: "DATABASE_UNAVAILABLE", Error: "database unreachable"})
	}
	resp["database"] = "ok"
	return ok(c, resp)
}
