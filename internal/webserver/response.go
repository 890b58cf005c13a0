package webserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/wagate/internal/errs"
	"go.uber.org/zap"
)

// Response is the envelope of every API answer.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
	Detail  interface{} `json:"detail,omitempty"`
}

func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	resp := Response{Code: "INTERNAL_ERROR", Error: "Internal server error"}
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		resp.Code = "HTTP_ERROR"
		resp.Error = http.StatusText(he.Code)
		if status == http.StatusNotFound {
			resp.Code = "NOT_FOUND"
			resp.Error = "Endpoint not found"
		}
	} else {
		kind := errs.KindOf(err)
		status = kind.HTTPStatus()
		resp.Code = kind.String()
		resp.Error = err.Error()
	}
	if status >= http.StatusInternalServerError {
		zap.L().Error("webserver: request failed",
			zap.String("path", c.Request().URL.Path), zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, resp)
	}
	if err != nil {
		zap.L().Warn("webserver: write error response", zap.Error(err))
	}
}
