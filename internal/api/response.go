package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/easeaico/npc-town/internal/apperr"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusOf maps an error kind onto an HTTP status.
func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error","code"}. Untyped errors become 500
// with a generic message.
func respondError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{
			Error: "服务器内部错误",
			Code:  "INTERNAL_ERROR",
		})
		return
	}

	status := statusOf(appErr.Kind)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: appErr.Message, Code: appErr.Code()})
}

func badRequest(c *gin.Context, format string, args ...any) {
	respondError(c, apperr.Validation(format, args...))
}
