// Package handler 提供 HTTP 请求处理器
// 解析请求参数，调用服务层，并把业务错误映射为统一响应
package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"scratch-edu-server/internal/service"
	"scratch-edu-server/pkg/response"
)

// handleServiceError 把服务层错误映射为 HTTP 响应
// 无法识别的错误按服务器内部错误处理，使用 fallback 作为提示
func handleServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrUserExists):
		response.ErrorWithCode(c, 409, response.CodeUserExists, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.ErrorWithCode(c, 404, response.CodeUserNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrAIUnavailable):
		response.AIUnavailable(c, "AI 服务暂不可用，请稍后重试或改用手动录入")
	default:
		response.InternalError(c, fallback)
	}
}
