package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/miroku/internal/apperr"
	"github.com/user/miroku/internal/logging"
)

// Response 统一API响应结构
type Response struct {
	Code    int         `json:"code"`    // 状态码
	Message string      `json:"message"` // 消息
	Data    interface{} `json:"data"`    // 数据
	Success bool        `json:"success"` // 是否成功
}

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
		Success: true,
	})
}

// Created 返回 201
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
		Success: true,
	})
}

// Error 返回错误响应
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    nil,
		Success: false,
	})
}

// BadRequest 返回400错误
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 返回401错误
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "未登录"
	}
	Error(c, http.StatusUnauthorized, message)
}

// InternalServerError 返回500错误
func InternalServerError(c *gin.Context, message string) {
	if message == "" {
		message = "服务器内部错误"
	}
	Error(c, http.StatusInternalServerError, message)
}

// NotFound 返回404错误
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "资源不存在"
	}
	Error(c, http.StatusNotFound, message)
}

// StatusFor 业务错误类别对应的 HTTP 状态码
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalidArgument:
		return http.StatusBadRequest
	case apperr.KindUpstreamUnavailable:
		return http.StatusBadGateway
	case apperr.KindPartialFailure:
		return http.StatusMultiStatus
	}
	return http.StatusInternalServerError
}

// Fail 把业务错误写成响应；未知错误记录日志并返回通用 500
func Fail(c *gin.Context, err error) {
	status := StatusFor(err)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		logging.Error().Err(err).Str("path", c.Request.URL.Path).Msg("请求处理失败")
		InternalServerError(c, "")
		return
	}

	if appErr.Kind == apperr.KindUpstreamUnavailable {
		logging.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("外部目录服务不可用")
		Error(c, status, "外部目录服务暂时不可用")
		return
	}

	c.JSON(status, Response{
		Code:    status,
		Message: appErr.Message,
		Data:    gin.H{"kind": appErr.Kind, "errors": appErr.Items},
		Success: false,
	})
}

// MultiStatus 部分成功：返回 207，data 中同时带结果与失败条目
func MultiStatus(c *gin.Context, result interface{}, err error) {
	c.JSON(http.StatusMultiStatus, Response{
		Code:    http.StatusMultiStatus,
		Message: err.Error(),
		Data:    gin.H{"result": result, "errors": apperr.ItemsOf(err)},
		Success: false,
	})
}
