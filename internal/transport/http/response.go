package httptransport

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

const (
	contentTypeJSON  = "application/json"
	contentTypePlain = "text/plain; charset=utf-8"
)

// APIResponse 定义统一的接口返回结构体
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

// RespondSuccess 返回成功响应
func RespondSuccess(c *gin.Context, httpStatus int, data interface{}, message string) {
	if message == "" {
		message = "ok"
	}
	RespondJSON(c, httpStatus, APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// RespondError 返回失败响应
func RespondError(c *gin.Context, httpStatus int, message string, data interface{}) {
	RespondJSON(c, httpStatus, APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// RespondJSON 使用 sonic 编码并写出 application/json 响应
func RespondJSON(c *gin.Context, httpStatus int, payload interface{}) {
	body, err := sonic.Marshal(payload)
	if err != nil {
		_ = c.Error(err)
		RespondText(c, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	c.Data(httpStatus, contentTypeJSON, body)
}

// RespondText 写出纯文本响应
func RespondText(c *gin.Context, httpStatus int, message string) {
	c.Data(httpStatus, contentTypePlain, []byte(message))
}
