package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	RequestID string      `json:"requestId,omitempty"`
	Code      int         `json:"code"`
	Msg       string      `json:"msg,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Problem 失败响应（problem-details风格）
type Problem struct {
	RequestID string `json:"requestId,omitempty"`
	Status    int    `json:"status"`
	Title     string `json:"title"`
	Detail    string `json:"detail,omitempty"`
}

func requestID(c *gin.Context) string {
	return c.GetHeader("X-Request-Id")
}

// OK 通常成功数据处理
func OK(c *gin.Context, data interface{}, msg string) {
	c.JSON(http.StatusOK, Response{
		RequestID: requestID(c),
		Code:      http.StatusOK,
		Msg:       msg,
		Data:      data,
	})
}

// Accepted 已接受（fire-and-forget提交）
func Accepted(c *gin.Context, msg string) {
	c.JSON(http.StatusAccepted, Response{
		RequestID: requestID(c),
		Code:      http.StatusAccepted,
		Msg:       msg,
	})
}

// Error 通常错误数据处理
func Error(c *gin.Context, code int, err error, msg string) {
	p := Problem{
		RequestID: requestID(c),
		Status:    code,
		Title:     msg,
	}
	if err != nil {
		p.Detail = err.Error()
	}
	c.AbortWithStatusJSON(code, p)
}

// PageOK 分页数据处理
func PageOK(c *gin.Context, result interface{}, count int, pageIndex int, pageSize int, msg string) {
	OK(c, gin.H{
		"list":      result,
		"count":     count,
		"pageIndex": pageIndex,
		"pageSize":  pageSize,
	}, msg)
}
