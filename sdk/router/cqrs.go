package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/bus"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/processor"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/restapi"
)

// CQRSRouter 命令/请求/事件入站HTTP端点
//
// 状态码约定：
//   - 2xx  命令被接受（202）或已同步提交（200）
//   - 422  领域校验拒绝
//   - 500  致命配置/数据错误（未注册类型、缺少处理器）
//   - 503  基础设施故障（重试耗尽）
type CQRSRouter struct {
	restapi.RestApi
	Manager  *processor.Manager
	Requests *bus.RequestBus

	// EventHandlers 入站事件的派发目标，按聚合名分组
	EventHandlers map[string][]bus.EventHandler
}

// statusFor 错误到HTTP状态码的映射
func statusFor(err error) int {
	switch {
	case cqrs.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case cqrs.IsFatal(err):
		return http.StatusInternalServerError
	default:
		return http.StatusServiceUnavailable
	}
}

// Register 注册全部CQRS路由
func (r *CQRSRouter) Register(engine *gin.Engine, aggregateNames []string) {
	engine.POST("/Command/Publish", r.PublishCommand)
	engine.POST("/Command/Submit", r.SubmitCommand)
	engine.POST("/Request/Submit", r.SubmitRequest)
	engine.POST("/Request/Publish", r.SubmitRequest)

	for _, name := range aggregateNames {
		engine.POST(fmt.Sprintf("/handle-%s-events", name), r.handleEvents(name))
	}
}

// PublishCommand 提交命令（fire-and-forget：接受即返回，不携带结果）
func (r *CQRSRouter) PublishCommand(c *gin.Context) {
	state, ok := r.bindCommand(c)
	if !ok {
		return
	}
	if _, err := r.Manager.Process(c.Request.Context(), state); err != nil {
		r.Error(c, statusFor(err), err, "command rejected")
		return
	}
	r.Accepted(c, "command accepted")
}

// SubmitCommand 提交命令并返回本次提交的事件描述
func (r *CQRSRouter) SubmitCommand(c *gin.Context) {
	state, ok := r.bindCommand(c)
	if !ok {
		return
	}
	events, err := r.Manager.Process(c.Request.Context(), state)
	if err != nil {
		r.Error(c, statusFor(err), err, "command rejected")
		return
	}

	type eventRef struct {
		MessageType  string `json:"messageType"`
		EventVersion int64  `json:"eventVersion"`
		MessageID    string `json:"messageId"`
	}
	refs := make([]eventRef, 0, len(events))
	for _, es := range events {
		refs = append(refs, eventRef{
			MessageType:  es.MessageType,
			EventVersion: es.EventVersion,
			MessageID:    es.Metadata.MessageID,
		})
	}
	r.OK(c, gin.H{"events": refs}, "command committed")
}

func (r *CQRSRouter) bindCommand(c *gin.Context) (*cqrs.CommandState, bool) {
	var state cqrs.CommandState
	if err := c.ShouldBindJSON(&state); err != nil {
		r.Error(c, http.StatusBadRequest, err, "malformed command state")
		return nil, false
	}
	return &state, true
}

// SubmitRequest 同步请求：处理完成后返回响应体
func (r *CQRSRouter) SubmitRequest(c *gin.Context) {
	var state cqrs.RequestState
	if err := c.ShouldBindJSON(&state); err != nil {
		r.Error(c, http.StatusBadRequest, err, "malformed request state")
		return
	}
	resp, err := r.Requests.SubmitState(c.Request.Context(), &state)
	if err != nil {
		r.Error(c, statusFor(err), err, "request failed")
		return
	}
	r.OK(c, resp, "request handled")
}

// handleEvents 入站事件投递端点（其他服务推送的聚合事件）
func (r *CQRSRouter) handleEvents(aggregateName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var state cqrs.EventState
		if err := c.ShouldBindJSON(&state); err != nil {
			r.Error(c, http.StatusBadRequest, err, "malformed event state")
			return
		}
		if state.AggregateName != aggregateName {
			r.Error(c, http.StatusBadRequest,
				fmt.Errorf("event aggregate %s does not match route %s", state.AggregateName, aggregateName),
				"aggregate mismatch")
			return
		}

		for _, handler := range r.EventHandlers[aggregateName] {
			if err := handler(c.Request.Context(), &state); err != nil {
				r.GetLogger(c).Error("inbound event handler failed",
					zap.String("aggregate", aggregateName),
					zap.String("messageType", state.MessageType),
					zap.Error(err))
				r.Error(c, statusFor(err), err, "event handling failed")
				return
			}
		}
		r.OK(c, nil, "event handled")
	}
}
