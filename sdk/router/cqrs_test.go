package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/bus"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/processor"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/resiliency"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/store"
)

// 测试夹具：ticket 聚合

type createTicket struct {
	PartitionID string `json:"partitionId" validate:"required"`
	ID          string `json:"id" validate:"required"`
	Subject     string `json:"subject" validate:"required"`
}

func (c *createTicket) MessageName() string { return "CreateTicket" }
func (c *createTicket) TargetAggregateID() cqrs.AggregateID {
	return cqrs.AggregateID{PartitionID: c.PartitionID, ID: c.ID}
}
func (c *createTicket) TargetAggregateName() string { return "ticket" }

type ticketCreated struct {
	PartitionID string `json:"partitionId"`
	ID          string `json:"id"`
	Subject     string `json:"subject"`
}

func (e *ticketCreated) MessageName() string { return "TicketCreated" }
func (e *ticketCreated) DefaultAggregateID() cqrs.AggregateID {
	return cqrs.AggregateID{PartitionID: e.PartitionID, ID: e.ID}
}
func (e *ticketCreated) DefaultAggregateName() string { return "ticket" }

type ticket struct {
	AggID       cqrs.AggregateID `json:"aggId"`
	Subject     string           `json:"subject"`
	Initialized bool             `json:"initialized"`
}

func (a *ticket) Identity() cqrs.AggregateID { return a.AggID }
func (a *ticket) AggregateName() string      { return "ticket" }
func (a *ticket) IsInitialized() bool        { return a.Initialized }
func (a *ticket) Apply(event cqrs.Event) (cqrs.Aggregate, []cqrs.Event, error) {
	switch e := event.(type) {
	case *ticketCreated:
		return &ticket{
			AggID:       cqrs.AggregateID{PartitionID: e.PartitionID, ID: e.ID},
			Subject:     e.Subject,
			Initialized: true,
		}, nil, nil
	default:
		return nil, nil, cqrs.NewUnsupportedEventError(a.AggregateName(), event.MessageName())
	}
}

type createTicketHandler struct{}

func (h *createTicketHandler) Do(_ context.Context, cmd cqrs.Command, aggregate cqrs.Aggregate) ([]cqrs.Event, error) {
	c := cmd.(*createTicket)
	if aggregate != nil && aggregate.IsInitialized() {
		return nil, cqrs.NewValidationError("id", "ticket already exists")
	}
	return []cqrs.Event{&ticketCreated{PartitionID: c.PartitionID, ID: c.ID, Subject: c.Subject}}, nil
}

func (h *createTicketHandler) Undo(context.Context, cqrs.Command, cqrs.Aggregate) ([]cqrs.Event, error) {
	return nil, cqrs.ErrNotCompensable
}

type echoRequest struct {
	Text string `json:"text"`
}

func (r *echoRequest) MessageName() string { return "EchoRequest" }

type routerEnv struct {
	engine *gin.Engine

	mu      sync.Mutex
	inbound []*cqrs.EventState
}

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := cqrs.NewRegistry()
	registry.RegisterCommand(func() cqrs.Command { return &createTicket{} })
	registry.RegisterEvent(func() cqrs.Event { return &ticketCreated{} })
	registry.RegisterRequest(func() cqrs.Request { return &echoRequest{} })
	registry.RegisterAggregate(func() cqrs.Aggregate { return &ticket{} })

	handlers := cqrs.NewHandlerRegistry()
	handlers.MustRegister("CreateTicket", &createTicketHandler{})

	manager, err := processor.NewManager(processor.ManagerConfig{}, processor.Dependencies{
		Registry:      registry,
		Handlers:      handlers,
		EventStore:    store.NewMemoryEventStore(),
		SnapshotStore: store.NewMemorySnapshotStore(),
		Policy:        resiliency.Policy{MaxAttempts: 1},
	})
	require.NoError(t, err)
	t.Cleanup(manager.Stop)

	requests := bus.NewRequestBus(registry)
	requests.MustRegister("EchoRequest", cqrs.RequestHandlerFunc(
		func(ctx context.Context, req cqrs.Request, md cqrs.Metadata) (interface{}, error) {
			return req.(*echoRequest).Text, nil
		}))

	env := &routerEnv{}
	cqrsRouter := &CQRSRouter{
		Manager:  manager,
		Requests: requests,
		EventHandlers: map[string][]bus.EventHandler{
			"ticket": {func(ctx context.Context, state *cqrs.EventState) error {
				env.mu.Lock()
				env.inbound = append(env.inbound, state)
				env.mu.Unlock()
				return nil
			}},
		},
	}

	engine := InitRouter("test", prometheus.NewRegistry())
	cqrsRouter.Register(engine, registry.AggregateNames())
	env.engine = engine
	return env
}

func (e *routerEnv) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func ticketCommandState(t *testing.T, id string) *cqrs.CommandState {
	t.Helper()
	cs, err := cqrs.NewCommandState(
		&createTicket{PartitionID: "p1", ID: id, Subject: "printer on fire"},
		cqrs.NewMetadata("tester"))
	require.NoError(t, err)
	return cs
}

func TestCommandPublish_Accepted(t *testing.T) {
	env := newRouterEnv(t)
	w := env.post(t, "/Command/Publish", ticketCommandState(t, "t1"))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestCommandSubmit_ReturnsEventRefs(t *testing.T) {
	env := newRouterEnv(t)
	w := env.post(t, "/Command/Submit", ticketCommandState(t, "t2"))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Events []struct {
				MessageType  string `json:"messageType"`
				EventVersion int64  `json:"eventVersion"`
			} `json:"events"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Events, 1)
	assert.Equal(t, "TicketCreated", resp.Data.Events[0].MessageType)
	assert.Equal(t, int64(1), resp.Data.Events[0].EventVersion)
}

// 领域拒绝 → 422，基础设施与致命错误有各自的状态码
func TestCommandSubmit_StatusMapping(t *testing.T) {
	env := newRouterEnv(t)

	// 重复创建被领域校验拒绝
	w := env.post(t, "/Command/Submit", ticketCommandState(t, "t3"))
	require.Equal(t, http.StatusOK, w.Code)
	w = env.post(t, "/Command/Submit", ticketCommandState(t, "t3"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// 未注册的命令类型是致命配置错误
	cs := ticketCommandState(t, "t4")
	cs.MessageType = "NoSuchCommand"
	w = env.post(t, "/Command/Submit", cs)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// 编码错误的请求体
	req := httptest.NewRequest(http.MethodPost, "/Command/Submit", bytes.NewReader([]byte("{broken")))
	w2 := httptest.NewRecorder()
	env.engine.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusBadRequest, w2.Code)
}

func TestRequestSubmit(t *testing.T) {
	env := newRouterEnv(t)

	state := map[string]interface{}{
		"messageType": "EchoRequest",
		"message":     map[string]string{"text": "ping"},
		"metadata":    cqrs.NewMetadata("tester"),
	}
	w := env.post(t, "/Request/Submit", state)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ping")

	// 未注册处理器的请求 → 500
	state["messageType"] = "EchoRequest2"
	w = env.post(t, "/Request/Submit", state)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleAggregateEvents(t *testing.T) {
	env := newRouterEnv(t)

	md := cqrs.NewMetadata("tester")
	state, err := cqrs.NewEventState(
		&ticketCreated{PartitionID: "p1", ID: "t5", Subject: "hello"}, 1, md)
	require.NoError(t, err)

	w := env.post(t, "/handle-ticket-events", state)
	require.Equal(t, http.StatusOK, w.Code)

	env.mu.Lock()
	defer env.mu.Unlock()
	require.Len(t, env.inbound, 1)
	assert.Equal(t, "TicketCreated", env.inbound[0].MessageType)

	// 聚合名不匹配的投递被拒绝
	mismatch := *state
	mismatch.AggregateName = "other"
	w = env.post(t, "/handle-ticket-events", &mismatch)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	env := newRouterEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
