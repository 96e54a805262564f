package processor

import (
	"context"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
)

// 测试夹具：account 聚合及其命令/事件/处理器

type openAccount struct {
	PartitionID string `json:"partitionId" validate:"required"`
	ID          string `json:"id" validate:"required"`
	Owner       string `json:"owner" validate:"required"`
}

func (c *openAccount) MessageName() string { return "OpenAccount" }
func (c *openAccount) TargetAggregateID() cqrs.AggregateID {
	return cqrs.AggregateID{PartitionID: c.PartitionID, ID: c.ID}
}
func (c *openAccount) TargetAggregateName() string { return "account" }

type depositMoney struct {
	PartitionID string `json:"partitionId" validate:"required"`
	ID          string `json:"id" validate:"required"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
}

func (c *depositMoney) MessageName() string { return "DepositMoney" }
func (c *depositMoney) TargetAggregateID() cqrs.AggregateID {
	return cqrs.AggregateID{PartitionID: c.PartitionID, ID: c.ID}
}
func (c *depositMoney) TargetAggregateName() string { return "account" }

// touchAccount 被接受但不产生任何事件的命令
type touchAccount struct {
	PartitionID string `json:"partitionId" validate:"required"`
	ID          string `json:"id" validate:"required"`
}

func (c *touchAccount) MessageName() string { return "TouchAccount" }
func (c *touchAccount) TargetAggregateID() cqrs.AggregateID {
	return cqrs.AggregateID{PartitionID: c.PartitionID, ID: c.ID}
}
func (c *touchAccount) TargetAggregateName() string { return "account" }

type accountOpened struct {
	PartitionID string `json:"partitionId"`
	ID          string `json:"id"`
	Owner       string `json:"owner"`
}

func (e *accountOpened) MessageName() string { return "AccountOpened" }
func (e *accountOpened) DefaultAggregateID() cqrs.AggregateID {
	return cqrs.AggregateID{PartitionID: e.PartitionID, ID: e.ID}
}
func (e *accountOpened) DefaultAggregateName() string { return "account" }

type moneyDeposited struct {
	PartitionID string `json:"partitionId"`
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
}

func (e *moneyDeposited) MessageName() string { return "MoneyDeposited" }
func (e *moneyDeposited) DefaultAggregateID() cqrs.AggregateID {
	return cqrs.AggregateID{PartitionID: e.PartitionID, ID: e.ID}
}
func (e *moneyDeposited) DefaultAggregateName() string { return "account" }

type account struct {
	AggID       cqrs.AggregateID `json:"aggId"`
	Owner       string           `json:"owner"`
	Balance     int64            `json:"balance"`
	Initialized bool             `json:"initialized"`
}

func (a *account) Identity() cqrs.AggregateID { return a.AggID }
func (a *account) AggregateName() string      { return "account" }
func (a *account) IsInitialized() bool        { return a.Initialized }

func (a *account) Apply(event cqrs.Event) (cqrs.Aggregate, []cqrs.Event, error) {
	switch e := event.(type) {
	case *accountOpened:
		return &account{
			AggID:       cqrs.AggregateID{PartitionID: e.PartitionID, ID: e.ID},
			Owner:       e.Owner,
			Initialized: true,
		}, nil, nil
	case *moneyDeposited:
		next := *a
		next.Balance += e.Amount
		return &next, nil, nil
	default:
		return nil, nil, cqrs.NewUnsupportedEventError(a.AggregateName(), event.MessageName())
	}
}

type openAccountHandler struct{}

func (h *openAccountHandler) Do(_ context.Context, cmd cqrs.Command, aggregate cqrs.Aggregate) ([]cqrs.Event, error) {
	c := cmd.(*openAccount)
	if aggregate != nil && aggregate.IsInitialized() {
		return nil, cqrs.NewValidationError("id", "account already open")
	}
	return []cqrs.Event{&accountOpened{PartitionID: c.PartitionID, ID: c.ID, Owner: c.Owner}}, nil
}

func (h *openAccountHandler) Undo(context.Context, cqrs.Command, cqrs.Aggregate) ([]cqrs.Event, error) {
	return nil, cqrs.ErrNotCompensable
}

type depositMoneyHandler struct{}

func (h *depositMoneyHandler) Do(_ context.Context, cmd cqrs.Command, aggregate cqrs.Aggregate) ([]cqrs.Event, error) {
	c := cmd.(*depositMoney)
	if aggregate == nil || !aggregate.IsInitialized() {
		return nil, cqrs.NewValidationError("id", "account not open")
	}
	return []cqrs.Event{&moneyDeposited{PartitionID: c.PartitionID, ID: c.ID, Amount: c.Amount}}, nil
}

func (h *depositMoneyHandler) Undo(context.Context, cqrs.Command, cqrs.Aggregate) ([]cqrs.Event, error) {
	return nil, cqrs.ErrNotCompensable
}

type touchAccountHandler struct{}

func (h *touchAccountHandler) Do(context.Context, cqrs.Command, cqrs.Aggregate) ([]cqrs.Event, error) {
	return nil, nil
}

func (h *touchAccountHandler) Undo(context.Context, cqrs.Command, cqrs.Aggregate) ([]cqrs.Event, error) {
	return nil, cqrs.ErrNotCompensable
}

func newTestRegistry() *cqrs.Registry {
	r := cqrs.NewRegistry()
	r.RegisterCommand(func() cqrs.Command { return &openAccount{} })
	r.RegisterCommand(func() cqrs.Command { return &depositMoney{} })
	r.RegisterCommand(func() cqrs.Command { return &touchAccount{} })
	r.RegisterEvent(func() cqrs.Event { return &accountOpened{} })
	r.RegisterEvent(func() cqrs.Event { return &moneyDeposited{} })
	r.RegisterAggregate(func() cqrs.Aggregate { return &account{} })
	return r
}

func newTestHandlers() *cqrs.HandlerRegistry {
	h := cqrs.NewHandlerRegistry()
	h.MustRegister("OpenAccount", &openAccountHandler{})
	h.MustRegister("DepositMoney", &depositMoneyHandler{})
	h.MustRegister("TouchAccount", &touchAccountHandler{})
	return h
}
