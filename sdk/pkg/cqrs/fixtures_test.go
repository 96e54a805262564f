package cqrs

import "context"

// 测试夹具：customer 聚合及其命令/事件

type registerCustomer struct {
	PartitionID string `json:"partitionId" validate:"required"`
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
}

func (c *registerCustomer) MessageName() string { return "RegisterCustomer" }
func (c *registerCustomer) TargetAggregateID() AggregateID {
	return AggregateID{PartitionID: c.PartitionID, ID: c.ID}
}
func (c *registerCustomer) TargetAggregateName() string { return "customer" }

type customerRegistered struct {
	PartitionID string `json:"partitionId"`
	ID          string `json:"id"`
	Name        string `json:"name"`
}

func (e *customerRegistered) MessageName() string { return "CustomerRegistered" }
func (e *customerRegistered) DefaultAggregateID() AggregateID {
	return AggregateID{PartitionID: e.PartitionID, ID: e.ID}
}
func (e *customerRegistered) DefaultAggregateName() string { return "customer" }

type customerRenamed struct {
	PartitionID string `json:"partitionId"`
	ID          string `json:"id"`
	NewName     string `json:"newName"`
}

func (e *customerRenamed) MessageName() string { return "CustomerRenamed" }
func (e *customerRenamed) DefaultAggregateID() AggregateID {
	return AggregateID{PartitionID: e.PartitionID, ID: e.ID}
}
func (e *customerRenamed) DefaultAggregateName() string { return "customer" }

type customer struct {
	AggID       AggregateID `json:"aggId"`
	Name        string      `json:"name"`
	Initialized bool        `json:"initialized"`
}

func (c *customer) Identity() AggregateID { return c.AggID }
func (c *customer) AggregateName() string { return "customer" }
func (c *customer) IsInitialized() bool   { return c.Initialized }

func (c *customer) Apply(event Event) (Aggregate, []Event, error) {
	switch e := event.(type) {
	case *customerRegistered:
		return &customer{
			AggID:       AggregateID{PartitionID: e.PartitionID, ID: e.ID},
			Name:        e.Name,
			Initialized: true,
		}, nil, nil
	case *customerRenamed:
		next := *c
		next.Name = e.NewName
		return &next, nil, nil
	default:
		return nil, nil, NewUnsupportedEventError(c.AggregateName(), event.MessageName())
	}
}

type registerCustomerHandler struct{}

func (h *registerCustomerHandler) Do(_ context.Context, cmd Command, aggregate Aggregate) ([]Event, error) {
	c := cmd.(*registerCustomer)
	if aggregate != nil && aggregate.IsInitialized() {
		return nil, NewValidationError("id", "customer already registered")
	}
	return []Event{&customerRegistered{PartitionID: c.PartitionID, ID: c.ID, Name: c.Name}}, nil
}

func (h *registerCustomerHandler) Undo(context.Context, Command, Aggregate) ([]Event, error) {
	return nil, ErrNotCompensable
}
