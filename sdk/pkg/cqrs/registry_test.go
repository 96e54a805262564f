package cqrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolvesByName(t *testing.T) {
	registry := newTestRegistry(t)

	cmd, err := registry.NewCommand("RegisterCustomer")
	require.NoError(t, err)
	assert.IsType(t, &registerCustomer{}, cmd)

	evt, err := registry.NewEvent("CustomerRegistered")
	require.NoError(t, err)
	assert.IsType(t, &customerRegistered{}, evt)

	agg, err := registry.NewAggregate("customer")
	require.NoError(t, err)
	assert.False(t, agg.IsInitialized())
}

func TestRegistryUnknownNameIsFatal(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.NewCommand("Missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMessageTypeNotFound)
	assert.True(t, IsFatal(err))

	_, err = registry.NewEvent("Missing")
	assert.ErrorIs(t, err, ErrMessageTypeNotFound)

	_, err = registry.NewAggregate("missing")
	assert.ErrorIs(t, err, ErrMessageTypeNotFound)
}

func TestRegistryDuplicateRegistrationPanics(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterEvent(func() Event { return &customerRegistered{} })

	assert.Panics(t, func() {
		registry.RegisterEvent(func() Event { return &customerRegistered{} })
	})
}

func TestRegistryNilFactoryPanics(t *testing.T) {
	registry := NewRegistry()
	assert.Panics(t, func() { registry.RegisterCommand(nil) })
	assert.Panics(t, func() { registry.RegisterEvent(func() Event { return nil }) })
}

type maintenanceScheduled struct {
	Window string `json:"window"`
}

func (n *maintenanceScheduled) MessageName() string { return "MaintenanceScheduled" }

func TestRegistryNotifications(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterNotification(func() Notification { return &maintenanceScheduled{} })

	n, err := registry.NewNotification("MaintenanceScheduled")
	require.NoError(t, err)
	assert.IsType(t, &maintenanceScheduled{}, n)

	decoded, err := registry.UnmarshalNotification("MaintenanceScheduled", []byte(`{"window":"02:00-03:00"}`))
	require.NoError(t, err)
	assert.Equal(t, "02:00-03:00", decoded.(*maintenanceScheduled).Window)

	_, err = registry.NewNotification("Missing")
	assert.ErrorIs(t, err, ErrMessageTypeNotFound)

	assert.Panics(t, func() {
		registry.RegisterNotification(func() Notification { return &maintenanceScheduled{} })
	})
}

func TestRegistryAggregateNames(t *testing.T) {
	registry := newTestRegistry(t)
	assert.Equal(t, []string{"customer"}, registry.AggregateNames())
}

func TestHandlerRegistry(t *testing.T) {
	handlers := NewHandlerRegistry()
	require.NoError(t, handlers.Register("RegisterCustomer", &registerCustomerHandler{}))

	h, err := handlers.Resolve("RegisterCustomer")
	require.NoError(t, err)
	assert.NotNil(t, h)

	// 未注册是致命路由错误
	_, err = handlers.Resolve("Missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandlerNotFound)

	// nil处理器与未注册必须可区分
	err = handlers.Register("Other", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilHandler)

	// 重复注册被拒绝
	assert.Error(t, handlers.Register("RegisterCustomer", &registerCustomerHandler{}))
}
