package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func twoItemOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder(uuid.New(), []OrderItem{
		{ProductID: uuid.New(), Name: "Product A", Quantity: 2, UnitPrice: 10},
		{ProductID: uuid.New(), Name: "Product B", Quantity: 1, UnitPrice: 5},
	}, "tester")
	assert.NoError(t, err)
	return o
}

func TestNewOrder_TotalEqualsSumOfSubtotals(t *testing.T) {
	o := twoItemOrder(t)

	assert.Equal(t, OrderPending, o.Status)
	assert.Equal(t, 25.0, o.TotalAmount)

	var sum float64
	for _, item := range o.Items {
		sum += item.Subtotal()
	}
	assert.Equal(t, sum, o.TotalAmount)
}

func TestNewOrder_Error_MissingCustomer(t *testing.T) {
	_, err := NewOrder(uuid.Nil, []OrderItem{
		{ProductID: uuid.New(), Name: "A", Quantity: 1, UnitPrice: 1},
	}, "tester")

	assert.Error(t, err)
}

func TestNewOrder_Error_NoItems(t *testing.T) {
	_, err := NewOrder(uuid.New(), nil, "tester")

	assert.Error(t, err)
}

func TestNewOrder_Error_NonPositiveQuantity(t *testing.T) {
	_, err := NewOrder(uuid.New(), []OrderItem{
		{ProductID: uuid.New(), Name: "A", Quantity: 0, UnitPrice: 1},
	}, "tester")

	assert.Error(t, err)
}

func TestNewOrder_Error_NegativePrice(t *testing.T) {
	_, err := NewOrder(uuid.New(), []OrderItem{
		{ProductID: uuid.New(), Name: "A", Quantity: 1, UnitPrice: -0.5},
	}, "tester")

	assert.Error(t, err)
}

func TestNewOrder_Error_DuplicateProduct(t *testing.T) {
	productID := uuid.New()
	_, err := NewOrder(uuid.New(), []OrderItem{
		{ProductID: productID, Name: "A", Quantity: 1, UnitPrice: 1},
		{ProductID: productID, Name: "A", Quantity: 2, UnitPrice: 1},
	}, "tester")

	assert.Error(t, err)
}

func TestOrder_Confirm(t *testing.T) {
	o := twoItemOrder(t)

	err := o.Confirm("tester")

	assert.NoError(t, err)
	assert.Equal(t, OrderConfirmed, o.Status)
}

func TestOrder_Confirm_Error_NotPending(t *testing.T) {
	o := twoItemOrder(t)
	assert.NoError(t, o.Confirm("tester"))

	err := o.Confirm("tester")

	assert.Error(t, err)
	assert.Equal(t, ErrInvalidTransition, err)
	assert.Equal(t, OrderConfirmed, o.Status)
}

func TestOrder_Cancel_FromPending(t *testing.T) {
	o := twoItemOrder(t)

	err := o.Cancel("changed my mind", "tester")

	assert.NoError(t, err)
	assert.Equal(t, OrderCancelled, o.Status)
	assert.Equal(t, OrderPending, o.PreviousStatus)
	assert.Equal(t, "changed my mind", o.CancelReason)
}

func TestOrder_Cancel_FromConfirmed(t *testing.T) {
	o := twoItemOrder(t)
	assert.NoError(t, o.Confirm("tester"))

	err := o.Cancel("customer request", "tester")

	assert.NoError(t, err)
	assert.Equal(t, OrderCancelled, o.Status)
	assert.Equal(t, OrderConfirmed, o.PreviousStatus)
	assert.Equal(t, "customer request", o.CancelReason)
}

func TestOrder_Cancel_Error_Fulfilled(t *testing.T) {
	o := twoItemOrder(t)
	assert.NoError(t, o.Confirm("tester"))
	assert.NoError(t, o.MarkFulfilled("tester"))

	err := o.Cancel("too late", "tester")

	assert.Error(t, err)
	assert.Equal(t, OrderFulfilled, o.Status)
}

func TestOrder_Cancel_Error_AlreadyCancelled(t *testing.T) {
	o := twoItemOrder(t)
	assert.NoError(t, o.Cancel("first", "tester"))

	err := o.Cancel("second", "tester")

	assert.Error(t, err)
	assert.Equal(t, "first", o.CancelReason)
}

func TestOrder_MarkFulfilled_Error_NotConfirmed(t *testing.T) {
	o := twoItemOrder(t)

	err := o.MarkFulfilled("tester")

	assert.Error(t, err)
	assert.Equal(t, OrderPending, o.Status)
}

func TestOrder_ValidateForConfirmation(t *testing.T) {
	o := twoItemOrder(t)
	result := o.ValidateForConfirmation()
	assert.True(t, result.Valid)
	assert.Empty(t, result.Violations)

	assert.NoError(t, o.Confirm("tester"))
	result = o.ValidateForConfirmation()
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Violations)
}

func TestOrder_ValidateForCancellation(t *testing.T) {
	o := twoItemOrder(t)
	assert.True(t, o.ValidateForCancellation().Valid)

	assert.NoError(t, o.Confirm("tester"))
	assert.True(t, o.ValidateForCancellation().Valid)

	assert.NoError(t, o.MarkFulfilled("tester"))
	result := o.ValidateForCancellation()
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Violations)
}
