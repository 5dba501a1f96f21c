package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStockQuantity(t *testing.T) {
	q, err := NewStockQuantity(10)

	assert.NoError(t, err)
	assert.Equal(t, 10, q.Value())
}

func TestNewStockQuantity_Error_Negative(t *testing.T) {
	_, err := NewStockQuantity(-1)

	assert.Error(t, err)
	assert.Equal(t, ErrNegativeQuantity, err)
}

func TestStockQuantity_Add(t *testing.T) {
	q := MustStockQuantity(10)

	result, err := q.Add(5)

	assert.NoError(t, err)
	assert.Equal(t, 15, result.Value())
	// Original value is untouched
	assert.Equal(t, 10, q.Value())
}

func TestStockQuantity_Subtract(t *testing.T) {
	q := MustStockQuantity(10)

	result, err := q.Subtract(4)

	assert.NoError(t, err)
	assert.Equal(t, 6, result.Value())
	assert.Equal(t, 10, q.Value())
}

func TestStockQuantity_Subtract_Error_WouldGoNegative(t *testing.T) {
	q := MustStockQuantity(3)

	_, err := q.Subtract(5)

	assert.Error(t, err)
	assert.Equal(t, ErrInsufficientStock, err)
	assert.Equal(t, 3, q.Value())
}

func TestStockQuantity_IsSufficient(t *testing.T) {
	q := MustStockQuantity(5)

	assert.True(t, q.IsSufficient(5))
	assert.True(t, q.IsSufficient(3))
	assert.False(t, q.IsSufficient(6))
}

func TestStockQuantity_IsZero(t *testing.T) {
	assert.True(t, MustStockQuantity(0).IsZero())
	assert.False(t, MustStockQuantity(1).IsZero())
}
