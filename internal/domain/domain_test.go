package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDueDate(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"mid month", time.Date(2025, 3, 17, 14, 30, 0, 0, time.UTC), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"first of month", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"december rolls year", time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(DueDate(tt.in)), "got %s", DueDate(tt.in))
		})
	}
}

func TestUnpaidTotal(t *testing.T) {
	ps := []Purchase{
		{Value: decimal.RequireFromString("10.50")},
		{Value: decimal.RequireFromString("4.25"), Paid: true},
		{Value: decimal.RequireFromString("0.25")},
	}
	assert.True(t, decimal.RequireFromString("10.75").Equal(UnpaidTotal(ps)))
	assert.True(t, decimal.RequireFromString("15").Equal(SumValues(ps)))
}

func TestLineItemTotal(t *testing.T) {
	li := LineItem{Quantity: 3, Price: decimal.RequireFromString("2.10")}
	assert.Equal(t, "6.3", li.Total().String())
}

func TestNormalizeLevel(t *testing.T) {
	assert.Equal(t, "CAP", NormalizeLevel("CAP"))
	assert.Equal(t, "SD", NormalizeLevel("GEN"))
	assert.Equal(t, "SD", NormalizeLevel(""))
	assert.False(t, ValidLevel("cap"))
}

func TestErrorWrapping(t *testing.T) {
	err := fmt.Errorf("partial payment: %w", Invalid("amount must be positive"))
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	cause := errors.New("connection reset")
	var se *StorageError
	wrapped := fmt.Errorf("clear debt: %w", &StorageError{Op: "mark paid", Err: cause})
	assert.True(t, errors.As(wrapped, &se))
	assert.Equal(t, "mark paid", se.Op)
	assert.True(t, errors.Is(wrapped, cause))

	assert.True(t, IsNotFound(fmt.Errorf("x: %w", ErrClientNotFound)))
	assert.False(t, IsNotFound(cause))
}
