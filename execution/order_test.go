package execution

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{Submitted, Accepted, true},
		{Submitted, Rejected, true},
		{Submitted, Filled, false},
		{Accepted, PartiallyFilled, true},
		{Accepted, Filled, true},
		{Accepted, Cancelled, true},
		{Accepted, Expired, true},
		{Accepted, Rejected, false},
		{PartiallyFilled, PartiallyFilled, true},
		{PartiallyFilled, Filled, true},
		{PartiallyFilled, Cancelled, true},
		{Filled, Cancelled, false},
		{Rejected, Accepted, false},
		{Cancelled, Filled, false},
		{Expired, Accepted, false},
	}
	for _, tc := range cases {
		err := transition(tc.from, tc.to)
		if tc.ok {
			assert.NoError(t, err, "%s -> %s", tc.from, tc.to)
		} else {
			assert.ErrorIs(t, err, ErrInvalidStateTransition, "%s -> %s", tc.from, tc.to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{Rejected, Filled, Cancelled, Expired} {
		assert.True(t, s.Terminal(), s.String())
	}
	for _, s := range []Status{Submitted, Accepted, PartiallyFilled} {
		assert.False(t, s.Terminal(), s.String())
	}
}

func TestApplyFillWeightedAverage(t *testing.T) {
	now := time.Now()
	o := &Order{
		ID:       "O-000001",
		Symbol:   "EUR_USD",
		Side:     Buy,
		Type:     Limit,
		Quantity: d("1000"),
		Status:   Accepted,
	}

	require.NoError(t, o.applyFill(Fill{
		Quantity: d("400"), Price: d("1.10000"), Time: now,
	}))
	assert.Equal(t, PartiallyFilled, o.Status)
	assert.True(t, o.FilledQty.Equal(d("400")))
	assert.True(t, o.Remaining().Equal(d("600")))

	require.NoError(t, o.applyFill(Fill{
		Quantity: d("600"), Price: d("1.10100"), Time: now.Add(time.Second),
	}))
	assert.Equal(t, Filled, o.Status)
	assert.True(t, o.Remaining().IsZero())
	// (400*1.10000 + 600*1.10100) / 1000
	assert.True(t, o.AvgFillPrice.Equal(d("1.1006")), "avg %s", o.AvgFillPrice)
	assert.Equal(t, now.Add(time.Second), o.ClosedAt)
	assert.Len(t, o.Fills, 2)
}

func TestApplyFillOnTerminalOrderFails(t *testing.T) {
	o := &Order{Quantity: d("100"), Status: Cancelled}
	err := o.applyFill(Fill{Quantity: d("100"), Price: d("1.1")})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestSideHelpers(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
	assert.True(t, Buy.Sign().Equal(d("1")))
	assert.True(t, Sell.Sign().Equal(d("-1")))
}
