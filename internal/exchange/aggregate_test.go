package exchange

import (
	"testing"

	"koon/pkg/types"

	"github.com/stretchr/testify/assert"
)

func TestReduce(t *testing.T) {
	cases := []struct {
		name     string
		statuses []types.ItemStatus
		want     types.AggregateStatus
	}{
		{"no items", nil, types.AggregateStatusApproved},
		{"all pending", []types.ItemStatus{types.ItemStatusPending}, types.AggregateStatusApproved},
		{"all approved", []types.ItemStatus{types.ItemStatusApproved, types.ItemStatusApproved}, types.AggregateStatusApproved},
		{"one open item holds the record back", []types.ItemStatus{types.ItemStatusReserved, types.ItemStatusPending}, types.AggregateStatusApproved},
		{"all reserved", []types.ItemStatus{types.ItemStatusReserved, types.ItemStatusReserved}, types.AggregateStatusReserved},
		{"reserved and completed", []types.ItemStatus{types.ItemStatusReserved, types.ItemStatusCompleted}, types.AggregateStatusReserved},
		{"all completed", []types.ItemStatus{types.ItemStatusCompleted}, types.AggregateStatusReserved},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items := make([]types.MaterialItem, 0, len(tc.statuses))
			for _, s := range tc.statuses {
				items = append(items, types.MaterialItem{Name: "x", Status: s})
			}
			assert.Equal(t, tc.want, Reduce(items))
		})
	}
}
