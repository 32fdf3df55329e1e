package exchange

import "koon/pkg/types"

// Reduce recomputes a record's roll-up status from its items: reserved once
// every item is spoken for, approved while anything is still open. It runs
// inside the same transaction as the item mutation that triggered it, so
// the stored aggregate never lags its items.
func Reduce(items []types.MaterialItem) types.AggregateStatus {
	if len(items) == 0 {
		return types.AggregateStatusApproved
	}

	for _, item := range items {
		if !item.Status.Committed() {
			return types.AggregateStatusApproved
		}
	}

	return types.AggregateStatusReserved
}
