package models

import "testing"

func TestAllocationStatusTransitions(t *testing.T) {
	cases := []struct {
		from    AllocationStatus
		to      AllocationStatus
		allowed bool
	}{
		{AllocationStatusPending, AllocationStatusAllocated, true},
		{AllocationStatusPending, AllocationStatusCancelled, true},
		{AllocationStatusPending, AllocationStatusIssued, false},
		{AllocationStatusPending, AllocationStatusAdministered, false},
		{AllocationStatusAllocated, AllocationStatusIssued, true},
		{AllocationStatusAllocated, AllocationStatusCancelled, true},
		{AllocationStatusAllocated, AllocationStatusPending, false},
		{AllocationStatusIssued, AllocationStatusAdministered, true},
		{AllocationStatusIssued, AllocationStatusCancelled, false},
		{AllocationStatusAdministered, AllocationStatusCancelled, false},
		{AllocationStatusAdministered, AllocationStatusAllocated, false},
		{AllocationStatusCancelled, AllocationStatusAllocated, true},
		{AllocationStatusCancelled, AllocationStatusPending, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.allowed {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestAllocationStatusSelfTransitionRejected(t *testing.T) {
	for status := range allocationEdges {
		if status.CanTransitionTo(status) {
			t.Errorf("%s -> %s should be rejected", status, status)
		}
	}
}

func TestMovementTypeValid(t *testing.T) {
	for _, typ := range []MovementType{MovementTypeIn, MovementTypeOut, MovementTypeAdjust} {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if MovementType("transfer").Valid() {
		t.Error("unknown movement type should be invalid")
	}
}

func TestStockMovementSignedDelta(t *testing.T) {
	cases := []struct {
		movement StockMovement
		want     int
	}{
		{StockMovement{Type: MovementTypeIn, Quantity: 100}, 100},
		{StockMovement{Type: MovementTypeOut, Quantity: 40}, -40},
		{StockMovement{Type: MovementTypeAdjust, Quantity: -7}, -7},
		{StockMovement{Type: MovementTypeAdjust, Quantity: 12}, 12},
		{StockMovement{Type: MovementType("bogus"), Quantity: 5}, 0},
	}
	for _, c := range cases {
		if got := c.movement.SignedDelta(); got != c.want {
			t.Errorf("%s %d: got %d, want %d", c.movement.Type, c.movement.Quantity, got, c.want)
		}
	}
}

func TestDisbursementStatusValid(t *testing.T) {
	for _, s := range []DisbursementStatus{DisbursementStatusPaid, DisbursementStatusApproved, DisbursementStatusCancelled} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if DisbursementStatus("").Valid() {
		t.Error("empty status should be invalid")
	}
}
