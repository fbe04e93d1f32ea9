package models

// MovementType classifies a stock movement. `in` and `out` carry positive
// quantities; `adjust` carries a signed delta.
type MovementType string

const (
	MovementTypeIn     MovementType = "in"
	MovementTypeOut    MovementType = "out"
	MovementTypeAdjust MovementType = "adjust"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementTypeIn, MovementTypeOut, MovementTypeAdjust:
		return true
	}
	return false
}

// Movement reasons recorded on the ledger.
const (
	MovementReasonInitial      = "initial"
	MovementReasonManualAdjust = "manual_adjust"
	MovementReasonAllocation   = "allocation"
)

type AllocationStatus string

const (
	AllocationStatusPending      AllocationStatus = "pending"
	AllocationStatusAllocated    AllocationStatus = "allocated"
	AllocationStatusIssued       AllocationStatus = "issued"
	AllocationStatusAdministered AllocationStatus = "administered"
	AllocationStatusCancelled    AllocationStatus = "cancelled"
)

func (s AllocationStatus) Valid() bool {
	switch s {
	case AllocationStatusPending, AllocationStatusAllocated, AllocationStatusIssued,
		AllocationStatusAdministered, AllocationStatusCancelled:
		return true
	}
	return false
}

// allocationEdges is the complete legal transition set. `issued` and
// `administered` are terminal with respect to cancellation; a cancelled
// allocation may be re-approved back into `allocated`.
var allocationEdges = map[AllocationStatus][]AllocationStatus{
	AllocationStatusPending:   {AllocationStatusAllocated, AllocationStatusCancelled},
	AllocationStatusAllocated: {AllocationStatusIssued, AllocationStatusCancelled},
	AllocationStatusIssued:    {AllocationStatusAdministered},
	AllocationStatusCancelled: {AllocationStatusAllocated},
}

func (s AllocationStatus) CanTransitionTo(next AllocationStatus) bool {
	for _, edge := range allocationEdges[s] {
		if edge == next {
			return true
		}
	}
	return false
}

// DisbursementStatus is a free-form status field settable by officer/admin.
// No transition graph is enforced.
type DisbursementStatus string

const (
	DisbursementStatusPaid      DisbursementStatus = "paid"
	DisbursementStatusApproved  DisbursementStatus = "approved"
	DisbursementStatusCancelled DisbursementStatus = "cancelled"
)

func (s DisbursementStatus) Valid() bool {
	switch s {
	case DisbursementStatusPaid, DisbursementStatusApproved, DisbursementStatusCancelled:
		return true
	}
	return false
}
