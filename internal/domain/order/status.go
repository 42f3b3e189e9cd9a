package order

// Status represents the lifecycle status of a local order.
type Status string

const (
	// Pre-production and production stages.
	StatusOnHold     Status = "on_hold"
	StatusProcessing Status = "processing"

	// Shipping and terminal stages.
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"

	// Branch statuses. These sit outside the forward-only lifecycle and
	// may be entered from any stage.
	StatusCancelled        Status = "cancelled"
	StatusRefunded         Status = "refunded"
	StatusRefundRequested  Status = "refund_requested"
	StatusRefundApproved   Status = "refund_approved"
	StatusRefundDeclined   Status = "refund_declined"
	StatusReprintRequested Status = "reprint_requested"
	StatusReprintApproved  Status = "reprint_approved"
	StatusReprintDeclined  Status = "reprint_declined"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// stageRank orders the forward-only lifecycle. Branch statuses carry no rank.
var stageRank = map[Status]int{
	StatusOnHold:     1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusCompleted:  4,
}

// branchFlow defines the transitions allowed between branch statuses.
var branchFlow = map[Status][]Status{
	StatusRefundRequested:  {StatusRefundApproved, StatusRefundDeclined, StatusRefunded},
	StatusReprintRequested: {StatusReprintApproved, StatusReprintDeclined},
	StatusRefundApproved:   {StatusRefunded},
	// An approved reprint re-enters production.
	StatusReprintApproved: {StatusProcessing},
}

// IsValid returns true if the status is part of the known vocabulary.
func (s Status) IsValid() bool {
	if _, ok := stageRank[s]; ok {
		return true
	}
	return s.IsBranch()
}

// IsBranch returns true for cancellation, refund and reprint statuses.
func (s Status) IsBranch() bool {
	switch s {
	case StatusCancelled, StatusRefunded,
		StatusRefundRequested, StatusRefundApproved, StatusRefundDeclined,
		StatusReprintRequested, StatusReprintApproved, StatusReprintDeclined:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for statuses from which no further forward
// transition occurs.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRefunded,
		StatusRefundDeclined, StatusReprintDeclined:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a local order may move from one status to
// another. The lifecycle is forward-only: a later webhook reporting an
// earlier stage never regresses the order. Branch statuses (cancel, refund,
// reprint) are the explicit exception and may be entered from any
// non-terminal stage; movement between branch statuses follows branchFlow.
func CanTransition(from, to Status) bool {
	if from == to {
		return false
	}

	// Branch-to-branch and branch-to-stage transitions follow the
	// explicit branch flow only.
	if from.IsBranch() {
		for _, next := range branchFlow[from] {
			if next == to {
				return true
			}
		}
		return false
	}

	// Entering a branch is allowed from any non-terminal stage.
	if to.IsBranch() {
		return !from.IsTerminal()
	}

	fromRank, ok := stageRank[from]
	if !ok {
		return false
	}
	toRank, ok := stageRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}
