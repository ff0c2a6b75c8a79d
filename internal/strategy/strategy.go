// Package strategy contains the controllers that coordinate multiple
// dependent orders: the OCO pair manager, the TWAP scheduler and the
// grid-level manager. Each submits through the orders.Submitter and
// reconciles results against its own plan state; none of them retries
// or monitors fills after placement.
package strategy

import "fmt"

// PartialFailureError signals that some but not all orders of a
// multi-order plan succeeded. The plan attached to the orchestrator's
// result always enumerates which legs/slices/levels succeeded so the
// user can reconcile manually.
type PartialFailureError struct {
	Strategy string
	// OrphanOrderID is the id of an order left resting without its
	// counterpart (OCO only)
	OrphanOrderID int64
	Err           error
}

func (e *PartialFailureError) Error() string {
	if e.OrphanOrderID != 0 {
		return fmt.Sprintf("%s partially failed, order %d left unprotected: %v", e.Strategy, e.OrphanOrderID, e.Err)
	}
	return fmt.Sprintf("%s partially failed: %v", e.Strategy, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }
