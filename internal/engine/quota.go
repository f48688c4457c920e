package engine

// CascadeQuota limits the number of requests processed within one cascade.
//
// Cycle detection catches recursive patterns (the store revisits a
// snapshot); the quota catches linear explosions, where watchers keep
// producing novel states without ever repeating one. Together they
// guarantee a cascade terminates.
type CascadeQuota struct {
	limit   int
	current int
}

// NewCascadeQuota creates a quota with the given step limit.
func NewCascadeQuota(limit int) *CascadeQuota {
	return &CascadeQuota{limit: limit}
}

// Check counts one step and returns a quota error once the limit is
// exceeded. Called before processing each request in a cascade.
func (q *CascadeQuota) Check(txn string) error {
	q.current++
	if q.current > q.limit {
		return NewQuotaError(txn, q.current, q.limit)
	}
	return nil
}

// Current returns the number of steps taken. Used for diagnostics.
func (q *CascadeQuota) Current() int {
	return q.current
}

// Limit returns the configured step limit.
func (q *CascadeQuota) Limit() int {
	return q.limit
}
