package domain

import "time"

type CohortStatus string

const (
	CohortStatusOpen   CohortStatus = "OPEN"
	CohortStatusClosed CohortStatus = "CLOSED"
)

// Cohort is a fixed-capacity group that accepted members are placed into
// in arrival order. Capacity is set at creation and never changes; the
// allocator closes a cohort with the assignment that fills it and never
// reopens it.
type Cohort struct {
	ID           int32        `json:"id"`
	Label        string       `json:"label"`
	Capacity     int32        `json:"capacity"`
	CurrentCount int32        `json:"current_count"`
	Status       CohortStatus `json:"status"`
	CreatedOn    time.Time    `json:"created_on"`
}

func (c *Cohort) IsFull() bool {
	return c.CurrentCount >= c.Capacity
}
