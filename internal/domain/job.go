package domain

// SlotStatus enumerates the lifecycle of one model inside a batch.
type SlotStatus string

const (
	SlotStatusPending    SlotStatus = "pending"
	SlotStatusInProgress SlotStatus = "in_progress"
	SlotStatusSucceeded  SlotStatus = "succeeded"
	SlotStatusFailed     SlotStatus = "failed"
)

// Done reports whether the slot reached a terminal state.
func (s SlotStatus) Done() bool {
	return s == SlotStatusSucceeded || s == SlotStatusFailed
}

// Progress is a snapshot of a running batch.
type Progress struct {
	BatchID   string     `json:"batch_id"`
	Completed int        `json:"completed"`
	Total     int        `json:"total"`
	Model     string     `json:"model"`
	Status    SlotStatus `json:"status"`
}

// Fraction returns completed/total in [0,1].
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 1
	}
	return float64(p.Completed) / float64(p.Total)
}
