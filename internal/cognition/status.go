package cognition

import "noetic/internal/bus"

// PartitionStatus reports per-partition counters for get_status.
type PartitionStatus struct {
	ID            string
	AssertionCount int
	ActiveCount    int
}

// Status is the response to spec section 6's `get_status` command.
type Status struct {
	Paused     bool
	RuleCount  int
	Partitions []PartitionStatus
	Bus        bus.Stats
}

// GetStatus builds a Status snapshot.
func (c *Cognition) GetStatus() Status {
	partitions := c.KB.Partitions()
	statuses := make([]PartitionStatus, 0, len(partitions))
	for _, p := range partitions {
		statuses = append(statuses, PartitionStatus{
			ID:             p,
			AssertionCount: c.KB.AssertionCount(p),
			ActiveCount:    len(c.KB.AllActive(p)),
		})
	}
	return Status{
		Paused:     c.Paused(),
		RuleCount:  len(c.Rules.All()),
		Partitions: statuses,
		Bus:        c.Bus.StatsSnapshot(),
	}
}
