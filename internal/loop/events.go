package loop

import "time"

// RunEvent is emitted on the event bus for task.completed / task.failed.
type RunEvent struct {
	Task     string        `json:"task"`
	Seq      uint64        `json:"seq"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// OverrunEvent is emitted on the event bus when a pass blows its budget.
type OverrunEvent struct {
	Pass   uint64        `json:"pass"`
	Took   time.Duration `json:"took"`
	Budget time.Duration `json:"budget"`
}
