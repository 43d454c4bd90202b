package petshop

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// chatTransitions are the moves the conversational engine may make.
// The dashboard additionally gets completion and reopening of terminal
// appointments; the chat engine never reopens.
var chatTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
}

var dashboardTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCompleted, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCompleted: {StatusPending},
	StatusCancelled: {StatusPending},
}

// CanTransition reports whether status may move from -> to.
// fromDashboard selects the wider dashboard rule set (reopen, complete).
func CanTransition(from, to Status, fromDashboard bool) bool {
	if from == to {
		return false
	}
	table := chatTransitions
	if fromDashboard {
		table = dashboardTransitions
	}
	for _, allowed := range table[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
