// Package chase drives overdue-invoice reminders. A pure state machine
// decides the next step, the executor carries it out, and the scheduler
// sweeps for candidates on a timer.
package chase

// State is an invoice's position on the chasing ladder. It is stored as a
// string under the invoice's metadata.chase_state key.
type State string

const (
	StatePending       State = "pending"
	StateOverdue       State = "overdue"
	StateChasingLevel1 State = "chasing_level_1"
	StateChasingLevel2 State = "chasing_level_2"
	StatePaid          State = "paid"
)

// ParseState maps a stored string onto a State.
func ParseState(s string) (State, bool) {
	switch State(s) {
	case StatePending, StateOverdue, StateChasingLevel1, StateChasingLevel2, StatePaid:
		return State(s), true
	}
	return "", false
}

// Action is what a transition asks the executor to do.
type Action int

const (
	NoAction Action = iota
	SendPoliteReminder
	SendFirmReminder
	MarkAsPaid
)

func (a Action) String() string {
	switch a {
	case SendPoliteReminder:
		return "send_polite_reminder"
	case SendFirmReminder:
		return "send_firm_reminder"
	case MarkAsPaid:
		return "mark_as_paid"
	default:
		return "no_action"
	}
}

// Step advances the ladder: Pending turns Overdue with a polite nudge the
// first day past due, Overdue escalates to level 1, level 1 holds for a week
// before the firm reminder, and level 2 is the ceiling. Paid is terminal.
// Total over its inputs; an unrecognized state behaves like Pending.
func Step(current State, daysOverdue int) (State, Action) {
	switch current {
	case StateOverdue:
		return StateChasingLevel1, SendPoliteReminder
	case StateChasingLevel1:
		if daysOverdue >= 7 {
			return StateChasingLevel2, SendFirmReminder
		}
		return StateChasingLevel1, NoAction
	case StateChasingLevel2:
		return StateChasingLevel2, NoAction
	case StatePaid:
		return StatePaid, NoAction
	default:
		if daysOverdue > 0 {
			return StateOverdue, SendPoliteReminder
		}
		return StatePending, NoAction
	}
}
