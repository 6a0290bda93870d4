package domain

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusPaid     Status = "PAID"
	StatusCanceled Status = "CANCELED"
	StatusExpired  Status = "EXPIRED"
)

type Event string

const (
	EventPay    Event = "pay"
	EventCancel Event = "cancel"
	EventExpire Event = "expire"
)

// transitions is the whole state machine: PENDING is the only live state,
// everything else is terminal.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventPay:    StatusPaid,
		EventCancel: StatusCanceled,
		EventExpire: StatusExpired,
	},
	StatusPaid:     {},
	StatusCanceled: {},
	StatusExpired:  {},
}

// Transition validates (current, event) against the state machine and
// returns the next status, or an InvalidStateError if the event is not
// allowed from the current status.
func Transition(from Status, ev Event) (Status, error) {
	next, ok := transitions[from][ev]
	if !ok {
		return from, InvalidStateError{Status: from, Event: ev}
	}
	return next, nil
}
