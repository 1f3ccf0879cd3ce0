package order

// OrderState describes which statuses an order may move to from its current one.
type OrderState interface {
	Status() Status
	Next(to Status) (OrderState, error)
	Terminal() bool
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }
func (pendingState) Terminal() bool { return false }

func (pendingState) Next(to Status) (OrderState, error) {
	switch to {
	case StatusConfirmed:
		return confirmedState{}, nil
	case StatusCancelled:
		return cancelledState{}, nil
	}
	return nil, ErrInvalidTransition
}

type confirmedState struct{}

func (confirmedState) Status() Status { return StatusConfirmed }
func (confirmedState) Terminal() bool { return false }

func (confirmedState) Next(to Status) (OrderState, error) {
	switch to {
	case StatusShipped:
		return shippedState{}, nil
	case StatusCancelled:
		return cancelledState{}, nil
	}
	return nil, ErrInvalidTransition
}

type shippedState struct{}

func (shippedState) Status() Status { return StatusShipped }
func (shippedState) Terminal() bool { return false }

func (shippedState) Next(to Status) (OrderState, error) {
	if to == StatusDelivered {
		return deliveredState{}, nil
	}
	return nil, ErrInvalidTransition
}

type deliveredState struct{}

func (deliveredState) Status() Status                  { return StatusDelivered }
func (deliveredState) Terminal() bool                  { return true }
func (deliveredState) Next(Status) (OrderState, error) { return nil, ErrInvalidTransition }

type cancelledState struct{}

func (cancelledState) Status() Status                  { return StatusCancelled }
func (cancelledState) Terminal() bool                  { return true }
func (cancelledState) Next(Status) (OrderState, error) { return nil, ErrInvalidTransition }

// StateOf maps a persisted status onto its state. Unknown statuses yield nil.
func StateOf(s Status) OrderState {
	switch s {
	case StatusPending:
		return pendingState{}
	case StatusConfirmed:
		return confirmedState{}
	case StatusShipped:
		return shippedState{}
	case StatusDelivered:
		return deliveredState{}
	case StatusCancelled:
		return cancelledState{}
	}
	return nil
}

func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, StateOf(s) != nil
}

// CanTransition reports whether from -> to is allowed by the lifecycle.
func CanTransition(from, to Status) bool {
	st := StateOf(from)
	if st == nil {
		return false
	}
	_, err := st.Next(to)
	return err == nil
}

func (s Status) Terminal() bool {
	st := StateOf(s)
	return st != nil && st.Terminal()
}

// TransitionTo validates the move and applies it to the in-memory value.
// Persisting it is the repository's job (see Repository.UpdateStatus).
func (o *Order) TransitionTo(to Status) error {
	st := StateOf(o.Status)
	if st == nil {
		return ErrInvalidTransition
	}
	next, err := st.Next(to)
	if err != nil {
		return err
	}
	o.Status = next.Status()
	o.touch()
	return nil
}
