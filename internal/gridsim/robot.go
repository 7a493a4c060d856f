package gridsim

import (
	"fmt"

	"github.com/hupe1980/statecache/id"
)

// Cell is a grid position.
type Cell struct {
	X, Y int
}

// Status is the movement state of a robot.
type Status int

const (
	Idle Status = iota
	Moving
	Blocked
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Moving:
		return "moving"
	case Blocked:
		return "blocked"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{Idle, Moving, Blocked} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("gridsim: unknown status %q", s)
}

// Robot is one immutable generation of a robot's state. A robot occupies
// Cell and, while it holds a reservation, also Next.
type Robot struct {
	Key     id.ID[Robot]
	Name    string
	Cell    Cell
	Next    Cell
	HasNext bool
	Status  Status
}

// ID implements id.Identified.
func (r Robot) ID() id.ID[Robot] { return r.Key }

// Equal reports whether two generations are identical.
func (r Robot) Equal(o Robot) bool { return r == o }

// Cells returns the cells the robot claims.
func (r Robot) Cells() []Cell {
	if r.HasNext {
		return []Cell{r.Cell, r.Next}
	}
	return []Cell{r.Cell}
}

// MoveTo returns the generation after the robot entered c.
func (r Robot) MoveTo(c Cell) Robot {
	r.Cell = c
	r.Next = Cell{}
	r.HasNext = false
	r.Status = Moving
	return r
}

// Reserve returns a blocked generation holding a reservation on c.
func (r Robot) Reserve(c Cell) Robot {
	r.Next = c
	r.HasNext = true
	r.Status = Blocked
	return r
}

// Block returns a blocked generation without a reservation.
func (r Robot) Block() Robot {
	r.Next = Cell{}
	r.HasNext = false
	r.Status = Blocked
	return r
}

// Rest returns an idle generation keeping the current reservation.
func (r Robot) Rest() Robot {
	r.Status = Idle
	return r
}

func (r Robot) String() string {
	if r.HasNext {
		return fmt.Sprintf("%s@(%d,%d)->(%d,%d) %s", r.Name, r.Cell.X, r.Cell.Y, r.Next.X, r.Next.Y, r.Status)
	}
	return fmt.Sprintf("%s@(%d,%d) %s", r.Name, r.Cell.X, r.Cell.Y, r.Status)
}
