package domain

import "time"

// EventMember is a user reference on an event's guest or organizer list.
type EventMember struct {
	UserID int64
	Utorid string
}

// Event owns a pool of points awarded to its guests.
type Event struct {
	ID            int64
	Name          string
	StartTime     time.Time
	EndTime       time.Time
	Points        int64
	PointsRemain  int64
	PointsAwarded int64
	Guests        []EventMember
	Organizers    []EventMember
}

// Guest returns the guest with the given utorid.
func (e *Event) Guest(utorid string) (EventMember, bool) {
	for _, g := range e.Guests {
		if g.Utorid == utorid {
			return g, true
		}
	}
	return EventMember{}, false
}

// IsOrganizer reports whether userID organizes the event.
func (e *Event) IsOrganizer(userID int64) bool {
	for _, o := range e.Organizers {
		if o.UserID == userID {
			return true
		}
	}
	return false
}
