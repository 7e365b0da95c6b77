package model

// Role identifies which of the two slots a participant occupies.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleInitiator || r == RoleResponder
}

// Participant is one occupant of a room: a role plus the opaque
// connection handle it is currently reachable on.
type Participant struct {
	Handle string `json:"handle" bson:"handle"`
	Role   Role   `json:"role" bson:"role"`
}

// Room is the persisted shape of a two-party session. At most one
// participant per role.
type Room struct {
	Code         string        `json:"code" bson:"code"`
	Participants []Participant `json:"participants" bson:"participants"`
}
