package domain

// Role is the caller's role as asserted by the identity service.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAuctioneer Role = "auctioneer"
	RoleTeam       Role = "team"
)

// Actor is an authenticated caller.
type Actor struct {
	Subject string `json:"subject"`
	Role    Role   `json:"role"`
	TeamID  string `json:"team_id,omitempty"`
}

// Is reports whether the actor holds any of the given roles.
func (a Actor) Is(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
