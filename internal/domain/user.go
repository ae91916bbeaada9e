package domain

import "time"

// Role is the ordered privilege level issued by the identity collaborator.
type Role string

const (
	RoleRegular   Role = "regular"
	RoleCashier   Role = "cashier"
	RoleManager   Role = "manager"
	RoleSuperuser Role = "superuser"
)

var roleRank = map[Role]int{
	RoleRegular:   0,
	RoleCashier:   1,
	RoleManager:   2,
	RoleSuperuser: 3,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above min. Unknown roles rank below everything.
func (r Role) AtLeast(min Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	return have >= roleRank[min]
}

// User is a loyalty program member. The ledger only ever mutates Points.
type User struct {
	ID           int64
	Utorid       string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Points       int64
	Verified     bool
	Suspicious   bool
	CreatedAt    time.Time
}
