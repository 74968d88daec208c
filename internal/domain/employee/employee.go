package employee

import (
	"strings"
	"time"
)

// Role of an employee in the CRM.
type Role string

const (
	RoleSales   Role = "Sales"
	RoleAdmin   Role = "Admin"
	RoleOwner   Role = "Owner"
	RoleManager Role = "Manager"
)

// PlaceholderName is the directory entry that stands for "nobody".
const PlaceholderName = "Unassigned"

// AssignableRoles are the roles that take part in round robin.
var AssignableRoles = []Role{RoleSales, RoleAdmin, RoleOwner}

// Employee is a staff member who can own leads.
type Employee struct {
	ID        string
	Name      string
	Role      Role
	Phone     string
	IsActive  bool
	CreatedAt time.Time
}

// Assignable reports whether the employee may receive round-robin leads.
func (e *Employee) Assignable() bool {
	if !e.IsActive || strings.EqualFold(strings.TrimSpace(e.Name), PlaceholderName) {
		return false
	}
	for _, r := range AssignableRoles {
		if e.Role == r {
			return true
		}
	}
	return false
}
