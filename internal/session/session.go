// Package session carries the signed-in operator's identity through the
// filtering and action layers. The browser client kept these values in
// localStorage; here they are an explicit value threaded through calls.
package session

import "strings"

// Role is a normalized job title.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleO2COfficer      Role = "o2c officer"
	RoleManager         Role = "manager"
	RoleEWMOfficer      Role = "ewm officer"
	RoleFinance         Role = "finance"
	RoleCustomerService Role = "customer service officer"
	RoleGateKeeper      Role = "gate keeper"
	RoleDispatchDoc     Role = "dispatch-documentation"
	RoleUnknown         Role = ""
)

// Context identifies one operator session.
type Context struct {
	UserID     string
	EmployeeID string
	FullName   string
	JobTitle   string
	Store      string
}

// Role maps the free-text job title to a known role, case-insensitively.
func (c Context) Role() Role {
	switch strings.ToLower(strings.TrimSpace(c.JobTitle)) {
	case "admin", "administrator":
		return RoleAdmin
	case "o2c officer", "o2c":
		return RoleO2COfficer
	case "manager":
		return RoleManager
	case "ewm officer", "ewm":
		return RoleEWMOfficer
	case "finance", "finance officer":
		return RoleFinance
	case "customer service officer", "customer service":
		return RoleCustomerService
	case "gate keeper", "gatekeeper":
		return RoleGateKeeper
	case "dispatch-documentation", "dispatch documentation":
		return RoleDispatchDoc
	default:
		return RoleUnknown
	}
}
