// Package workflow holds the domain model of the customer-service journey:
// the process record, its per-store ODN sub-records, and the pure status
// classification rules shared by every screen.
package workflow

import "strings"

// ProcessRecord is one customer service journey as returned by the backend.
// Status fields are free-text strings owned by the backend; all comparisons
// against them are case-insensitive. Timestamps stay raw strings because the
// backend has been observed to emit malformed values.
type ProcessRecord struct {
	ID                string `json:"id"`
	CustomerName      string `json:"customer_name"`
	CustomerType      string `json:"customer_type"` // Cash | Credit
	Status            string `json:"status"`
	NextServicePoint  string `json:"next_service_point"`
	StartedAt         string `json:"started_at"`
	CompletedAt       string `json:"completed_at"`
	FacilityID        string `json:"facility_id"`
	AssignedOfficerID string `json:"assigned_officer_id"`
}

// ODN is the store-scoped delivery sub-unit of a process. A process advances
// through a phase only when all of its ODNs report that phase complete.
type ODN struct {
	ProcessID        string `json:"process_id"`
	Number           string `json:"odn"`
	Store            string `json:"store"`
	EwmStatus        string `json:"ewm_status"`
	ExitPermitStatus string `json:"exit_permit_status"`
	GateStatus       string `json:"gate_status"`
	DispatchStatus   string `json:"dispatch_status"`
	PlateNumber      string `json:"plate_number"`
	GateKeeperName   string `json:"gate_keeper_name"`
}

// Picklist is one warehouse picklist document link. The picklists screen only
// watches id/odn/url/status for change suppression.
type Picklist struct {
	ID     string `json:"id"`
	ODN    string `json:"odn"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

// Reference entities, fetched once per screen and joined in memory.

type Facility struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Store struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type Employee struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	JobTitle string `json:"job_title"`
	Store    string `json:"store"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	JobTitle string `json:"job_title"`
	Store    string `json:"store"`
}

// statusIs reports whether a raw status field equals want, case-insensitively.
// Missing fields compare as the empty string.
func statusIs(raw, want string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), want)
}

// StatusEquals is the exported form of the case-insensitive comparison every
// screen rule uses.
func StatusEquals(raw, want string) bool {
	return statusIs(raw, want)
}

// AllODNs reports whether every ODN in the slice satisfies the predicate.
// An empty slice reports false: a process with no ODNs has nothing complete.
func AllODNs(odns []ODN, pred func(ODN) bool) bool {
	if len(odns) == 0 {
		return false
	}
	for _, o := range odns {
		if !pred(o) {
			return false
		}
	}
	return true
}

// AnyODN reports whether at least one ODN satisfies the predicate.
func AnyODN(odns []ODN, pred func(ODN) bool) bool {
	for _, o := range odns {
		if pred(o) {
			return true
		}
	}
	return false
}

// ODNForStore returns the ODN scoped to the given store, or nil.
func ODNForStore(odns []ODN, store string) *ODN {
	for i := range odns {
		if statusIs(odns[i].Store, store) {
			return &odns[i]
		}
	}
	return nil
}
