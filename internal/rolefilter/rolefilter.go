// Package rolefilter selects the records a given operator role should see.
// Each role carries its own predicate, reproduced from the per-screen business
// rules; divergences between the rules (gate keeper vs. dispatch-documentation)
// are intentional and must not be unified.
package rolefilter

import (
	"sort"
	"strings"

	"serviceflow_gateway/internal/session"
	"serviceflow_gateway/internal/workflow"
)

// Filter narrows records to the subset the session's role should act on.
// odns maps process id to that process's ODN list; it is consulted only by
// the store-scoped roles. The result is always a subset of records, in stable
// order. Only the O2C view applies a secondary sort.
func Filter(records []workflow.ProcessRecord, odns map[string][]workflow.ODN, sess session.Context) []workflow.ProcessRecord {
	role := sess.Role()
	if role == session.RoleAdmin {
		out := make([]workflow.ProcessRecord, len(records))
		copy(out, records)
		return out
	}

	pred := predicateFor(role, sess, odns)
	out := make([]workflow.ProcessRecord, 0, len(records))
	if pred == nil {
		// Unrecognized roles see nothing rather than everything.
		return out
	}

	for _, rec := range records {
		if pred(rec) {
			out = append(out, rec)
		}
	}

	if role == session.RoleO2COfficer {
		sortO2CCompletedLast(out)
	}
	return out
}

func predicateFor(role session.Role, sess session.Context, odns map[string][]workflow.ODN) func(workflow.ProcessRecord) bool {
	switch role {
	case session.RoleO2COfficer:
		return func(rec workflow.ProcessRecord) bool {
			if rec.AssignedOfficerID != sess.UserID {
				return false
			}
			if !workflow.StatusEquals(rec.NextServicePoint, "o2c") && !workflow.StatusEquals(rec.NextServicePoint, "ewm") {
				return false
			}
			return !workflow.StatusEquals(rec.Status, "completed")
		}

	case session.RoleManager:
		return func(rec workflow.ProcessRecord) bool {
			if !workflow.StatusEquals(rec.NextServicePoint, "manager") {
				return false
			}
			return !workflow.StatusEquals(rec.Status, "rejected") && !workflow.StatusEquals(rec.Status, "approved")
		}

	case session.RoleEWMOfficer:
		return func(rec workflow.ProcessRecord) bool {
			if !workflow.StatusEquals(rec.NextServicePoint, "ewm") {
				return false
			}
			return workflow.ODNForStore(odns[rec.ID], sess.Store) != nil
		}

	case session.RoleFinance:
		return func(rec workflow.ProcessRecord) bool {
			return workflow.StatusEquals(rec.NextServicePoint, "finance")
		}

	case session.RoleCustomerService:
		return func(rec workflow.ProcessRecord) bool {
			return workflow.StatusEquals(rec.NextServicePoint, "customer service")
		}

	case session.RoleGateKeeper:
		return func(rec workflow.ProcessRecord) bool {
			if workflow.StatusEquals(rec.Status, "completed") {
				return false
			}
			odn := workflow.ODNForStore(odns[rec.ID], sess.Store)
			if odn == nil {
				return false
			}
			if !workflow.StatusEquals(odn.ExitPermitStatus, "completed") {
				return false
			}
			return strings.TrimSpace(odn.GateStatus) == "" || workflow.StatusEquals(odn.GateStatus, "pending")
		}

	case session.RoleDispatchDoc:
		return func(rec workflow.ProcessRecord) bool {
			if workflow.StatusEquals(rec.Status, "completed") {
				return false
			}
			odn := workflow.ODNForStore(odns[rec.ID], sess.Store)
			if odn == nil {
				return false
			}
			if !workflow.StatusEquals(odn.DispatchStatus, "completed") {
				return false
			}
			return !workflow.StatusEquals(odn.ExitPermitStatus, "completed")
		}

	default:
		return nil
	}
}

// sortO2CCompletedLast stably moves o2c_completed records behind everything
// else while keeping fetch order inside each group.
func sortO2CCompletedLast(records []workflow.ProcessRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		iDone := workflow.StatusEquals(records[i].Status, "o2c_completed")
		jDone := workflow.StatusEquals(records[j].Status, "o2c_completed")
		return !iDone && jDone
	})
}

// SortByStartedAt orders records by started_at ascending, as the TV displays
// do. Records with unparseable timestamps sort last, keeping fetch order
// among themselves.
func SortByStartedAt(records []workflow.ProcessRecord) {
	SortByStartedAtFunc(records, func(r workflow.ProcessRecord) string { return r.StartedAt })
}

// SortByStartedAtFunc is SortByStartedAt for any slice whose elements carry a
// started_at timestamp.
func SortByStartedAtFunc[T any](items []T, startedAt func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, okI := workflow.ParseTimestamp(startedAt(items[i]))
		tj, okJ := workflow.ParseTimestamp(startedAt(items[j]))
		if !okI {
			return false
		}
		if !okJ {
			return true
		}
		return ti.Before(tj)
	})
}
