package schedule

import "fmt"

// Action is an operator-facing command offered on an event.
type Action string

const (
	ActionOpen     Action = "open"
	ActionConvert  Action = "convert"
	ActionCheckOut Action = "check_out"
	ActionCheckIn  Action = "check_in"
	ActionAssign   Action = "assign"
	ActionCancel   Action = "cancel"
)

// ParseAction maps a raw action tag onto an Action.
func ParseAction(raw string) (Action, error) {
	for _, r := range policyTable {
		if string(r.action) == raw {
			return r.action, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", raw)
}

// Destructive reports whether the action must be shown apart from the others.
func (a Action) Destructive() bool {
	return a == ActionCancel
}

type policyRule struct {
	action Action
	allow  func(kind Kind, status string, f Flags) bool
}

// policyTable is evaluated top to bottom; its order is the menu order.
// Each rule gates one action, so rules never interact.
var policyTable = []policyRule{
	{ActionOpen, func(Kind, string, Flags) bool { return true }},
	{ActionConvert, func(k Kind, _ string, f Flags) bool { return k == KindReservation && f.Convertible }},
	{ActionCheckOut, func(k Kind, _ string, f Flags) bool { return k == KindAgreement && f.CheckOutEligible }},
	{ActionCheckIn, func(k Kind, _ string, f Flags) bool { return k == KindAgreement && f.CheckInEligible }},
	{ActionAssign, func(_ Kind, _ string, f Flags) bool { return f.Unassigned }},
	{ActionCancel, func(_ Kind, _ string, f Flags) bool { return f.Cancellable }},
}

// AllowedActions returns the actions permitted for an event of the given
// kind and status with the supplied eligibility flags.
func AllowedActions(kind Kind, status string, f Flags) ActionSet {
	set := make(ActionSet, 0, len(policyTable))
	for _, r := range policyTable {
		if r.allow(kind, status, f) {
			set = append(set, r.action)
		}
	}
	return set
}

// ActionSet is an ordered set of actions.
type ActionSet []Action

// Has reports whether a is in the set.
func (s ActionSet) Has(a Action) bool {
	for _, x := range s {
		if x == a {
			return true
		}
	}
	return false
}

// Groups splits the set into menu sections: regular actions first, then
// destructive ones behind a separator. Empty sections are omitted.
func (s ActionSet) Groups() [][]Action {
	var regular, destructive []Action
	for _, a := range s {
		if a.Destructive() {
			destructive = append(destructive, a)
		} else {
			regular = append(regular, a)
		}
	}
	groups := make([][]Action, 0, 2)
	if len(regular) > 0 {
		groups = append(groups, regular)
	}
	if len(destructive) > 0 {
		groups = append(groups, destructive)
	}
	return groups
}
