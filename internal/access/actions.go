package access

import (
	"strings"
)

// DefaultActions maps logical action paths to the minimum role allowed.
// Sub-paths inherit the rule of their closest mapped parent.
var DefaultActions = map[string]Role{
	"/dashboard":        RoleFieldTech,
	"/calendar":         RoleFieldTech,
	"/jobs":             RoleFieldTech,
	"/customers":        RoleFieldTech,
	"/customers/delete": RoleAdmin,
	"/estimates":        RoleSupervisor,
	"/invoices":         RoleSupervisor,
	"/reports":          RoleSupervisor,
	"/team":             RoleSupervisor,
	"/team/invite":      RoleSupervisor,
	"/settings":         RoleAdmin,
	"/import":           RoleAdmin,
	"/quickbooks":       RoleAdmin,
	"/companies/switch": RoleAdmin,
	"/profile":          RoleFieldTech,
}

// Decision is the outcome of an action lookup.
type Decision struct {
	Action  string `json:"action"`
	Rule    string `json:"rule,omitempty"`
	MinRole Role   `json:"minRole,omitempty"`
	Mapped  bool   `json:"mapped"`
	Allowed bool   `json:"allowed"`
}

// Table is a static action permission table.
//
// UnmappedAllowed selects what happens to actions with no rule. The default
// (false) denies them; true reproduces the legacy fail-open behavior.
type Table struct {
	rules           map[string]Role
	UnmappedAllowed bool
}

// NewTable copies rules into a new Table.
func NewTable(rules map[string]Role, unmappedAllowed bool) *Table {
	t := &Table{
		rules:           make(map[string]Role, len(rules)),
		UnmappedAllowed: unmappedAllowed,
	}
	for action, role := range rules {
		t.rules[NormalizeAction(action)] = role
	}
	return t
}

// NormalizeAction lower-cases an action path, drops query and fragment,
// collapses duplicate slashes and removes the trailing slash.
func NormalizeAction(action string) string {
	a := strings.TrimSpace(action)
	if i := strings.IndexAny(a, "?#"); i >= 0 {
		a = a[:i]
	}
	a = strings.ToLower(a)

	parts := strings.Split(a, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return "/" + strings.Join(kept, "/")
}

// Lookup finds the rule governing action, walking up parent segments.
func (t *Table) Lookup(action string) (rule string, min Role, ok bool) {
	for a := NormalizeAction(action); ; {
		if r, found := t.rules[a]; found {
			return a, r, true
		}
		if a == "/" {
			return "", "", false
		}
		i := strings.LastIndex(a, "/")
		if i == 0 {
			a = "/"
		} else {
			a = a[:i]
		}
	}
}

// Decide evaluates whether caller may perform action.
func (t *Table) Decide(caller Caller, action string) Decision {
	d := Decision{Action: NormalizeAction(action)}

	rule, min, ok := t.Lookup(action)
	if !ok {
		d.Allowed = caller.IsSuperAdmin || t.UnmappedAllowed
		return d
	}

	d.Rule = rule
	d.MinRole = min
	d.Mapped = true
	d.Allowed = caller.IsSuperAdmin || caller.Role.AtLeast(min)
	return d
}

// Allowed is shorthand for Decide(...).Allowed.
func (t *Table) Allowed(caller Caller, action string) bool {
	return t.Decide(caller, action).Allowed
}
