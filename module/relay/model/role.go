package model

import (
	"encoding/json"
	"sort"
	"strings"

	"ArgbRelay/tools/errs"
)

// Role is the closed set of client roles.
type Role uint8

const (
	RoleSender Role = iota + 1
	RoleReceiver
)

func (r Role) String() string {
	switch r {
	case RoleSender:
		return "sender"
	case RoleReceiver:
		return "receiver"
	default:
		return "unknown"
	}
}

// ParseRole accepts "sender" or "receiver", case-insensitive.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sender":
		return RoleSender, nil
	case "receiver":
		return RoleReceiver, nil
	default:
		return 0, errs.New("unknown role", "role", s)
	}
}

// RoleSet is a set of roles. The zero value is empty and ready to use.
type RoleSet uint8

func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s = s.With(r)
	}
	return s
}

// ParseRoleSet parses names into a set and returns the names it could not parse.
func ParseRoleSet(names []string) (RoleSet, []string) {
	var (
		s       RoleSet
		unknown []string
	)
	for _, n := range names {
		r, err := ParseRole(n)
		if err != nil {
			unknown = append(unknown, n)
			continue
		}
		s = s.With(r)
	}
	return s, unknown
}

func (s RoleSet) With(r Role) RoleSet {
	if r == 0 {
		return s
	}
	return s | 1<<(r-1)
}

func (s RoleSet) Has(r Role) bool {
	return r != 0 && s&(1<<(r-1)) != 0
}

func (s RoleSet) IsEmpty() bool { return s == 0 }

// Roles lists the members in declaration order.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, 2)
	for _, r := range []Role{RoleSender, RoleReceiver} {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Strings returns the sorted role names, the form stored and put in tokens.
func (s RoleSet) Strings() []string {
	out := make([]string, 0, 2)
	for _, r := range s.Roles() {
		out = append(out, r.String())
	}
	sort.Strings(out)
	return out
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *RoleSet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	set, unknown := ParseRoleSet(names)
	if len(unknown) > 0 {
		return errs.New("unknown roles", "roles", strings.Join(unknown, ","))
	}
	*s = set
	return nil
}
