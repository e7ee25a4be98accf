package roles

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

type Right string

const (
	GetUsers    Right = "getUsers"
	ManageUsers Right = "manageUsers"
)

const (
	User  = "user"
	Admin = "admin"
)

var ErrForbidden = errors.New("forbidden")

// Table maps a role name to the rights it grants. It is never mutated after construction.
type Table struct {
	rights map[string][]Right
}

func New(m map[string][]Right) (Table, error) {
	if len(m) == 0 {
		return Table{}, fmt.Errorf("role table is empty")
	}
	out := make(map[string][]Right, len(m))
	for role, rs := range m {
		if role == "" {
			return Table{}, fmt.Errorf("role table: empty role name")
		}
		out[role] = slices.Clone(rs)
	}
	return Table{rights: out}, nil
}

func Default() Table {
	t, _ := New(map[string][]Right{
		User:  {},
		Admin: {GetUsers, ManageUsers},
	})
	return t
}

func (t Table) Has(role string) bool {
	_, ok := t.rights[role]
	return ok
}

func (t Table) Roles() []string {
	return slices.Sorted(maps.Keys(t.rights))
}

func (t Table) Rights(role string) []Right {
	return slices.Clone(t.rights[role])
}

// Verify fails with ErrForbidden unless role holds every required right.
func (t Table) Verify(role string, required ...Right) error {
	if len(required) == 0 {
		return nil
	}
	granted := t.rights[role]
	if len(granted) == 0 {
		return ErrForbidden
	}
	for _, r := range required {
		if !slices.Contains(granted, r) {
			return fmt.Errorf("%w: role %q lacks %q", ErrForbidden, role, r)
		}
	}
	return nil
}
