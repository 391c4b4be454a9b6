package authz_test

import (
	"testing"

	"github.com/dropDatabas3/trustcore/internal/authz"
)

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

func TestResolve_ModeratorInheritsMemberAndGuest(t *testing.T) {
	r, err := authz.NewResolver(authz.DefaultRoleTable())
	if err != nil {
		t.Fatalf("NewResolver err: %v", err)
	}

	perms := r.Resolve([]string{"Moderator"})

	// directos
	if !contains(perms, "matches.review") {
		t.Fatalf("expected matches.review in %v", perms)
	}
	// heredados de Member
	if !contains(perms, "appointments.create") {
		t.Fatalf("expected appointments.create in %v", perms)
	}
	// heredados de Guest (dos niveles)
	if !contains(perms, "profiles.read") {
		t.Fatalf("expected profiles.read in %v", perms)
	}
	// no debe colarse nada de Support ni Admin
	if contains(perms, "tickets.read") || contains(perms, "users.ban") {
		t.Fatalf("unexpected grants in %v", perms)
	}
}

func TestResolve_MonotonicAndDeduplicated(t *testing.T) {
	r, err := authz.NewResolver(authz.DefaultRoleTable())
	if err != nil {
		t.Fatalf("NewResolver err: %v", err)
	}

	member := r.Resolve([]string{"Member"})
	both := r.Resolve([]string{"Member", "Support"})

	// agregar un rol nunca quita permisos
	for _, p := range member {
		if !contains(both, p) {
			t.Fatalf("adding a role dropped %q", p)
		}
	}

	// Guest aparece por dos caminos (Member y Support): sin duplicados
	seen := map[string]int{}
	for _, p := range both {
		seen[p]++
		if seen[p] > 1 {
			t.Fatalf("duplicated permission %q in %v", p, both)
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r, _ := authz.NewResolver(authz.DefaultRoleTable())

	a := r.Resolve([]string{"Admin", "Guest"})
	b := r.Resolve([]string{"Guest", "Admin"})
	if len(a) != len(b) {
		t.Fatalf("order-dependent result: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("order-dependent result at %d: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestResolve_UnknownRoleGrantsNothing(t *testing.T) {
	r, _ := authz.NewResolver(authz.DefaultRoleTable())

	if got := r.Resolve([]string{"SuperUser"}); len(got) != 0 {
		t.Fatalf("unknown role granted %v", got)
	}
	if got := r.Resolve(nil); len(got) != 0 {
		t.Fatalf("empty roles granted %v", got)
	}

	// rol desconocido mezclado con uno real: sólo aporta el real
	withReal := r.Resolve([]string{"SuperUser", "Guest"})
	onlyReal := r.Resolve([]string{"Guest"})
	if len(withReal) != len(onlyReal) {
		t.Fatalf("unknown role changed the result: %v vs %v", withReal, onlyReal)
	}
}

func TestNewResolver_RejectsInheritanceCycle(t *testing.T) {
	table := authz.RoleTable{
		"A": {Inherits: []string{"B"}},
		"B": {Inherits: []string{"C"}},
		"C": {Inherits: []string{"A"}},
	}
	if _, err := authz.NewResolver(table); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestNewResolver_ToleratesUnknownParent(t *testing.T) {
	table := authz.RoleTable{
		"Orphan": {
			Inherits:    []string{"Ghost"},
			Permissions: []string{"thing.do"},
		},
	}
	r, err := authz.NewResolver(table)
	if err != nil {
		t.Fatalf("unknown parent should warn, not fail: %v", err)
	}
	perms := r.Resolve([]string{"Orphan"})
	if len(perms) != 1 || perms[0] != "thing.do" {
		t.Fatalf("expected only direct grants, got %v", perms)
	}
}

func TestMerge_AddsExplicitGrants(t *testing.T) {
	r, _ := authz.NewResolver(authz.DefaultRoleTable())

	perms := r.Merge([]string{"Guest"}, []string{"beta.access", "profiles.read", ""})
	if !contains(perms, "beta.access") {
		t.Fatalf("expected beta.access in %v", perms)
	}
	// el duplicado con un grant de rol no se repite, el vacío no entra
	seen := map[string]int{}
	for _, p := range perms {
		if p == "" {
			t.Fatalf("empty permission leaked into %v", perms)
		}
		seen[p]++
		if seen[p] > 1 {
			t.Fatalf("duplicated %q in %v", p, perms)
		}
	}
}
