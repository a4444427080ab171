package rbac

import "testing"

func TestNormalizeTabKeys(t *testing.T) {
	valid, invalid := NormalizeTabKeys([]string{
		" inventory.category ",
		"INVENTORY.CATEGORY",
		"hrm.leaves",
		"unknown.tab",
		"",
	})
	if len(valid) != 2 {
		t.Fatalf("expected 2 valid tab keys, got %d", len(valid))
	}
	if len(invalid) != 1 || invalid[0] != "unknown.tab" {
		t.Fatalf("unexpected invalid tab keys: %v", invalid)
	}
}

func TestIsKnownTab(t *testing.T) {
	if !IsKnownTab("inventory.warranty") {
		t.Fatal("inventory.warranty must be known")
	}
	if IsKnownTab("custom.tab") {
		t.Fatal("custom.tab must be unknown")
	}
}

func TestTabPermissionsFailClosed(t *testing.T) {
	perms := TabPermissions{"inventory.category": {Read: true}}
	if !perms.Allows("inventory.category", ActionRead) {
		t.Fatal("read must be granted")
	}
	if perms.Allows("inventory.category", ActionCreate) {
		t.Fatal("create must not be granted")
	}
	if perms.Allows("inventory.warranty", ActionRead) {
		t.Fatal("absent key must deny")
	}
	if perms.Allows("inventory.category", Action("export")) {
		t.Fatal("unknown action must deny")
	}
	var empty TabPermissions
	if empty.Allows("dashboard", ActionRead) {
		t.Fatal("nil map must deny")
	}
}

func TestIsBypassRole(t *testing.T) {
	bypass := DefaultBypassRoles()
	for _, r := range []string{"admin", " SuperAdmin "} {
		if !IsBypassRole(r, bypass) {
			t.Fatalf("%q must bypass", r)
		}
	}
	for _, r := range []string{"cashier", "manager", "staff", ""} {
		if IsBypassRole(r, bypass) {
			t.Fatalf("%q must not bypass", r)
		}
	}
}

func TestFlagsActionsRoundTrip(t *testing.T) {
	var f Flags
	for _, a := range AllActions() {
		f = f.With(a)
	}
	if f != FullAccess() {
		t.Fatalf("expected full access, got %+v", f)
	}
	if got := ReadOnly().Actions(); len(got) != 1 || got[0] != ActionRead {
		t.Fatalf("unexpected read-only actions: %v", got)
	}
	if _, ok := ParseAction("DELETE"); !ok {
		t.Fatal("DELETE must parse")
	}
	if _, ok := ParseAction("approve"); ok {
		t.Fatal("approve must not parse")
	}
}

func TestDefaultRolesUseKnownTabs(t *testing.T) {
	for _, r := range DefaultRoles() {
		for tab := range r.Permissions {
			if !IsKnownTab(tab) {
				t.Fatalf("role %s grants unknown tab %s", r.Name, tab)
			}
		}
	}
}
