package navigation

import (
	"slices"
	"testing"
)

func TestKeyForPathExact(t *testing.T) {
	cases := map[string]string{
		"/dashboard":                          "dashboard",
		"/dashboard/inventory/category":       "inventory.category",
		"/dashboard/inventory/warranty":       "inventory.warranty",
		"/dashboard/promotions/gift-cards":    "promotions.gift_cards",
		"/superadmin/tenants":                 "superadmin.tenants",
		"/dashboard/settings/payment-methods": "settings.payment_methods",
	}
	for path, want := range cases {
		got, ok := KeyForPath(path)
		if !ok || got != want {
			t.Fatalf("%s: expected %s, got %q (%v)", path, want, got, ok)
		}
	}
}

func TestKeyForPathIgnoresQueryAndTrailingSlash(t *testing.T) {
	base, ok := KeyForPath("/dashboard/inventory/warranty")
	if !ok {
		t.Fatal("warranty must resolve")
	}
	for _, p := range []string{
		"/dashboard/inventory/warranty?page=2",
		"/dashboard/inventory/warranty/",
		"/dashboard/inventory/warranty/?page=2&size=10",
		"/dashboard/inventory/warranty#top",
		"//dashboard//inventory/warranty",
		"https://shop.example.com/dashboard/inventory/warranty?page=2",
	} {
		got, ok := KeyForPath(p)
		if !ok || got != base {
			t.Fatalf("%s: expected %s, got %q", p, base, got)
		}
	}
}

func TestKeyForPathLongestPrefix(t *testing.T) {
	got, ok := KeyForPath("/dashboard/inventory/warranty/[id]")
	if !ok || got != "inventory.warranty" {
		t.Fatalf("parametric route must fall back to parent, got %q", got)
	}
	got, ok = KeyForPath("/dashboard/customers/groups/42/edit")
	if !ok || got != "customers.groups" {
		t.Fatalf("deepest declared prefix must win, got %q", got)
	}
	got, ok = KeyForPath("/dashboard/customers/17")
	if !ok || got != "customers.list" {
		t.Fatalf("expected customers.list, got %q", got)
	}
}

func TestMatchReportsDeclaredPath(t *testing.T) {
	declared, key, ok := DefaultMap().Match("/dashboard/inventory/warranty/9?tab=notes")
	if !ok || declared != "/dashboard/inventory/warranty" || key != "inventory.warranty" {
		t.Fatalf("unexpected match %q %q %v", declared, key, ok)
	}
	if _, _, ok := DefaultMap().Match("/pricing"); ok {
		t.Fatal("/pricing must not match")
	}
}

func TestKeyForPathSegmentBoundary(t *testing.T) {
	got, ok := KeyForPath("/dashboard/inventory/stock-transfers")
	if !ok || got != "inventory.stock_transfer" {
		t.Fatalf("expected stock_transfer, got %q", got)
	}
	// /dashboard/inventory/stockpile must not match /dashboard/inventory/stock
	got, _ = KeyForPath("/dashboard/inventory/stockpile")
	if got == "inventory.stock" {
		t.Fatal("prefix must match on segment boundaries only")
	}
	if got != "dashboard" {
		t.Fatalf("expected fallback to dashboard, got %q", got)
	}
}

func TestKeyForPathRouteGroups(t *testing.T) {
	got, ok := KeyForPath("/(admin)/dashboard/(hr)/hrm/payroll")
	if !ok || got != "hrm.payroll" {
		t.Fatalf("group segments must be ignored, got %q", got)
	}
}

func TestKeyForPathUnknown(t *testing.T) {
	for _, p := range []string{"/", "", "/pricing", "/blog/post-1"} {
		if key, ok := KeyForPath(p); ok {
			t.Fatalf("%q must be unmapped, got %s", p, key)
		}
	}
}

func TestGeneratePathPermissionMapDeterministic(t *testing.T) {
	a := GeneratePathPermissionMap(AllItems())
	b := GeneratePathPermissionMap(AllItems())
	if !slices.Equal(a.Paths(), b.Paths()) {
		t.Fatal("path order must be identical")
	}
	for p, k := range a.Entries() {
		got, ok := b.KeyForPath(p)
		if !ok || got != k {
			t.Fatalf("%s: %s vs %s", p, k, got)
		}
	}
	if a.Len() != b.Len() || a.Len() == 0 {
		t.Fatalf("unexpected sizes %d %d", a.Len(), b.Len())
	}
}

func TestGeneratePathPermissionMapFirstWins(t *testing.T) {
	tree := NewTree([]Section{{Heading: "dup", Items: []Item{
		{Label: "A", Icon: "a", Path: "/dashboard/x", PermissionKey: "first"},
		{Label: "B", Icon: "b", Path: "/dashboard/x/", PermissionKey: "second"},
	}}})
	m := GeneratePathPermissionMap(tree.AllItems())
	got, _ := m.KeyForPath("/dashboard/x")
	if got != "first" {
		t.Fatalf("first occurrence must win, got %s", got)
	}
	c := m.Collisions()
	if len(c) != 1 || c[0].KeptKey != "first" || c[0].DroppedKey != "second" || c[0].Path != "/dashboard/x" {
		t.Fatalf("unexpected collisions: %+v", c)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":                "/",
		"/":               "/",
		"dashboard":       "/dashboard",
		"/dashboard/":     "/dashboard",
		"/a//b/./c?x=1#y": "/a/b/c",
		"/(group)/a":      "/a",
		"/a/[id]":         "/a/[id]",
	}
	for in, want := range cases {
		if got := NormalizePath(in); got != want {
			t.Fatalf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
