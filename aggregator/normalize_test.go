package aggregator_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/register_backend/aggregator"
)

func TestNormalizeVendorName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Café Zoë ", "cafe zoe"},
		{"BILLY  Coccinelle", "billy coccinelle"},
		{"Crémerie   du Marché", "cremerie du marche"},
		{"plain name", "plain name"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := aggregator.NormalizeVendorName(tc.in); got != tc.want {
			t.Fatalf("NormalizeVendorName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAliasTableResolve(t *testing.T) {
	table := aggregator.AliasTable{
		Version: 1,
		Aliases: map[string]string{"billy cocinelle": "billy coccinelle"},
	}

	if got := table.Resolve("  Billy  Cocinelle "); got != "billy coccinelle" {
		t.Fatalf("alias not applied, got %q", got)
	}
	if got := table.Resolve("Billy Coccinelle"); got != "billy coccinelle" {
		t.Fatalf("canonical name must pass through, got %q", got)
	}
	if got := table.Resolve("Unknown Vendor"); got != "unknown vendor" {
		t.Fatalf("unknown names normalize only, got %q", got)
	}
}
