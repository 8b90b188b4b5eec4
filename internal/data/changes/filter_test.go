package changes

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		raw  string
		want Filter
	}{
		{raw: "//depot/main/...", want: Filter{Path: "//depot/main/..."}},
		{raw: "src/...@>42", want: Filter{Path: "src/...", After: 42, HasAfter: true}},
		{raw: " ....cpp@>0 ", want: Filter{Path: "....cpp", After: 0, HasAfter: true}},
		{raw: "odd@>name", want: Filter{Path: "odd@>name"}},
	}
	for _, tt := range tests {
		got := ParseFilter(tt.raw)
		if got != tt.want {
			t.Fatalf("ParseFilter(%q): want %+v, got %+v", tt.raw, tt.want, got)
		}
	}
}

func TestFilter_RoundTripAndAdmits(t *testing.T) {
	f := ParseFilter("Engine/...@>100")
	if f.String() != "Engine/...@>100" {
		t.Fatalf("unexpected String(): %q", f.String())
	}
	if f.Admits(100) || !f.Admits(101) {
		t.Fatal("lower bound must be exclusive")
	}
	if !ParseFilter("Engine/...").Admits(1) {
		t.Fatal("unbounded filter must admit everything")
	}
}

func TestWithLowerBound_ReplacesExistingBound(t *testing.T) {
	got := WithLowerBound([]string{"a/...", "b/...@>3"}, 9)
	want := []string{"a/...@>9", "b/...@>9"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected filters (-want +got):\n%s", diff)
	}
}
