package version

import (
	"strings"
	"testing"
)

func TestStringCarriesVersion(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, Version) {
		t.Fatalf("String() = %q, want prefix %q", s, Version)
	}
}
