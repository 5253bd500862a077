package trace

import (
	"testing"
)

func TestEnabled(t *testing.T) {
	for _, tc := range []struct {
		odb, git string
		want     bool
	}{
		{"", "", false},
		{"1", "", true},
		{"", "true", true},
		{"false", "0", false},
		{"yes", "", false},
	} {
		t.Setenv("ODB_TRACE", tc.odb)
		t.Setenv("GIT_TRACE", tc.git)

		if got := Enabled(); got != tc.want {
			t.Errorf("ODB_TRACE=%q GIT_TRACE=%q: got %v, want %v", tc.odb, tc.git, got, tc.want)
		}
	}
}
