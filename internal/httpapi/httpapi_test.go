package httpapi

import "testing"

func TestIsSafePath(t *testing.T) {
	cases := []struct {
		rel  string
		want bool
	}{
		{"index.html", true},
		{"assets/model.glb", true},
		{"../secrets.json", false},
		{"assets/../../secrets.json", false},
		{"", true},
	}
	for _, c := range cases {
		if got := isSafePath("/var/www/web", c.rel); got != c.want {
			t.Errorf("isSafePath(%q) = %v, want %v", c.rel, got, c.want)
		}
	}
}
