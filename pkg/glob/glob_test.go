package glob

import "testing"

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"foo", "foo", true},
		{"foo", "foo.bar", false},
		{"foo.*", "foo.bar", true},
		{"foo.*", "foo", false},
		{"foo.*", "foo.bar.baz", false},
		{"foo.**", "foo", true},
		{"foo.**", "foo.bar.baz", true},
		{"**.baz", "baz", true},
		{"**.baz", "foo.bar.baz", true},
		{"**.baz", "foo.bar", false},
		{"*.bar", "foo.bar", true},
		{"**", "anything.at.all", true},
		{"a.b+", "a.b+", true},
		{"a.**.d", "a.d", true},
		{"a.**.d", "a.b.c.d", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.name, func(t *testing.T) {
			if got := Match(tt.name, tt.pattern); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.name, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestMatch_AnyOf(t *testing.T) {
	if !Match("admin.users", "public.*", "admin.*") {
		t.Error("expected second pattern to match")
	}
	if Match("other", "public.*", "admin.*") {
		t.Error("expected no match")
	}
}

func TestIsGlob(t *testing.T) {
	if IsGlob("foo.bar") {
		t.Error("plain name reported as glob")
	}
	if !IsGlob("foo.*") {
		t.Error("wildcard not reported as glob")
	}
}
