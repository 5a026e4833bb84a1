package resolve

import (
	"strings"
	"testing"
)

func lookup(table map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := table[k]
		return v, ok
	}
}

func testChain() Chain[string, string] {
	return Chain[string, string]{
		{Name: "first", Resolve: lookup(map[string]string{"a": "from-first"})},
		{Name: "second", Resolve: lookup(map[string]string{"a": "from-second", "b": "from-second"})},
		{Name: "upper", Resolve: func(s string) (string, bool) { return strings.ToUpper(s), s != "" }},
	}
}

func TestRunFirstMatchWins(t *testing.T) {
	c := testChain()

	v, name, ok := c.Run("a")
	if !ok || v != "from-first" || name != "first" {
		t.Errorf("Run(a) = %q, %q, %v", v, name, ok)
	}
	v, name, ok = c.Run("b")
	if !ok || v != "from-second" || name != "second" {
		t.Errorf("Run(b) = %q, %q, %v", v, name, ok)
	}
	v, name, ok = c.Run("c")
	if !ok || v != "C" || name != "upper" {
		t.Errorf("Run(c) = %q, %q, %v", v, name, ok)
	}
	if _, _, ok := c.Run(""); ok {
		t.Error("Run(\"\") should fail")
	}
}

func TestAllReportsEveryHit(t *testing.T) {
	hits := testChain().All("a")
	if len(hits) != 3 {
		t.Fatalf("All(a) = %v, want 3 hits", hits)
	}
	if hits[0].Strategy != "first" || hits[1].Value != "from-second" {
		t.Errorf("unexpected hits: %+v", hits)
	}
}

func TestWithout(t *testing.T) {
	c := testChain().Without("first")
	v, name, _ := c.Run("a")
	if name != "second" || v != "from-second" {
		t.Errorf("Run after Without = %q via %q", v, name)
	}
	if len(testChain()) != 3 {
		t.Error("Without must not modify the receiver")
	}
}
