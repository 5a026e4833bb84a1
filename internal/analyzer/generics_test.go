package analyzer

import (
	"reflect"
	"testing"
)

func TestParseGenericArguments(t *testing.T) {
	tests := []struct {
		block string
		want  []string
	}{
		{"A<B,C>, D", []string{"A<B,C>", "D"}},
		{"ReqT, RespT", []string{"ReqT", "RespT"}},
		{"Dictionary<string, List<int>>, Resp", []string{"Dictionary<string, List<int>>", "Resp"}},
		{"(int a, int b), Resp", []string{"(int a, int b)", "Resp"}},
		{"int[,], Resp", []string{"int[,]", "Resp"}},
		{"  Single  ", []string{"Single"}},
		{"", nil},
		{"A<B, C", nil},
		{"A>, B", nil},
	}
	for _, tt := range tests {
		got := ParseGenericArguments(tt.block)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseGenericArguments(%q) = %#v, want %#v", tt.block, got, tt.want)
		}
	}
}

func TestGenericBlock(t *testing.T) {
	tests := []struct {
		text  string
		want  string
		found bool
	}{
		{"BOAExecuter<A<B,C>, D>.Execute", "A<B,C>, D", true},
		{"BOAExecuter<Req, Resp>.Execute", "Req, Resp", true},
		{"BOAExecuter<Req, Resp.Execute", "", false},
		{"BOAExecuter.Execute", "", false},
		{"OtherExecuter<Req, Resp>.Execute", "", false},
		{"BOAExecuterX<Req, Resp>.Execute", "", false},
	}
	for _, tt := range tests {
		got, ok := GenericBlock(tt.text, "BOAExecuter")
		if ok != tt.found || got != tt.want {
			t.Errorf("GenericBlock(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.found)
		}
	}
}
