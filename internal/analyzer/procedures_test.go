package analyzer

import "testing"

func TestNormalizeProcedureName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"EXEC [dbo].[GetUser] @id", "dbo.GetUser", true},
		{"dbo.GetUser", "dbo.GetUser", true},
		{"  exec dbo.GetUser", "dbo.GetUser", true},
		{"EXECUTE GetUser @id, @name", "GetUser", true},
		{"EXEC [dbo] . [GetUser]", "dbo.GetUser", true},
		{"[CRD].[SEL_CARD]", "CRD.SEL_CARD", true},
		{"GetUser", "GetUser", true},
		{"SELECT * FROM users", "", false},
		{"", "", false},
		{"   ", "", false},
		{"update t set a = 1", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeProcedureName(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("NormalizeProcedureName(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
