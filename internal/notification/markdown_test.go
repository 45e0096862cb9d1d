package notification

import "testing"

func TestEscapeMarkdownV2(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"BTC > 100000.5!", `BTC \> 100000\.5\!`},
		{`C:\path_1`, `C:\\path\_1`},
		{`\*`, `\\\*`},
		{"[link](x)", `\[link\]\(x\)`},
	}
	for _, tc := range cases {
		if got := EscapeMarkdownV2(tc.in); got != tc.want {
			t.Fatalf("in=%q got=%q want=%q", tc.in, got, tc.want)
		}
	}
}
