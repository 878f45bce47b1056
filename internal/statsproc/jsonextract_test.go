package statsproc

import "testing"

func TestCleanScriptOutput(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"bom", "\ufeff{\"a\":1}", `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  {\"a\":1}\n\n", `{"a":1}`},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cleanScriptOutput(tc.in); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExtractFirstJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "surrounded by warnings",
			in:   "Warning message:\nIn cor.test : something\n{\"test\":\"correlation\",\"p_value\":0.03}\ntrailing",
			want: `{"test":"correlation","p_value":0.03}`,
		},
		{
			name: "nested objects",
			in:   `{"a":{"b":2},"c":3}`,
			want: `{"a":{"b":2},"c":3}`,
		},
		{
			name: "braces inside strings",
			in:   `{"msg":"par } abierto { raro"}`,
			want: `{"msg":"par } abierto { raro"}`,
		},
		{
			name: "no object",
			in:   "just text",
			want: "",
		},
		{
			name: "unbalanced",
			in:   `{"a":1`,
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractFirstJSONObject(tc.in); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
