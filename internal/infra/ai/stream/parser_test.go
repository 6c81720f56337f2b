package stream

import "testing"

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name string
		line string
		want *Delta
	}{
		{
			name: "content only",
			line: `{"message":{"content":"hello"}}`,
			want: &Delta{Content: "hello"},
		},
		{
			name: "thinking only",
			line: `{"message":{"thinking":"hmm"}}`,
			want: &Delta{Thinking: "hmm"},
		},
		{
			name: "both channels",
			line: `{"message":{"thinking":"t","content":"c"}}`,
			want: &Delta{Thinking: "t", Content: "c"},
		},
		{
			name: "done frame",
			line: `{"message":{},"done":true}`,
			want: &Delta{Done: true},
		},
		{
			name: "done defaults false",
			line: `{"message":{"content":"x"}}`,
			want: &Delta{Content: "x"},
		},
		{
			name: "unknown fields ignored",
			line: `{"model":"llava","message":{"content":"ok"},"eval_count":42}`,
			want: &Delta{Content: "ok"},
		},
		{name: "empty line", line: "", want: nil},
		{name: "whitespace line", line: "   \t", want: nil},
		{name: "malformed json", line: `{"message":`, want: nil},
		{name: "not an object", line: `"just a string"`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseFrame(tt.line)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("ParseFrame(%q) = %+v, want nil", tt.line, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseFrame(%q) = nil, want %+v", tt.line, tt.want)
			}
			if *got != *tt.want {
				t.Errorf("ParseFrame(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}
