package stream

import (
	"reflect"
	"testing"
)

func TestAppendSplitsCompleteLines(t *testing.T) {
	var b LineBuffer

	lines := b.Append([]byte("first\nsecond\npartial"))
	want := []string{"first", "second"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("Append = %v, want %v", lines, want)
	}

	lines = b.Append([]byte(" line\n"))
	want = []string{"partial line"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("Append = %v, want %v", lines, want)
	}
}

func TestAppendDropsBlankLines(t *testing.T) {
	var b LineBuffer

	lines := b.Append([]byte("a\n\n  \n\t\nb\n"))
	want := []string{"a", "b"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("Append = %v, want %v", lines, want)
	}
}

func TestAppendHoldsBackSplitRune(t *testing.T) {
	var b LineBuffer

	// "한글 테\n스트\n두 번째\n" delivered with a chunk boundary inside
	// the multi-byte rune that starts the second line.
	full := []byte("한글 테\n스트\n두 번째\n")
	cut := len([]byte("한글 테\n")) + 1 // one byte into '스'

	lines := b.Append(full[:cut])
	want := []string{"한글 테"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("first chunk = %v, want %v", lines, want)
	}

	lines = b.Append(full[cut:])
	want = []string{"스트", "두 번째"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("second chunk = %v, want %v", lines, want)
	}
}

func TestAppendByteAtATimeMatchesWholeInput(t *testing.T) {
	input := []byte("{\"message\":{\"content\":\"안녕\"}}\nplain ascii\n마지막 줄\n")

	var whole LineBuffer
	want := whole.Append(input)

	var drip LineBuffer
	var got []string
	for i := range input {
		got = append(got, drip.Append(input[i:i+1])...)
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("byte-at-a-time = %v, want %v", got, want)
	}
}

func TestFlushReturnsUnterminatedLine(t *testing.T) {
	var b LineBuffer

	if lines := b.Append([]byte("no newline here")); lines != nil {
		t.Errorf("Append = %v, want nil", lines)
	}
	if got := b.Flush(); got != "no newline here" {
		t.Errorf("Flush = %q, want %q", got, "no newline here")
	}
	if got := b.Flush(); got != "" {
		t.Errorf("second Flush = %q, want empty", got)
	}
}

func TestFlushRecoversHeldRuneBytes(t *testing.T) {
	var b LineBuffer

	data := []byte("끝")
	b.Append(data[:1])
	b.Append(data[1:])

	if got := b.Flush(); got != "끝" {
		t.Errorf("Flush = %q, want %q", got, "끝")
	}
}

func TestAppendEmptyChunk(t *testing.T) {
	var b LineBuffer

	if lines := b.Append(nil); lines != nil {
		t.Errorf("Append(nil) = %v, want nil", lines)
	}
	b.Append([]byte("held"))
	if lines := b.Append(nil); lines != nil {
		t.Errorf("Append(nil) after pending = %v, want nil", lines)
	}
	if got := b.Flush(); got != "held" {
		t.Errorf("Flush = %q, want %q", got, "held")
	}
}
