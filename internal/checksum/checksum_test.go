package checksum

import (
	"io"
	"strings"
	"testing"
)

func TestSum_KnownVector(t *testing.T) {
	got := SumString("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("sum = %q, want %q", got, want)
	}
}

func TestStreamingHash_MatchesSum(t *testing.T) {
	data := strings.Repeat("row,", 5000)
	h := New()
	if _, err := io.Copy(h, strings.NewReader(data)); err != nil {
		t.Fatal(err)
	}
	if got := Hex(h); got != SumString(data) {
		t.Errorf("streamed digest %q differs from Sum", got)
	}
}
