package plugin

import "testing"

func TestContentHashDeterministic(t *testing.T) {
	data := []byte("some plugin bytes, identical across runs")

	h1 := ContentHash(data)
	h2 := ContentHash(append([]byte(nil), data...))

	if h1 != h2 {
		t.Errorf("ContentHash not deterministic: %d != %d", h1, h2)
	}
	if h1 == 0 {
		t.Error("ContentHash returned 0 for non-empty input")
	}
}

func TestContentHashDiffersOnChange(t *testing.T) {
	a := ContentHash([]byte("buffer A"))
	b := ContentHash([]byte("buffer B"))
	if a == b {
		t.Error("expected different hashes for different inputs")
	}
}
