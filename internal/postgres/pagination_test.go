package postgres

import (
	"errors"
	"testing"
	"time"
)

func TestCursor_RoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), ID: "m1"}

	enc, err := EncodeCursor(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeCursor(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out == nil || !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

func TestDecodeCursor_EmptyIsFirstPage(t *testing.T) {
	c, err := DecodeCursor("")
	if err != nil || c != nil {
		t.Fatalf("empty cursor = %+v, %v", c, err)
	}
}

func TestDecodeCursor_Garbage(t *testing.T) {
	for _, raw := range []string{"not base64!!", "bm90IGpzb24"} {
		if _, err := DecodeCursor(raw); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("cursor %q err = %v, want ErrInvalidCursor", raw, err)
		}
	}
}
