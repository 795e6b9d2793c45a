package util

import (
	"testing"
	"time"
)

func TestFromUnixMillis(t *testing.T) {
	got := FromUnixMillis(1700000000123)
	if got.Location() != time.UTC || got.UnixMilli() != 1700000000123 {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2024, 3, 1, 0, 0, 1, 0, time.UTC)
	b := time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC)
	c := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	if !SameDay(a, b) {
		t.Fatalf("expected same day")
	}
	if SameDay(b, c) {
		t.Fatalf("expected different days")
	}
}

func TestRound1(t *testing.T) {
	cases := map[float64]float64{66.666: 66.7, 50: 50, 33.34: 33.3, 0: 0}
	for in, want := range cases {
		if got := Round1(in); got != want {
			t.Fatalf("Round1(%v)=%v want %v", in, got, want)
		}
	}
	if Percent(1, 0) != 0 {
		t.Fatalf("expected 0 for empty total")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("ab", 3); got != "ab" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeSymbol(t *testing.T) {
	if got := NormalizeSymbol("  btc-usd "); got != "BTC-USD" {
		t.Fatalf("got %q", got)
	}
}
