package util

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseFloat(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"0.00100000", 0.001, false},
		{"42", 42, false},
		{"", 0, false},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseFloat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseFloat(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseFloat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAsIntKeepsMillisecondPrecision(t *testing.T) {
	got, err := AsInt(json.Number("1499040000000"))
	if err != nil {
		t.Fatal(err)
	}
	if got != 1499040000000 {
		t.Fatalf("got %d", got)
	}
	if _, err := AsInt(true); err == nil {
		t.Fatal("expected error for bool")
	}
}

func TestMillisToTime(t *testing.T) {
	got := MillisToTime(1499040000000)
	want := time.Date(2017, 7, 3, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("MillisToTime = %s, want %s", got, want)
	}
}
