package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"1.995", 200, true},
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"1.٣", 0, false},  // Arabic-Indic three
		{"١٢", 0, false},   // Arabic-Indic twelve
		{"１.50", 0, false}, // fullwidth one
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := MustMoney("10.10")
	b := MoneyFromCents(295)
	if got := a.Add(b).String(); got != "13.05" {
		t.Fatalf("Add: got %s", got)
	}
	if got := b.Sub(a).String(); got != "-7.15" {
		t.Fatalf("Sub: got %s", got)
	}
	if a.Cents() != 1010 {
		t.Fatalf("Cents: got %d", a.Cents())
	}
	var zero Money
	if !zero.IsZero() || zero.Validate() == nil {
		t.Fatalf("zero money must be zero and invalid")
	}
	if !zero.Add(a).Equal(a) {
		t.Fatalf("zero value must be usable in sums")
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Money `json:"a"`
	}{MustMoney("12.5")})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"a":12.50}` {
		t.Fatalf("unexpected json %s", b)
	}

	for _, in := range []string{`{"a":12.345}`, `{"a":"12.345"}`} {
		var v struct {
			A Money `json:"a"`
		}
		if err := json.Unmarshal([]byte(in), &v); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if v.A.String() != "12.35" {
			t.Fatalf("%s: got %s", in, v.A)
		}
	}
}
