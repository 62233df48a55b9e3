package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseMoney(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{in: "50", want: 5000},
		{in: "50.00", want: 5000},
		{in: "50.5", want: 5050},
		{in: " 0.99 ", want: 99},
		{in: "-1.25", want: -125},
		{in: "", wantErr: true},
		{in: "1.234", wantErr: true},
		{in: "abc", wantErr: true},
		{in: ".50", wantErr: true},
		{in: "10.", wantErr: true},
		{in: "92233720368547758.07", want: math.MaxInt64},
		{in: "92233720368547758.08", wantErr: true},
		{in: "184467440737095517", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseMoney(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseMoney(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseMoney(%q): unexpected error %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseMoney(%q): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

func TestMoney_StringAndJSON(t *testing.T) {
	t.Parallel()

	total, err := Money(5000).Times(2)
	if err != nil {
		t.Fatalf("times: %v", err)
	}
	if total.String() != "100.00" {
		t.Fatalf("expected 100.00, got %s", total)
	}

	b, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{Total: total})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"total":"100.00"}` {
		t.Fatalf("unexpected json %s", b)
	}

	var decoded struct {
		Price Money `json:"price"`
	}
	if err := json.Unmarshal([]byte(`{"price":12.5}`), &decoded); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if decoded.Price != 1250 {
		t.Fatalf("expected 1250, got %d", decoded.Price)
	}
}

func TestMoney_Times(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		price   Money
		n       int
		want    Money
		wantErr error
	}{
		{name: "zero quantity", price: 5000, n: 0, want: 0},
		{name: "exact max", price: math.MaxInt64 / 7, n: 7, want: math.MaxInt64 / 7 * 7},
		{name: "overflow", price: 1 << 62, n: 5, wantErr: ErrAmountOverflow},
		{name: "one past max", price: math.MaxInt64/2 + 1, n: 2, wantErr: ErrAmountOverflow},
		{name: "negative quantity", price: 100, n: -1, wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		got, err := tt.price.Times(tt.n)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("%s: expected %v, got %v (%d)", tt.name, tt.wantErr, err, got)
			}
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("%s: expected invalid argument category, got %v", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.name, tt.want, got)
		}
	}
}
