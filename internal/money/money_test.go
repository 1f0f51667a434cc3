package money

import "testing"

func TestFee(t *testing.T) {
	tests := []struct {
		amount Cents
		bps    int64
		want   Cents
	}{
		{37500, 350, 1312}, // floors, does not round
		{5000, 350, 175},
		{10000, 250, 250},
		{1, 350, 0},
		{0, 350, 0},
		{10000, 0, 0},
		{-5, 350, 0},
	}
	for _, tt := range tests {
		if got := Fee(tt.amount, tt.bps); got != tt.want {
			t.Fatalf("Fee(%d, %d) = %d, want %d", tt.amount, tt.bps, got, tt.want)
		}
	}
}

func TestSum(t *testing.T) {
	if got := Sum(100, 200, 300); got != 600 {
		t.Fatalf("Sum = %d, want 600", got)
	}
	if got := Sum(); got != 0 {
		t.Fatalf("Sum() = %d, want 0", got)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		amount Cents
		want   string
	}{
		{41288, "412.88"},
		{100, "1.00"},
		{5, "0.05"},
		{0, "0.00"},
	}
	for _, tt := range tests {
		if got := Format(tt.amount); got != tt.want {
			t.Fatalf("Format(%d) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
