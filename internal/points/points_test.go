package points

import "testing"

func TestForAmountTruncates(t *testing.T) {
	cases := []struct {
		amount int64
		want   int64
	}{
		{1, 0},
		{99, 0},
		{100, 1},
		{101, 1},
		{199, 1},
		{200, 2},
		{5000, 50},
		{15750, 157},
	}
	for _, tc := range cases {
		if got := ForAmount(tc.amount); got != tc.want {
			t.Errorf("ForAmount(%d) = %d, want %d", tc.amount, got, tc.want)
		}
	}
}

func TestForAmountDeterministic(t *testing.T) {
	// Award and reversal must compute the identical value for the same amount.
	for _, amount := range []int64{1, 99, 100, 2500, 15750, 1<<40 + 37} {
		if ForAmount(amount) != ForAmount(amount) {
			t.Fatalf("ForAmount(%d) not stable", amount)
		}
	}
}

func TestUpdateDelta(t *testing.T) {
	cases := []struct {
		oldAmount, newAmount int64
		want                 int64
	}{
		{5000, 5000, 0},
		{5000, 10000, 50},
		{10000, 5000, -50},
		{150, 99, -1},  // 1 -> 0
		{99, 150, 1},   // 0 -> 1
		{199, 100, 0},  // both truncate to 1
	}
	for _, tc := range cases {
		if got := UpdateDelta(tc.oldAmount, tc.newAmount); got != tc.want {
			t.Errorf("UpdateDelta(%d, %d) = %d, want %d", tc.oldAmount, tc.newAmount, got, tc.want)
		}
	}
}
