package progress

import "testing"

func TestOverallProgressTable(t *testing.T) {
	cases := []struct {
		stage, pct, want int
	}{
		{1, 0, 0},
		{1, 100, 10},
		{2, 0, 10},
		{2, 50, 20},
		{3, 100, 50},
		{4, 50, 55},
		{5, 0, 60},
		{6, 0, 80},
		{6, 100, 100},
		{6, 50, 90},
	}
	for _, tc := range cases {
		if got := OverallProgress(tc.stage, tc.pct); got != tc.want {
			t.Fatalf("OverallProgress(%d, %d) = %d, want %d", tc.stage, tc.pct, got, tc.want)
		}
	}
}

func TestOverallProgressBoundedAndMonotonic(t *testing.T) {
	for stage := 1; stage <= 6; stage++ {
		prev := -1
		for pct := 0; pct <= 100; pct++ {
			got := OverallProgress(stage, pct)
			if got < 0 || got > 100 {
				t.Fatalf("stage %d pct %d: overall %d out of range", stage, pct, got)
			}
			if got < prev {
				t.Fatalf("stage %d: overall decreased from %d to %d at pct %d", stage, prev, got, pct)
			}
			prev = got
		}
	}
}

func TestOverallProgressClampsInput(t *testing.T) {
	if got := OverallProgress(9, 250); got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
	if got := OverallProgress(0, -5); got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
}

func TestStageWeight(t *testing.T) {
	want := map[int]int{1: 10, 2: 20, 3: 20, 4: 10, 5: 20, 6: 20, 42: DefaultStageWeight}
	for stage, w := range want {
		if got := StageWeight(stage); got != w {
			t.Fatalf("StageWeight(%d) = %d, want %d", stage, got, w)
		}
	}
}
