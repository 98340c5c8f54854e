package client

import "testing"

func TestParseSolution(t *testing.T) {
	sol, err := ParseSolution("2025/10/18 12:00:00.000   35.681236  139.767125   40.1234   1   8\n")
	if err != nil {
		t.Fatalf("ParseSolution failed: %v", err)
	}
	if sol.Date != "2025/10/18" || sol.Time != "12:00:00.000" {
		t.Errorf("epoch = %q %q", sol.Date, sol.Time)
	}
	want := []float64{35.681236, 139.767125, 40.1234, 1, 8}
	if len(sol.Columns) != len(want) {
		t.Fatalf("Columns = %v, want %v", sol.Columns, want)
	}
	for i := range want {
		if sol.Columns[i] != want[i] {
			t.Errorf("Columns[%d] = %v, want %v", i, sol.Columns[i], want[i])
		}
	}
	if sol.Raw != "2025/10/18 12:00:00.000   35.681236  139.767125   40.1234   1   8" {
		t.Errorf("Raw = %q", sol.Raw)
	}

	if v, ok := sol.Column(2); !ok || v != 40.1234 {
		t.Errorf("Column(2) = %v, %v", v, ok)
	}
	if _, ok := sol.Column(5); ok {
		t.Error("Column(5) should not exist")
	}
	if _, ok := sol.Column(-1); ok {
		t.Error("Column(-1) should not exist")
	}
}

func TestParseSolution_GPSWeek(t *testing.T) {
	sol, err := ParseSolution("2388 561600.000 -3957199.2 3310199.1 3737711.6 2 6")
	if err != nil {
		t.Fatalf("ParseSolution failed: %v", err)
	}
	if sol.Date != "2388" || sol.Time != "561600.000" || len(sol.Columns) != 5 {
		t.Errorf("solution = %+v", sol)
	}
}

func TestParseSolution_Invalid(t *testing.T) {
	for _, line := range []string{
		"",
		"2025/10/18 12:00:00.000",
		"2025/10/18 12:00:00.000 35.1 north 40.0",
	} {
		if _, err := ParseSolution(line); err == nil {
			t.Errorf("ParseSolution(%q) succeeded, want error", line)
		}
	}
}
