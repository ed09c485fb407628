package model

import (
	"testing"
	"time"
)

func TestCategoryIsAlertOrSOS(t *testing.T) {
	tests := []struct {
		cat  Category
		want bool
	}{
		{CategoryAlert, true},
		{CategorySOS, true},
		{CategoryRoad, false},
		{CategoryNeeds, false},
		{CategoryRain, false},
		{CategoryOther, false},
	}
	for _, tc := range tests {
		if got := tc.cat.IsAlertOrSOS(); got != tc.want {
			t.Errorf("%s.IsAlertOrSOS() = %v, want %v", tc.cat, got, tc.want)
		}
	}
}

func TestReportAge(t *testing.T) {
	created := time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC)
	r := Report{ID: "a", CreatedAt: created}

	if got := r.Age(created.Add(3 * time.Hour)); got != 3*time.Hour {
		t.Errorf("Age = %v, want 3h", got)
	}
	if got := r.Age(created); got != 0 {
		t.Errorf("Age at creation = %v, want 0", got)
	}
}
