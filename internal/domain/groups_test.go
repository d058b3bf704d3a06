package domain

import (
	"reflect"
	"testing"
)

func TestSelectionCounts(t *testing.T) {
	s := &Selection{
		Groups: []ConditionGroup{
			{Label: "G23_word", Members: []int{0, 1, 2}},
			{Label: "SG23_nonword", Members: []int{3}},
		},
	}
	want := map[string]int{"G23_word": 3, "SG23_nonword": 1}
	if got := s.Counts(); !reflect.DeepEqual(got, want) {
		t.Errorf("Counts() = %v, want %v", got, want)
	}
}
