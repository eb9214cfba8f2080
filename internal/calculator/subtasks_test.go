package calculator

import (
	"math"
	"testing"

	"github.com/hmallik/taskally/internal/models"
)

func TestFlattenSubTasks(t *testing.T) {
	t1 := models.SubTask{Name: "buy flour"}
	t2 := models.SubTask{Name: "knead", Completed: true}
	t3 := models.SubTask{Name: "bake"}

	tests := []struct {
		name string
		in   map[string][]models.SubTask
		want []models.SubTask
	}{
		{name: "nil map", in: nil, want: []models.SubTask{}},
		{name: "empty map", in: map[string][]models.SubTask{}, want: []models.SubTask{}},
		{
			name: "single key",
			in:   map[string][]models.SubTask{"defaultKey": {t1, t2}},
			want: []models.SubTask{t1, t2},
		},
		{
			name: "multiple keys in sorted key order",
			in: map[string][]models.SubTask{
				"b": {t3},
				"a": {t1, t2},
			},
			want: []models.SubTask{t1, t2, t3},
		},
		{
			name: "empty list under a key contributes nothing",
			in: map[string][]models.SubTask{
				"a": {},
				"b": {t1},
			},
			want: []models.SubTask{t1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlattenSubTasks(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("FlattenSubTasks returned %d subtasks, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("subtask[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCompletionRatio(t *testing.T) {
	tests := []struct {
		name     string
		subtasks []models.SubTask
		want     float64
	}{
		{name: "empty list is zero", subtasks: nil, want: 0},
		{
			name:     "half complete",
			subtasks: []models.SubTask{{Completed: true}, {Completed: false}},
			want:     0.5,
		},
		{
			name:     "all complete",
			subtasks: []models.SubTask{{Completed: true}, {Completed: true}},
			want:     1,
		},
		{
			name:     "one third",
			subtasks: []models.SubTask{{Completed: true}, {}, {}},
			want:     1.0 / 3.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompletionRatio(tt.subtasks)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CompletionRatio = %v, want %v", got, tt.want)
			}
		})
	}
}
