package calculator

import (
	"sort"

	"github.com/hmallik/taskally/internal/models"
)

// FlattenSubTasks concatenates every list in the subtask map into one
// slice. Keys are visited in sorted order so the result is deterministic
// for a given map. Nil or empty maps yield an empty slice. No
// deduplication is performed; subtasks have no identity beyond position.
func FlattenSubTasks(subTaskMap map[string][]models.SubTask) []models.SubTask {
	if len(subTaskMap) == 0 {
		return []models.SubTask{}
	}
	keys := make([]string, 0, len(subTaskMap))
	for k := range subTaskMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var all []models.SubTask
	for _, k := range keys {
		all = append(all, subTaskMap[k]...)
	}
	return all
}

// CompletionRatio returns the fraction of completed subtasks, in [0, 1].
// An empty list counts as 0 rather than dividing by zero.
func CompletionRatio(subtasks []models.SubTask) float64 {
	if len(subtasks) == 0 {
		return 0
	}
	done := 0
	for _, st := range subtasks {
		if st.Completed {
			done++
		}
	}
	return float64(done) / float64(len(subtasks))
}
