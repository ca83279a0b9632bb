package cache

import (
	"encoding/json"
	"strings"

	"github.com/taskmaster/client/internal/domain/entities"
)

// Key identifies a cache entry. Keys are hierarchical: invalidating a key
// affects every entry it is a prefix of.
type Key []string

func (k Key) String() string {
	return strings.Join(k, "\x1f")
}

// HasPrefix reports whether p is a prefix of k
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

// Task query keys
var (
	TasksKey       = Key{"tasks"}
	TaskListsKey   = Key{"tasks", "list"}
	TaskDetailsKey = Key{"tasks", "detail"}
)

// TaskListKey is the key of one filtered task list. Filters are normalized
// first so equivalent filter sets share an entry.
func TaskListKey(filters entities.TaskFilters) Key {
	params := filters.Normalize().Params()
	// map keys are sorted by encoding/json, so the encoding is canonical
	data, _ := json.Marshal(params)
	return Key{"tasks", "list", string(data)}
}

// TaskDetailKey is the key of a single task
func TaskDetailKey(id string) Key {
	return Key{"tasks", "detail", id}
}
