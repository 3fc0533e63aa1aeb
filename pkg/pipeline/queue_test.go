package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ids(q *workQueue) []StageID { return q.Remaining() }

func TestWorkQueueInsertNext(t *testing.T) {
	q := newWorkQueue([]Step{{ID: "a"}, {ID: "b"}, {ID: "c"}})

	s, ok := q.Next()
	assert.True(t, ok)
	assert.Equal(t, StageID("a"), s.ID)

	q.InsertNext(Step{ID: "x"}, Step{ID: "y"})
	assert.Equal(t, []StageID{"x", "y", "b", "c"}, ids(q))

	var order []StageID
	for {
		s, ok := q.Next()
		if !ok {
			break
		}
		order = append(order, s.ID)
	}
	assert.Equal(t, []StageID{"x", "y", "b", "c"}, order)
	assert.Empty(t, q.Remaining())
}

func TestWorkQueueDoesNotAliasInput(t *testing.T) {
	steps := []Step{{ID: "a"}, {ID: "b"}}
	q := newWorkQueue(steps)
	q.Next()
	q.InsertNext(Step{ID: "z"})
	assert.Equal(t, StageID("b"), steps[1].ID)
}
