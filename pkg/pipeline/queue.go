package pipeline

// workQueue is the ordered list of steps still to run. Steps inserted with
// InsertNext run immediately after the step most recently returned by Next.
type workQueue struct {
	steps []Step
	pos   int
}

func newWorkQueue(steps []Step) *workQueue {
	q := &workQueue{steps: make([]Step, len(steps))}
	copy(q.steps, steps)
	return q
}

// Next pops the head of the queue.
func (q *workQueue) Next() (Step, bool) {
	if q.pos >= len(q.steps) {
		return Step{}, false
	}
	step := q.steps[q.pos]
	q.pos++
	return step, true
}

// InsertNext splices steps in at the current position.
func (q *workQueue) InsertNext(steps ...Step) {
	if len(steps) == 0 {
		return
	}
	rest := append([]Step{}, q.steps[q.pos:]...)
	q.steps = append(append(q.steps[:q.pos], steps...), rest...)
}

// Remaining returns the IDs of steps not yet run.
func (q *workQueue) Remaining() []StageID {
	ids := make([]StageID, 0, len(q.steps)-q.pos)
	for _, s := range q.steps[q.pos:] {
		ids = append(ids, s.ID)
	}
	return ids
}
