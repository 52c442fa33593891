package sampler

// Cursor walks the batches of a Plan. It is not safe for concurrent use;
// give each worker its own Cursor over a Split of the plan instead.
type Cursor struct {
	plan *Plan
	next int
}

// Cursor returns a cursor positioned before the first batch.
func (p *Plan) Cursor() *Cursor {
	return &Cursor{plan: p}
}

// Next returns the next batch and advances. After the last batch it returns
// ErrExhausted, on every call.
func (c *Cursor) Next() (Batch, error) {
	if c.next >= len(c.plan.Batches) {
		return Batch{}, ErrExhausted
	}
	b := c.plan.Batches[c.next]
	c.next++
	return b, nil
}

// Step is the number of batches already returned.
func (c *Cursor) Step() int {
	return c.next
}

// Remaining is the number of batches left.
func (c *Cursor) Remaining() int {
	return len(c.plan.Batches) - c.next
}

// Seek positions the cursor so the next call to Next returns batch step.
// Seeking to Len() leaves the cursor exhausted.
func (c *Cursor) Seek(step int) error {
	if step < 0 || step > len(c.plan.Batches) {
		return configError("step", step, "must be in [0, %d]", len(c.plan.Batches))
	}
	c.next = step
	return nil
}

// Plan returns the plan being walked.
func (c *Cursor) Plan() *Plan {
	return c.plan
}

// NextBatch returns the next batch of plan through cur.
func NextBatch(plan *Plan, cur *Cursor) (Batch, error) {
	if cur == nil || cur.plan != plan {
		return Batch{}, ErrCursorMismatch
	}
	return cur.Next()
}
