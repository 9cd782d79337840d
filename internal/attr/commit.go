package attr

// CommitHandler applies an accepted attribute value to the live device.
// Handlers for a group that is not realized yet return nil without side
// effects; the stored value is applied at the next realize.
type CommitHandler interface {
	Commit(c *Commit) error
}

// CommitFunc adapts a function to CommitHandler
type CommitFunc func(c *Commit) error

// Commit implements CommitHandler
func (f CommitFunc) Commit(c *Commit) error {
	return f(c)
}

// Commit is the handler's view of one attribute being committed within a
// Set batch
type Commit struct {
	ID    ID
	Name  string
	Value any

	store      *Store
	batch      map[ID]any
	consistent map[ID]bool
}

// Int returns Value as an int
func (c *Commit) Int() int {
	n, _ := c.Value.(int)
	return n
}

// Double returns Value as a float64
func (c *Commit) Double() float64 {
	d, _ := c.Value.(float64)
	return d
}

// Pending returns the value id receives in this batch, if any
func (c *Commit) Pending(id ID) (any, bool) {
	v, ok := c.batch[id]
	return v, ok
}

// IntOf returns the value id will hold once the batch completes
func (c *Commit) IntOf(id ID) int {
	if v, ok := c.batch[id]; ok {
		n, _ := v.(int)
		return n
	}
	return c.store.Int(id)
}

// MarkConsistent tells the store that id was applied together with the
// current attribute, so its own handler is skipped later in the batch
func (c *Commit) MarkConsistent(id ID) {
	c.consistent[id] = true
}

// Store returns the attribute store
func (c *Commit) Store() *Store {
	return c.store
}
