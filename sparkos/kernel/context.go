package kernel

const maxLockNest = 8

// Context provides task-local access to kernel operations during one Step.
type Context struct {
	k    *Kernel
	prio Priority
	name string

	locks [maxLockNest]LockStatus
	n     int
}

// Priority returns the priority of the running task.
func (c *Context) Priority() Priority { return c.prio }

// Name returns the name the task was registered with.
func (c *Context) Name() string { return c.name }

// Kernel returns the kernel running the task.
func (c *Context) Kernel() *Kernel { return c.k }

// Lock raises the scheduler ceiling to at least ceiling. Locks taken through the
// Context are released by Unlock in reverse order and must all be released before
// Step returns.
func (c *Context) Lock(ceiling Priority) {
	if c.n == maxLockNest {
		c.k.critEnter()
		c.k.fatal(ErrLockNest)
	}
	c.locks[c.n] = c.k.Lock(ceiling)
	c.n++
}

// Unlock releases the most recent Lock.
func (c *Context) Unlock() {
	if c.n == 0 {
		c.k.critEnter()
		c.k.fatal(ErrNotLocked)
	}
	c.n--
	c.k.Unlock(&c.locks[c.n])
}

// Locked returns the number of locks held through this Context.
func (c *Context) Locked() int { return c.n }

// Post queues an activation of the task at p; see Kernel.Post.
func (c *Context) Post(p Priority) { c.k.Post(p) }
