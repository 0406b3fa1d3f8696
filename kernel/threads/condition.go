package threads

import "github.com/sisoputnfrba/tp-2025-2c-nachos/machine"

// Condition es una variable de condición estilo Mesa asociada a un Lock.
// Los que duermen en ella no donan prioridad.
type Condition struct {
	lock      *Lock
	waitQueue ThreadQueue
}

func NewCondition(lock *Lock) *Condition {
	return &Condition{lock: lock, waitQueue: lock.k.scheduler.NewThreadQueue(false)}
}

// Sleep libera el lock, duerme hasta un Wake y vuelve a tomar el lock.
func (c *Condition) Sleep() {
	machine.Assert(c.lock.IsHeldByCurrentThread(), "Sleep sin tener el lock")

	k := c.lock.k
	intr := k.machine.Interrupt()
	intStatus := intr.Disable()

	c.waitQueue.WaitForAccess(k.current)
	c.lock.Release()
	k.Sleep()
	c.lock.Acquire()

	intr.Restore(intStatus)
}

// Wake despierta a lo sumo a un hilo dormido.
func (c *Condition) Wake() {
	machine.Assert(c.lock.IsHeldByCurrentThread(), "Wake sin tener el lock")

	intr := c.lock.k.machine.Interrupt()
	intStatus := intr.Disable()
	if t := c.waitQueue.NextThread(); t != nil {
		t.Ready()
	}
	intr.Restore(intStatus)
}

// WakeAll despierta a todos los hilos dormidos.
func (c *Condition) WakeAll() {
	machine.Assert(c.lock.IsHeldByCurrentThread(), "WakeAll sin tener el lock")

	intr := c.lock.k.machine.Interrupt()
	intStatus := intr.Disable()
	for t := c.waitQueue.NextThread(); t != nil; t = c.waitQueue.NextThread() {
		t.Ready()
	}
	intr.Restore(intStatus)
}
