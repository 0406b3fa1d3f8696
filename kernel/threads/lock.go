package threads

import "github.com/sisoputnfrba/tp-2025-2c-nachos/machine"

// Lock es un mutex del kernel. Quienes esperan donan su prioridad al dueño.
type Lock struct {
	k         *Kernel
	holder    *KThread
	waitQueue ThreadQueue
}

func NewLock(k *Kernel) *Lock {
	return &Lock{k: k, waitQueue: k.scheduler.NewThreadQueue(true)}
}

// Acquire toma el lock, bloqueando al hilo actual mientras lo tenga otro.
func (l *Lock) Acquire() {
	machine.Assert(!l.IsHeldByCurrentThread(), "%s ya tiene el lock", l.k.current)

	intr := l.k.machine.Interrupt()
	intStatus := intr.Disable()

	cur := l.k.current
	if l.holder != nil {
		l.waitQueue.WaitForAccess(cur)
		l.k.Sleep()
	} else {
		l.waitQueue.Acquire(cur)
		l.holder = cur
	}
	machine.Assert(l.holder == cur, "%s despertó sin el lock", cur)

	intr.Restore(intStatus)
}

// Release libera el lock y se lo pasa a uno de los que esperan.
func (l *Lock) Release() {
	machine.Assert(l.IsHeldByCurrentThread(), "%s libera un lock que no tiene", l.k.current)

	intr := l.k.machine.Interrupt()
	intStatus := intr.Disable()

	l.holder = l.waitQueue.NextThread()
	if l.holder != nil {
		l.holder.Ready()
	}

	intr.Restore(intStatus)
}

// IsHeldByCurrentThread indica si el hilo actual tiene el lock.
func (l *Lock) IsHeldByCurrentThread() bool {
	return l.holder == l.k.current
}
