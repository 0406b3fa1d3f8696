package threads

import (
	"log/slog"

	"github.com/Workiva/go-datastructures/queue"

	"github.com/sisoputnfrba/tp-2025-2c-nachos/machine"
)

// alarmEntry es un hilo dormido hasta wakeTime.
type alarmEntry struct {
	wakeTime uint64
	thread   *KThread
}

// Compare ordena por hora de despertar, la menor primero.
func (e *alarmEntry) Compare(other queue.Item) int {
	o := other.(*alarmEntry)
	switch {
	case e.wakeTime < o.wakeTime:
		return -1
	case e.wakeTime > o.wakeTime:
		return 1
	default:
		return 0
	}
}

// Alarm duerme hilos hasta una hora del reloj simulado. La hora se revisa solo en cada
// interrupción del timer, así que un hilo despierta en el primer tick de timer posterior.
type Alarm struct {
	k         *Kernel
	waitQueue *queue.PriorityQueue
}

func newAlarm(k *Kernel) *Alarm {
	a := &Alarm{
		k:         k,
		waitQueue: queue.NewPriorityQueue(16, true),
	}
	k.machine.Timer().SetInterruptHandler(a.timerInterrupt)
	return a
}

// WaitUntil duerme al hilo actual al menos ticks ticks.
func (a *Alarm) WaitUntil(ticks uint64) {
	if ticks == 0 {
		return
	}

	intr := a.k.machine.Interrupt()
	intStatus := intr.Disable()

	wakeTime := a.k.machine.Timer().Time() + ticks
	err := a.waitQueue.Put(&alarmEntry{wakeTime: wakeTime, thread: a.k.current})
	machine.Assert(err == nil, "no se pudo encolar el hilo dormido: %v", err)
	slog.Debug("Hilo dormido", "thread", a.k.current.name, "despierta", wakeTime)
	a.k.Sleep()

	intr.Restore(intStatus)
}

// Pending retorna la cantidad de hilos dormidos.
func (a *Alarm) Pending() int {
	return a.waitQueue.Len()
}

// timerInterrupt despierta a los hilos vencidos y cede la CPU del hilo actual.
func (a *Alarm) timerInterrupt() {
	now := a.k.machine.Timer().Time()

	for !a.waitQueue.Empty() {
		next := a.waitQueue.Peek().(*alarmEntry)
		if next.wakeTime > now {
			break
		}
		items, err := a.waitQueue.Get(1)
		if err != nil || len(items) == 0 {
			break
		}
		entry := items[0].(*alarmEntry)
		slog.Debug("Hilo despertado por alarma", "thread", entry.thread.name, "tick", now)
		entry.thread.Ready()
	}

	a.k.machine.Interrupt().YieldOnReturn()
}
