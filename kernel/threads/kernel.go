package threads

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/sisoputnfrba/tp-2025-2c-nachos/machine"
)

// ErrNoRunnableThreads indica que la máquina se detuvo con hilos bloqueados y nada que los despierte.
var ErrNoRunnableThreads = errors.New("no hay hilos listos ni interrupciones pendientes")

// Kernel es el contexto del núcleo de hilos: una sola CPU simulada que se pasa de
// goroutine en goroutine. Todo su estado se toca con interrupciones deshabilitadas
// y desde el hilo que tiene la CPU.
type Kernel struct {
	machine    *machine.Machine
	scheduler  *Scheduler
	readyQueue ThreadQueue
	alarm      *Alarm
	current    *KThread
	nextID     int
	live       int
}

// NewKernel arma el kernel sobre m con la política de planificación indicada.
func NewKernel(m *machine.Machine, policy Policy) *Kernel {
	k := &Kernel{
		machine:   m,
		scheduler: NewScheduler(m.Interrupt(), policy),
	}
	k.readyQueue = k.scheduler.NewThreadQueue(false)
	k.alarm = newAlarm(k)

	m.Interrupt().SetYieldHook(k.preempt)

	slog.Debug("Kernel de hilos inicializado", "politica", policy.Name())
	return k
}

func (k *Kernel) Machine() *machine.Machine { return k.machine }
func (k *Kernel) Scheduler() *Scheduler     { return k.scheduler }
func (k *Kernel) Alarm() *Alarm             { return k.alarm }

// CurrentThread retorna el hilo que tiene la CPU.
func (k *Kernel) CurrentThread() *KThread {
	return k.current
}

// Run crea el hilo main con boot como cuerpo y le entrega la CPU. Bloquea hasta que la
// máquina se detenga y retorna el motivo (nil si fue un halt normal o si todos los hilos terminaron).
func (k *Kernel) Run(boot func()) error {
	main := k.NewThread("main", boot)
	main.status = statusRunning
	main.joinQueue.Acquire(main)
	k.current = main
	k.live++

	k.machine.Start()
	go main.runThread()
	main.wake <- struct{}{}

	<-k.machine.Halted()
	return k.machine.Err()
}

// Terminate detiene la máquina. No retorna.
func (k *Kernel) Terminate() {
	slog.Info("## Kernel finalizado")
	k.machine.Halt()
}

// Yield cede la CPU al próximo hilo listo, quedando el actual en la cola de listos.
func (k *Kernel) Yield() {
	intr := k.machine.Interrupt()
	cur := k.current
	slog.Debug("Yield", "thread", cur.name)

	intStatus := intr.Disable()
	cur.Ready()
	k.runNextThread()
	intr.Restore(intStatus)
}

// Sleep bloquea al hilo actual. Requiere interrupciones deshabilitadas: quien llama
// ya dejó al hilo en alguna cola para que otro lo despierte.
func (k *Kernel) Sleep() {
	machine.Assert(k.machine.Interrupt().Disabled(), "Sleep con interrupciones habilitadas")

	cur := k.current
	if cur.status != statusFinished {
		cur.status = statusBlocked
	}
	k.runNextThread()
}

// Finish termina el hilo actual y despierta a quienes lo esperan. No retorna.
func (k *Kernel) Finish() {
	k.machine.Interrupt().Disable()

	cur := k.current
	slog.Debug("Finaliza el hilo", "thread", cur.name)

	cur.status = statusFinished
	k.live--
	for t := cur.joinQueue.NextThread(); t != nil; t = cur.joinQueue.NextThread() {
		t.Ready()
	}

	k.runNextThread()
	machine.AssertNotReached("un hilo finalizado volvió a correr")
}

// preempt es el hook del timer: el hilo que estaba corriendo cede la CPU.
func (k *Kernel) preempt() {
	if k.current != nil && k.current.status == statusRunning {
		k.Yield()
	}
}

// runNextThread elige el próximo hilo y le pasa la CPU. Si no hay ninguno listo deja
// correr el reloj hasta que una interrupción despierte a alguien.
func (k *Kernel) runNextThread() {
	intr := k.machine.Interrupt()
	for {
		if next := k.readyQueue.NextThread(); next != nil {
			k.run(next)
			return
		}

		if k.alarm.Pending() == 0 || !intr.Idle() {
			k.idleHalt()
		}
	}
}

func (k *Kernel) idleHalt() {
	if k.live == 0 {
		slog.Debug("No quedan hilos, se detiene la máquina")
		k.machine.Halt()
	}
	k.machine.Fail(fmt.Errorf("%w: %d hilos bloqueados", ErrNoRunnableThreads, k.live))
}

// run pasa la CPU a next. El hilo que llama se estaciona hasta que alguien lo vuelva a
// elegir, o termina su goroutine si ya había finalizado.
func (k *Kernel) run(next *KThread) {
	machine.Assert(k.machine.Interrupt().Disabled(), "cambio de contexto con interrupciones habilitadas")

	prev := k.current
	prev.saveState()

	k.current = next
	next.status = statusRunning
	if next == prev {
		prev.restoreState()
		return
	}

	slog.Debug("Cambio de contexto", "desde", prev.name, "hacia", next.name)
	k.machine.Stats().ContextSwitch()

	finished := prev.status == statusFinished
	next.wake <- struct{}{}
	if finished {
		runtime.Goexit()
	}

	<-prev.wake
	prev.restoreState()
}
