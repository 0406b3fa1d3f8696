package threads

import (
	"fmt"

	"github.com/sisoputnfrba/tp-2025-2c-nachos/machine"
)

type threadStatus int

const (
	statusNew threadStatus = iota
	statusReady
	statusRunning
	statusBlocked
	statusFinished
)

var statusNames = [...]string{"NEW", "READY", "RUNNING", "BLOCKED", "FINISHED"}

func (s threadStatus) String() string {
	return statusNames[s]
}

// KThread es un hilo del kernel. Cada uno corre en su propia goroutine, pero solo
// avanza cuando recibe la CPU por su canal wake.
type KThread struct {
	k         *Kernel
	id        int
	name      string
	status    threadStatus
	target    func()
	wake      chan struct{}
	joinQueue ThreadQueue
	sched     threadID
	owner     any

	onSave    func()
	onRestore func()
}

// NewThread crea un hilo que ejecutará target cuando se le haga Fork.
func (k *Kernel) NewThread(name string, target func()) *KThread {
	t := &KThread{
		k:      k,
		id:     k.nextID,
		name:   name,
		target: target,
		wake:   make(chan struct{}, 1),
		sched:  noThread,
	}
	k.nextID++
	t.joinQueue = k.scheduler.NewThreadQueue(true)
	return t
}

func (t *KThread) ID() int         { return t.id }
func (t *KThread) Name() string    { return t.name }
func (t *KThread) Finished() bool  { return t.status == statusFinished }
func (t *KThread) String() string  { return fmt.Sprintf("%s (#%d)", t.name, t.id) }
func (t *KThread) Owner() any      { return t.owner }
func (t *KThread) SetOwner(o any)  { t.owner = o }
func (t *KThread) Kernel() *Kernel { return t.k }

// SetStateHooks registra qué hacer al perder y al recuperar la CPU. Los hilos de
// usuario guardan y restauran ahí sus registros y su tabla de páginas.
func (t *KThread) SetStateHooks(save, restore func()) {
	t.onSave = save
	t.onRestore = restore
}

// Fork pone al hilo en la cola de listos.
func (t *KThread) Fork() {
	machine.Assert(t.status == statusNew, "fork de %s en estado %s", t, t.status)
	machine.Assert(t.target != nil, "fork de %s sin cuerpo", t)

	intr := t.k.machine.Interrupt()
	intStatus := intr.Disable()

	t.joinQueue.Acquire(t)
	t.k.live++
	go t.runThread()
	t.Ready()

	intr.Restore(intStatus)
}

// Ready marca al hilo como listo y lo encola. Requiere interrupciones deshabilitadas.
func (t *KThread) Ready() {
	machine.Assert(t.k.machine.Interrupt().Disabled(), "Ready con interrupciones habilitadas")
	machine.Assert(t.status != statusReady, "%s ya estaba listo", t)

	t.status = statusReady
	t.k.readyQueue.WaitForAccess(t)
}

// Join bloquea al hilo actual hasta que t termine. Si ya terminó retorna enseguida.
func (t *KThread) Join() {
	cur := t.k.current
	machine.Assert(t != cur, "%s no puede hacer join consigo mismo", t)

	intr := t.k.machine.Interrupt()
	intStatus := intr.Disable()
	if t.status != statusFinished {
		t.joinQueue.WaitForAccess(cur)
		t.k.Sleep()
	}
	intr.Restore(intStatus)
}

func (t *KThread) runThread() {
	defer t.k.machine.RecoverPanic(t.name)

	<-t.wake
	t.begin()
	t.target()
	t.k.Finish()
}

func (t *KThread) begin() {
	t.restoreState()
	t.k.machine.Interrupt().Enable()
}

func (t *KThread) saveState() {
	if t.onSave != nil {
		t.onSave()
	}
}

func (t *KThread) restoreState() {
	if t.onRestore != nil {
		t.onRestore()
	}
}
