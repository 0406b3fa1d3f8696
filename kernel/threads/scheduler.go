package threads

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sisoputnfrba/tp-2025-2c-nachos/machine"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/utils/list"
)

var ErrInvalidPriority = errors.New("prioridad fuera de rango")

// ThreadQueue es una cola de hilos que esperan un recurso (lock, join, CPU).
// Todas sus operaciones requieren interrupciones deshabilitadas.
type ThreadQueue interface {
	// WaitForAccess encola t. Si t era dueño de la cola, primero la libera.
	WaitForAccess(t *KThread)
	// NextThread elige al próximo hilo, le da la cola y lo saca de la espera. Nil si no hay nadie.
	NextThread() *KThread
	// Acquire le da la cola a t sin competencia.
	Acquire(t *KThread)
}

type (
	threadID int
	queueID  int
)

const noThread threadID = -1

// threadState es el nodo de un hilo en el grafo de donación.
type threadState struct {
	id        threadID
	thread    *KThread
	priority  int
	effective int
	acquired  map[queueID]struct{}
	waiting   map[queueID]struct{}
}

// queueState es el nodo de una cola en el grafo de donación.
type queueState struct {
	id       queueID
	transfer bool
	owner    threadID
	waiting  *list.ArrayList[threadID]
	total    int
}

// Scheduler decide qué hilo avanza en cada cola. Hilos y colas viven en dos arenas
// indexadas por enteros; las aristas del grafo de donación son esos índices.
// La política define cómo se combinan las donaciones y cómo se elige al ganador.
type Scheduler struct {
	intr    *machine.Interrupt
	policy  Policy
	threads []*threadState
	queues  []*queueState
}

func NewScheduler(intr *machine.Interrupt, policy Policy) *Scheduler {
	return &Scheduler{intr: intr, policy: policy}
}

func (s *Scheduler) Policy() Policy { return s.policy }

// NewThreadQueue crea una cola. Con transferPriority los que esperan donan su
// prioridad efectiva al dueño.
func (s *Scheduler) NewThreadQueue(transferPriority bool) ThreadQueue {
	q := &queueState{
		id:       queueID(len(s.queues)),
		transfer: transferPriority,
		owner:    noThread,
		waiting:  &list.ArrayList[threadID]{},
	}
	s.queues = append(s.queues, q)
	return &resourceQueue{s: s, q: q}
}

// Priority retorna la prioridad base (tickets) de t.
func (s *Scheduler) Priority(t *KThread) int {
	s.assertDisabled()
	return s.state(t).priority
}

// EffectivePriority retorna la prioridad base más lo donado a t.
func (s *Scheduler) EffectivePriority(t *KThread) int {
	s.assertDisabled()
	return s.state(t).effective
}

// SetPriority fija la prioridad base de t y propaga el cambio por el grafo de donación.
func (s *Scheduler) SetPriority(t *KThread, priority int) error {
	s.assertDisabled()

	limits := s.policy.Limits()
	if priority < limits.Min || priority > limits.Max {
		return fmt.Errorf("%w: %d no está en [%d, %d]", ErrInvalidPriority, priority, limits.Min, limits.Max)
	}

	ts := s.state(t)
	if ts.priority == priority {
		return nil
	}
	ts.priority = priority
	slog.Debug("Cambio de prioridad", "thread", t.name, "prioridad", priority)
	s.update(ts)
	return nil
}

// IncreasePriority sube en uno la prioridad de t. Retorna false si ya estaba en el máximo.
func (s *Scheduler) IncreasePriority(t *KThread) bool {
	return s.SetPriority(t, s.Priority(t)+1) == nil
}

// DecreasePriority baja en uno la prioridad de t. Retorna false si ya estaba en el mínimo.
func (s *Scheduler) DecreasePriority(t *KThread) bool {
	return s.SetPriority(t, s.Priority(t)-1) == nil
}

func (s *Scheduler) assertDisabled() {
	machine.Assert(s.intr.Disabled(), "el planificador requiere interrupciones deshabilitadas")
}

func (s *Scheduler) state(t *KThread) *threadState {
	if t.sched != noThread {
		return s.threads[t.sched]
	}

	def := s.policy.Limits().Default
	ts := &threadState{
		id:        threadID(len(s.threads)),
		thread:    t,
		priority:  def,
		effective: def,
		acquired:  make(map[queueID]struct{}),
		waiting:   make(map[queueID]struct{}),
	}
	s.threads = append(s.threads, ts)
	t.sched = ts.id
	return ts
}

func (s *Scheduler) waitForAccess(q *queueState, ts *threadState) {
	s.release(q, ts)

	if _, ok := ts.waiting[q.id]; ok {
		return
	}
	ts.waiting[q.id] = struct{}{}
	q.waiting.Add(ts.id)
	q.total += ts.effective

	if q.transfer && q.owner != noThread {
		s.update(s.threads[q.owner])
	}
}

func (s *Scheduler) nextThread(q *queueState) *threadState {
	if q.waiting.Size() == 0 {
		return nil
	}

	ids := q.waiting.GetAll()
	candidates := make([]*threadState, len(ids))
	for i, id := range ids {
		candidates[i] = s.threads[id]
	}

	winner := s.policy.Pick(candidates, q.total)
	s.acquire(q, winner)
	return winner
}

func (s *Scheduler) acquire(q *queueState, ts *threadState) {
	if q.owner == ts.id {
		return
	}
	if q.owner != noThread {
		s.release(q, s.threads[q.owner])
	}

	s.removeWaiter(q, ts)
	q.owner = ts.id
	ts.acquired[q.id] = struct{}{}
	s.update(ts)
}

func (s *Scheduler) release(q *queueState, ts *threadState) {
	if q.owner != ts.id {
		return
	}
	delete(ts.acquired, q.id)
	q.owner = noThread
	s.update(ts)
}

func (s *Scheduler) removeWaiter(q *queueState, ts *threadState) {
	if _, ok := ts.waiting[q.id]; !ok {
		return
	}
	delete(ts.waiting, q.id)
	q.waiting.RemoveWhere(func(id threadID) bool { return id == ts.id })
	q.total -= ts.effective

	if q.transfer && q.owner != noThread {
		s.update(s.threads[q.owner])
	}
}

// update recalcula la prioridad efectiva de ts y, si cambió, la propaga a las colas
// donde espera y desde ahí a sus dueños. Un ciclo en el grafo es un error fatal.
func (s *Scheduler) update(ts *threadState) {
	s.propagate(ts, make(map[threadID]bool))
}

func (s *Scheduler) propagate(ts *threadState, path map[threadID]bool) {
	machine.Assert(!path[ts.id], "ciclo de donación en %s", ts.thread)
	path[ts.id] = true

	effective := ts.priority
	for qid := range ts.acquired {
		q := s.queues[qid]
		if !q.transfer {
			continue
		}
		q.waiting.ForEach(func(id threadID) {
			effective = s.policy.Combine(effective, s.threads[id].effective)
		})
	}

	if effective != ts.effective {
		delta := effective - ts.effective
		ts.effective = effective

		for qid := range ts.waiting {
			q := s.queues[qid]
			q.total += delta
			if q.transfer && q.owner != noThread {
				s.propagate(s.threads[q.owner], path)
			}
		}
	}

	delete(path, ts.id)
}

// resourceQueue es la vista de una cola que reciben los primitivos de sincronización.
type resourceQueue struct {
	s *Scheduler
	q *queueState
}

func (rq *resourceQueue) WaitForAccess(t *KThread) {
	rq.s.assertDisabled()
	rq.s.waitForAccess(rq.q, rq.s.state(t))
}

func (rq *resourceQueue) NextThread() *KThread {
	rq.s.assertDisabled()
	if ts := rq.s.nextThread(rq.q); ts != nil {
		return ts.thread
	}
	return nil
}

func (rq *resourceQueue) Acquire(t *KThread) {
	rq.s.assertDisabled()
	rq.s.acquire(rq.q, rq.s.state(t))
}

// Owner retorna el dueño actual de la cola, o nil.
func (rq *resourceQueue) Owner() *KThread {
	if rq.q.owner == noThread {
		return nil
	}
	return rq.s.threads[rq.q.owner].thread
}

// Waiting retorna la cantidad de hilos en espera.
func (rq *resourceQueue) Waiting() int {
	return rq.q.waiting.Size()
}

// TotalEffective retorna la suma cacheada de prioridades efectivas de quienes esperan.
func (rq *resourceQueue) TotalEffective() int {
	return rq.q.total
}
