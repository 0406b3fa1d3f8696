package threads

// Communicator empareja de a un hablante con un oyente por palabra. Un hablante no
// retorna hasta que un oyente tomó su palabra, y el buzón no acepta otra palabra hasta
// que ese hablante vio la entrega.
type Communicator struct {
	lock      *Lock
	speakers  *Condition
	listeners *Condition
	done      *Condition

	word  int
	full  bool
	taken bool
}

func NewCommunicator(k *Kernel) *Communicator {
	lock := NewLock(k)
	return &Communicator{
		lock:      lock,
		speakers:  NewCondition(lock),
		listeners: NewCondition(lock),
		done:      NewCondition(lock),
	}
}

// Speak deja word en el buzón y espera a que algún oyente la tome.
func (c *Communicator) Speak(word int) {
	c.lock.Acquire()

	for c.full {
		c.speakers.Sleep()
	}
	c.word = word
	c.full = true
	c.listeners.Wake()

	for !c.taken {
		c.done.Sleep()
	}
	c.full = false
	c.taken = false
	c.speakers.Wake()

	c.lock.Release()
}

// Listen espera una palabra y la retorna.
func (c *Communicator) Listen() int {
	c.lock.Acquire()

	for !c.full || c.taken {
		c.listeners.Sleep()
	}
	word := c.word
	c.taken = true
	c.done.Wake()

	c.lock.Release()
	return word
}
