package threads

import (
	"errors"
	"testing"

	"github.com/sisoputnfrba/tp-2025-2c-nachos/machine"
)

func newTestKernel(t *testing.T, policy string) *Kernel {
	t.Helper()

	m := machine.New(machine.DefaultConfig(), nil, nil)
	p, err := NewPolicy(policy, m.Rand())
	if err != nil {
		t.Fatalf("Expected policy %q, got error %v", policy, err)
	}
	return NewKernel(m, p)
}

func TestKernel_ForkAndJoin(t *testing.T) {
	k := newTestKernel(t, PolicyRoundRobin)

	var order []string
	err := k.Run(func() {
		t1 := k.NewThread("t1", func() { order = append(order, "t1") })
		t2 := k.NewThread("t2", func() { order = append(order, "t2") })
		t1.Fork()
		t2.Fork()

		t1.Join()
		t2.Join()
		order = append(order, "main")
	})

	if err != nil {
		t.Fatalf("Expected clean halt, got %v", err)
	}
	if len(order) != 3 || order[2] != "main" {
		t.Errorf("Expected main to run after both children, got %v", order)
	}
}

func TestKernel_JoinFinishedThreadReturns(t *testing.T) {
	k := newTestKernel(t, PolicyLottery)

	ran := false
	err := k.Run(func() {
		child := k.NewThread("child", func() { ran = true })
		child.Fork()
		for !child.Finished() {
			k.Yield()
		}
		child.Join()
	})

	if err != nil {
		t.Fatalf("Expected clean halt, got %v", err)
	}
	if !ran {
		t.Error("Expected child to run")
	}
}

func TestKernel_TerminateStopsMachine(t *testing.T) {
	k := newTestKernel(t, PolicyLottery)

	after := false
	err := k.Run(func() {
		k.Terminate()
		after = true
	})

	if err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
	if after {
		t.Error("Expected Terminate not to return")
	}
	if !k.Machine().IsHalted() {
		t.Error("Expected machine to be halted")
	}
}

func TestKernel_BlockedForeverFails(t *testing.T) {
	k := newTestKernel(t, PolicyLottery)

	err := k.Run(func() {
		l := NewLock(k)
		c := NewCondition(l)
		l.Acquire()
		c.Sleep()
	})

	if !errors.Is(err, ErrNoRunnableThreads) {
		t.Errorf("Expected ErrNoRunnableThreads, got %v", err)
	}
}

func TestKernel_AssertionBecomesKernelPanic(t *testing.T) {
	k := newTestKernel(t, PolicyLottery)

	err := k.Run(func() {
		machine.Assert(false, "boom")
	})

	var kp *machine.KernelPanic
	if !errors.As(err, &kp) {
		t.Fatalf("Expected KernelPanic, got %v", err)
	}
	if kp.Thread != "main" {
		t.Errorf("Expected panic in main, got %s", kp.Thread)
	}
	if kp.Assertion == nil {
		t.Error("Expected assertion to be recorded")
	}
}

func TestKernel_TimerPreemptsBusyThreads(t *testing.T) {
	k := newTestKernel(t, PolicyRoundRobin)

	var seen []int
	err := k.Run(func() {
		var children []*KThread
		for i := 0; i < 2; i++ {
			id := i
			child := k.NewThread("busy", func() {
				intr := k.Machine().Interrupt()
				for x := 0; x < 200; x++ {
					// Cada habilitación avanza el reloj y puede disparar el timer.
					intr.Restore(intr.Disable())
				}
				seen = append(seen, id)
			})
			children = append(children, child)
			child.Fork()
		}
		for _, child := range children {
			child.Join()
		}
	})

	if err != nil {
		t.Fatalf("Expected clean halt, got %v", err)
	}
	if len(seen) != 2 {
		t.Errorf("Expected both threads to finish, got %v", seen)
	}
	if k.Machine().Stats().Snapshot().ContextSwitches < 4 {
		t.Errorf("Expected timer preemption, got %d context switches", k.Machine().Stats().Snapshot().ContextSwitches)
	}
}
