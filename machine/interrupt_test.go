package machine

import (
	"errors"
	"testing"
)

func TestInterrupt_EnableAdvancesClock(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)
	intr := m.Interrupt()

	if intr.Enabled() {
		t.Fatal("Expected interrupts to start disabled")
	}

	intr.Enable()
	if got := m.Stats().TotalTicks(); got != KernelTick {
		t.Errorf("Expected %d ticks after enabling, got %d", KernelTick, got)
	}

	intr.Enable()
	if got := m.Stats().TotalTicks(); got != KernelTick {
		t.Errorf("Expected enabling twice not to tick again, got %d", got)
	}

	old := intr.Disable()
	if !old {
		t.Error("Expected Disable to return the previous enabled status")
	}
	intr.Restore(old)
	if got := m.Stats().TotalTicks(); got != 2*KernelTick {
		t.Errorf("Expected %d ticks after restoring, got %d", 2*KernelTick, got)
	}
}

func TestInterrupt_HandlersRunInTimeOrder(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)
	intr := m.Interrupt()

	var fired []string
	intr.Schedule(30, "tercera", func() { fired = append(fired, "tercera") })
	intr.Schedule(10, "primera", func() { fired = append(fired, "primera") })
	intr.Schedule(20, "segunda", func() {
		if intr.Enabled() {
			t.Error("Expected handlers to run with interrupts disabled")
		}
		fired = append(fired, "segunda")
	})

	for i := 0; i < 2; i++ {
		intr.Enable()
		intr.Disable()
	}

	expected := []string{"primera", "segunda"}
	if len(fired) != len(expected) || fired[0] != expected[0] || fired[1] != expected[1] {
		t.Errorf("Expected %v, got %v", expected, fired)
	}
	if intr.Pending() != 1 {
		t.Errorf("Expected 1 pending interrupt, got %d", intr.Pending())
	}
}

func TestInterrupt_YieldOnReturnCallsHook(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)
	intr := m.Interrupt()

	yields := 0
	intr.SetYieldHook(func() { yields++ })
	intr.Schedule(5, "yield", func() { intr.YieldOnReturn() })

	intr.Enable()
	if yields != 1 {
		t.Errorf("Expected the yield hook to run once, got %d", yields)
	}
}

func TestInterrupt_YieldOnReturnOutsideHandler(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)

	defer func() {
		var ae *AssertionError
		r := recover()
		if err, ok := r.(error); !ok || !errors.As(err, &ae) {
			t.Errorf("Expected an AssertionError, got %v", r)
		}
	}()
	m.Interrupt().YieldOnReturn()
}

func TestInterrupt_IdleJumpsToNextInterrupt(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)
	intr := m.Interrupt()

	if intr.Idle() {
		t.Error("Expected Idle to return false with nothing scheduled")
	}

	fired := false
	yields := 0
	intr.SetYieldHook(func() { yields++ })
	intr.Schedule(1000, "disco", func() {
		fired = true
		intr.YieldOnReturn()
	})

	if !intr.Idle() {
		t.Fatal("Expected Idle to find the scheduled interrupt")
	}
	if !fired {
		t.Error("Expected the interrupt to fire")
	}
	if yields != 0 {
		t.Errorf("Expected Idle not to yield, got %d yields", yields)
	}

	snap := m.Stats().Snapshot()
	if snap.TotalTicks != 1000 || snap.IdleTicks != 1000 {
		t.Errorf("Expected 1000 total and idle ticks, got %+v", snap)
	}
}

func TestTimer_FiresEveryPeriod(t *testing.T) {
	config := DefaultConfig()
	config.TimerTicks = 100
	m := New(config, nil, nil)
	intr := m.Interrupt()

	fired := 0
	m.Timer().SetInterruptHandler(func() { fired++ })
	m.Start()

	// 10 ticks por cada reactivación
	for i := 0; i < 35; i++ {
		intr.Enable()
		intr.Disable()
	}

	if fired != 3 {
		t.Errorf("Expected the timer to fire 3 times in 350 ticks, got %d", fired)
	}
	if m.Timer().Time() != 350 {
		t.Errorf("Expected time 350, got %d", m.Timer().Time())
	}
}

func TestTimer_RandomizedStaysWithinSpread(t *testing.T) {
	config := DefaultConfig()
	config.TimerTicks = 100
	config.RandomizeTimer = true
	config.RandomSeed = 7
	m := New(config, nil, nil)
	intr := m.Interrupt()

	var times []uint64
	m.Timer().SetInterruptHandler(func() { times = append(times, m.Timer().Time()) })
	m.Start()

	for i := 0; i < 10; i++ {
		intr.Idle()
	}

	prev := uint64(0)
	for _, now := range times {
		if delta := now - prev; delta < 90 || delta > 110 {
			t.Errorf("Expected a period between 90 and 110, got %d", delta)
		}
		prev = now
	}
	if len(times) != 10 {
		t.Errorf("Expected 10 timer interrupts, got %d", len(times))
	}
}

func TestMachine_HaltIsRecordedOnce(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)
	first := errors.New("primero")

	m.stop(first)
	m.stop(errors.New("segundo"))
	m.Shutdown()

	select {
	case <-m.Halted():
	default:
		t.Fatal("Expected Halted to be closed")
	}
	if !m.IsHalted() {
		t.Error("Expected IsHalted to be true")
	}
	if !errors.Is(m.Err(), first) {
		t.Errorf("Expected the first error to win, got %v", m.Err())
	}
}

func TestMachine_RecoverPanicWrapsAssertion(t *testing.T) {
	m := New(DefaultConfig(), nil, nil)

	func() {
		defer m.RecoverPanic("prueba")
		Assert(false, "valor %d", 3)
	}()

	var kp *KernelPanic
	if !errors.As(m.Err(), &kp) {
		t.Fatalf("Expected KernelPanic, got %v", m.Err())
	}
	if kp.Thread != "prueba" || kp.Assertion == nil {
		t.Errorf("Expected an assertion in thread prueba, got %+v", kp)
	}
	var ae *AssertionError
	if !errors.As(m.Err(), &ae) {
		t.Error("Expected the KernelPanic to unwrap to the AssertionError")
	}
}
