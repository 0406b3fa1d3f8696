package threads

import (
	"fmt"
	"testing"
)

func TestAlarm_WaitUntilSleepsAtLeastTicks(t *testing.T) {
	k := newTestKernel(t, PolicyLottery)
	period := uint64(k.Machine().Config().TimerTicks)

	var start, end uint64
	err := k.Run(func() {
		start = k.Machine().Timer().Time()
		k.Alarm().WaitUntil(1000)
		end = k.Machine().Timer().Time()
	})

	if err != nil {
		t.Fatalf("Expected clean halt, got %v", err)
	}
	if end < start+1000 {
		t.Errorf("Expected to wake at or after %d, got %d", start+1000, end)
	}
	if end >= start+1000+period+100 {
		t.Errorf("Expected to wake before %d, got %d", start+1000+period+100, end)
	}
}

func TestAlarm_WakesInDeadlineOrder(t *testing.T) {
	k := newTestKernel(t, PolicyLottery)

	var order []uint64
	err := k.Run(func() {
		var sleepers []*KThread
		for _, d := range []uint64{3000, 1000, 2000} {
			delay := d
			th := k.NewThread(fmt.Sprintf("sleep %d", delay), func() {
				k.Alarm().WaitUntil(delay)
				order = append(order, delay)
			})
			sleepers = append(sleepers, th)
			th.Fork()
		}
		for _, th := range sleepers {
			th.Join()
		}
	})

	if err != nil {
		t.Fatalf("Expected clean halt, got %v", err)
	}
	expected := []uint64{1000, 2000, 3000}
	if fmt.Sprint(order) != fmt.Sprint(expected) {
		t.Errorf("Expected wake order %v, got %v", expected, order)
	}
}

func TestAlarm_ZeroReturnsImmediately(t *testing.T) {
	k := newTestKernel(t, PolicyLottery)

	var start, end uint64
	err := k.Run(func() {
		start = k.Machine().Timer().Time()
		k.Alarm().WaitUntil(0)
		end = k.Machine().Timer().Time()
	})

	if err != nil {
		t.Fatalf("Expected clean halt, got %v", err)
	}
	if end != start {
		t.Errorf("Expected no time to pass, got %d ticks", end-start)
	}
	if k.Alarm().Pending() != 0 {
		t.Errorf("Expected no pending sleepers, got %d", k.Alarm().Pending())
	}
}
