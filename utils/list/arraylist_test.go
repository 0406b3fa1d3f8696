package list

import (
	"testing"
)

type waiter struct {
	id      int
	tickets int
}

func TestArrayList_Add(t *testing.T) {
	list := &ArrayList[int]{}

	list.Add(10)
	list.Add(20)

	if list.Size() != 2 {
		t.Errorf("Expected size 2, got %d", list.Size())
	}
}

func TestArrayList_RemoveWhereKeepsOrder(t *testing.T) {
	list := &ArrayList[waiter]{}
	for i := 1; i <= 4; i++ {
		list.Add(waiter{id: i, tickets: i * 10})
	}

	if !list.RemoveWhere(func(w waiter) bool { return w.id == 2 }) {
		t.Fatal("Expected RemoveWhere to remove id 2")
	}
	if list.RemoveWhere(func(w waiter) bool { return w.id == 2 }) {
		t.Error("Expected second RemoveWhere to find nothing")
	}

	var ids []int
	list.ForEach(func(w waiter) {
		ids = append(ids, w.id)
	})

	expected := []int{1, 3, 4}
	if len(ids) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, ids)
	}
	for i := range expected {
		if ids[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, ids)
			break
		}
	}
}

func TestArrayList_GetAllReturnsCopy(t *testing.T) {
	list := &ArrayList[int]{}
	list.Add(1)
	list.Add(2)

	items := list.GetAll()
	items[0] = 100

	if internal := list.GetAll(); internal[0] != 1 {
		t.Errorf("Expected internal value 1, got %d", internal[0])
	}
}
