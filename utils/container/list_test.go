package container_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/junction-sim/utils/container"
)

func TestListInit(t *testing.T) {
	l := &container.List[int]{}
	assert.Nil(t, l.First())
	assert.Nil(t, l.Last())
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Values())
}

func TestListOperation(t *testing.T) {
	l := &container.List[int]{}

	// test: insert

	// ^, 1, ^
	n1 := container.NewListNode(1)
	l.PushBack(n1)
	// ^, 2, 1, ^
	n2 := container.NewListNode(2)
	l.PushFront(n2)
	// ^, 3, 2, 1, ^
	n3 := container.NewListNode(3)
	n2.InsertBefore(n3)
	// ^, 3, 2, 1, 4, ^
	n4 := container.NewListNode(4)
	n1.InsertAfter(n4)
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, []int{3, 2, 1, 4}, l.Values())

	// test: first last next prev

	n := l.First()
	assert.Equal(t, n3, n)
	n = n.Next()
	assert.Equal(t, n2, n)
	n = n.Next()
	assert.Equal(t, n1, n)
	assert.Equal(t, n, n.Next().Prev())
	assert.Equal(t, n, n.Prev().Next())
	assert.Equal(t, n4, l.Last())
	assert.Equal(t, l, n4.Parent())

	// test: remove

	l.Remove(n3)
	assert.Equal(t, n2, l.First())
	l.Remove(n4)
	assert.Equal(t, n1, l.Last())
	assert.Equal(t, 2, l.Len())
	assert.Nil(t, n4.Parent())

	// 移除后的节点可以再次插入
	l.PushBack(n4)
	assert.Equal(t, []int{2, 1, 4}, l.Values())
}

func TestListPanicsOnForeignNode(t *testing.T) {
	a := &container.List[int]{}
	b := &container.List[int]{}
	n := container.NewListNode(1)
	a.PushBack(n)
	assert.Panics(t, func() { b.Remove(n) })
	assert.Panics(t, func() { b.PushBack(n) })
}

func TestPriorityQueueStableOrder(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	q.Push("b", -3)
	q.Push("a", -5)
	q.Push("c", -3)
	q.Push("d", 0)
	q.Heapify()
	assert.Equal(t, "a", q.First())

	order := make([]string, 0)
	for q.Len() > 0 {
		v, _ := q.HeapPop()
		order = append(order, v)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)

	q.HeapPush("x", 1)
	q.HeapPush("y", 1)
	v, p := q.HeapPop()
	assert.Equal(t, "x", v)
	assert.Equal(t, 1.0, p)
}

func TestInboxDrainAndRequeue(t *testing.T) {
	b := container.NewInbox[int]()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Add(1)
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, b.Len())
	assert.Len(t, b.Drain(), 100)
	assert.Equal(t, 0, b.Len())

	b.Add(3)
	b.Requeue([]int{1, 2})
	assert.Equal(t, []int{1, 2, 3}, b.Drain())
	b.Requeue(nil)
	assert.Empty(t, b.Drain())
}
