package container

import (
	"fmt"
	"log"
)

// ListNode 双向链表中的节点
// 功能：保存一个值及其前后指针
// 说明：节点同一时刻只能属于一个链表，重复插入会panic
type ListNode[T any] struct {
	parent     *List[T]
	prev, next *ListNode[T]
	Value      T
}

// NewListNode 创建一个尚未加入任何链表的节点
func NewListNode[T any](value T) *ListNode[T] {
	return &ListNode[T]{Value: value}
}

func (n *ListNode[T]) String() string {
	return fmt.Sprintf("Node{Value:%+v}", n.Value)
}

// Prev 前驱节点，第一个节点返回nil
func (n *ListNode[T]) Prev() *ListNode[T] {
	return n.prev
}

// Next 后继节点，最后一个节点返回nil
func (n *ListNode[T]) Next() *ListNode[T] {
	return n.next
}

// Parent 节点所在的链表
func (n *ListNode[T]) Parent() *List[T] {
	return n.parent
}

// InsertBefore 在当前节点之前插入新节点
func (n *ListNode[T]) InsertBefore(add *ListNode[T]) {
	if add.parent != nil {
		log.Panic("insert node who already in list")
	}
	add.parent = n.parent
	add.next = n
	add.prev = n.prev
	n.prev = add
	if add.prev != nil {
		add.prev.next = add
	} else {
		add.parent.head = add
	}
	n.parent.length++
}

// InsertAfter 在当前节点之后插入新节点
func (n *ListNode[T]) InsertAfter(add *ListNode[T]) {
	if add.parent != nil {
		log.Panic("insert node who already in list")
	}
	add.parent = n.parent
	add.prev = n
	add.next = n.next
	n.next = add
	if add.next != nil {
		add.next.prev = add
	} else {
		add.parent.tail = add
	}
	n.parent.length++
}

// List 双向链表
// 功能：车道排队等场景使用的通用链表，头部为最早插入的元素
type List[T any] struct {
	ID         string
	head, tail *ListNode[T]
	length     int
}

func (l *List[T]) String() string {
	return fmt.Sprintf("List{ID:%v, Len:%d}", l.ID, l.length)
}

// Values 按从头到尾的顺序返回所有节点的值
func (l *List[T]) Values() []T {
	values := make([]T, l.length)
	for i, node := 0, l.head; node != nil; i, node = i+1, node.next {
		values[i] = node.Value
	}
	return values
}

// Len 链表长度
func (l *List[T]) Len() int {
	return l.length
}

// PushFront 向链表头部插入节点
func (l *List[T]) PushFront(add *ListNode[T]) {
	if add.parent != nil {
		log.Panic("push front node who already in list")
	}
	add.next = nil
	add.prev = nil
	if l.head == nil {
		add.parent = l
		l.head = add
		l.tail = add
		l.length++
	} else {
		// length++和add.parent在InsertBefore中处理
		l.head.InsertBefore(add)
	}
}

// PushBack 向链表尾部插入节点
func (l *List[T]) PushBack(add *ListNode[T]) {
	if add.parent != nil {
		log.Panic("push back node who already in list")
	}
	add.next = nil
	add.prev = nil
	if l.tail == nil {
		add.parent = l
		l.head = add
		l.tail = add
		l.length++
	} else {
		// length++和add.parent在InsertAfter中处理
		l.tail.InsertAfter(add)
	}
}

// Remove 从链表中移除节点
// 说明：节点不属于本链表时panic
func (l *List[T]) Remove(node *ListNode[T]) {
	if node.parent != l {
		log.Panic("remove node from wrong list")
	}
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	node.parent = nil
	l.length--
}

// First 头部节点，空链表返回nil
func (l *List[T]) First() *ListNode[T] {
	return l.head
}

// Last 尾部节点，空链表返回nil
func (l *List[T]) Last() *ListNode[T] {
	return l.tail
}
