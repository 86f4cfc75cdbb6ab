package lstorage

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// queryable is the lookup capability every tier offers. The engine walks
// tiers through this interface only, so the read path never cares whether
// a value lives in memory, in a segment, or in the log.
type queryable interface {
	// get returns the value stored for the key in this tier. A miss is
	// reported through the second return value, not an error.
	get(key string) (value string, found bool, err error)
}

// tierList represents a linked list for tiers.
// Each tier is arranged in order of newest to oldest. That is, the head
// node is always the newest, the tail node is the oldest. Only the head
// tier, the live memtable, may be written; everything behind it is an
// immutable segment.
//
// FYI: Tiers are added at the head on flush and swapped in place when a
// memtable is exchanged for the segment built from it; nothing ever gets
// taken out by index. That's why a linked list is suitable.
type tierList interface {
	// insert appends a new node to the head.
	insert(tier queryable)
	// swap replaces the old tier with the new one.
	swap(old, new queryable) error
	// getHead gives back the head node which is the newest one.
	getHead() queryable
	// size returns the size of itself.
	size() int
	// newIterator gives back the iterator object for this list.
	// If you need to inspect all nodes within the list, use this one.
	newIterator() tierIterator
}

// tierIterator represents an iterator for the tier list. The basic usage is:
/*
  for iterator.next() {
    tier, err := iterator.value()
    // Do something with tier
  }
*/
type tierIterator interface {
	// next positions the iterator at the next node in the list.
	// It will be positioned at the head on the first call.
	// The return value will be true if a value can be read from the list.
	next() bool
	// value gives back the current tier in the iterator.
	value() (queryable, error)

	currentNode() *tierNode
}

type tierListImpl struct {
	numTiers int64
	head     *tierNode
	tail     *tierNode
	mu       sync.RWMutex
}

func newTierList() tierList {
	return &tierListImpl{}
}

func (t *tierListImpl) getHead() queryable {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.head.value()
}

func (t *tierListImpl) insert(tier queryable) {
	node := &tierNode{
		val: tier,
	}
	t.mu.RLock()
	head := t.head
	t.mu.RUnlock()
	if head != nil {
		node.next = head
	}

	t.setHead(node)
	atomic.AddInt64(&t.numTiers, 1)
}

func (t *tierListImpl) swap(old, new queryable) error {
	if t.size() <= 0 {
		return fmt.Errorf("empty tier list")
	}

	// Iterate over itself from the head.
	var prev, next *tierNode
	iterator := t.newIterator()
	for iterator.next() {
		current := iterator.currentNode()
		if current.value() != old {
			prev = current
			continue
		}

		// Swap the current node.

		newNode := &tierNode{
			val:  new,
			next: current.next,
		}
		iterator.next()
		next = iterator.currentNode()
		switch {
		case prev == nil:
			// swapping the head node
			t.setHead(newNode)
		case next == nil:
			// swapping the tail node
			prev.setNext(newNode)
			t.setTail(newNode)
		default:
			// swapping the middle node
			prev.setNext(newNode)
		}
		return nil
	}

	return fmt.Errorf("the given tier was not found")
}

func (t *tierListImpl) size() int {
	return int(atomic.LoadInt64(&t.numTiers))
}

func (t *tierListImpl) newIterator() tierIterator {
	t.mu.RLock()
	head := t.head
	t.mu.RUnlock()
	// Put a dummy node so that it positions the head on the first next() call.
	dummy := &tierNode{
		next: head,
	}
	return &tierIteratorImpl{
		current: dummy,
	}
}

func (t *tierListImpl) setHead(node *tierNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.head = node
}

func (t *tierListImpl) setTail(node *tierNode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tail = node
}

// tierNode wraps a tier to hold the pointer to the next one.
type tierNode struct {
	// val is immutable
	val  queryable
	next *tierNode
	mu   sync.RWMutex
}

// value gives back the actual tier of the node.
func (n *tierNode) value() queryable {
	return n.val
}

func (n *tierNode) setNext(node *tierNode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next = node
}

func (n *tierNode) getNext() *tierNode {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.next
}

type tierIteratorImpl struct {
	current *tierNode
}

func (i *tierIteratorImpl) next() bool {
	if i.current == nil {
		return false
	}
	next := i.current.getNext()
	i.current = next
	return i.current != nil
}

func (i *tierIteratorImpl) value() (queryable, error) {
	if i.current == nil {
		return nil, fmt.Errorf("tier not found")
	}
	return i.current.value(), nil
}

func (i *tierIteratorImpl) currentNode() *tierNode {
	return i.current
}
