package cache

// lruNode is one element of an lruList. It remembers its key so that the
// owning shard can drop the map entry when the node is evicted.
type lruNode[K comparable] struct {
	key        K
	prev, next *lruNode[K]
}

// lruList orders keys from most recently used (front) to least recently
// used (back). It is not safe for concurrent use; the owning shard locks.
type lruList[K comparable] struct {
	front, back *lruNode[K]
	n           int
}

func (l *lruList[K]) Len() int { return l.n }

// PushFront inserts key as the most recently used element.
func (l *lruList[K]) PushFront(key K) *lruNode[K] {
	node := &lruNode[K]{key: key}
	l.linkFront(node)
	return node
}

// Touch marks node as the most recently used element.
func (l *lruList[K]) Touch(node *lruNode[K]) {
	if node == nil || node == l.front {
		return
	}
	l.unlink(node)
	l.linkFront(node)
}

// Remove detaches node from the list.
func (l *lruList[K]) Remove(node *lruNode[K]) {
	if node != nil {
		l.unlink(node)
	}
}

// PopBack removes the least recently used element and returns its key.
func (l *lruList[K]) PopBack() (K, bool) {
	node := l.back
	if node == nil {
		var zero K
		return zero, false
	}
	l.unlink(node)
	return node.key, true
}

// Reset empties the list.
func (l *lruList[K]) Reset() {
	l.front, l.back, l.n = nil, nil, 0
}

func (l *lruList[K]) linkFront(node *lruNode[K]) {
	node.prev = nil
	node.next = l.front
	if l.front != nil {
		l.front.prev = node
	} else {
		l.back = node
	}
	l.front = node
	l.n++
}

func (l *lruList[K]) unlink(node *lruNode[K]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.front = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.back = node.prev
	}
	node.prev, node.next = nil, nil
	l.n--
}
