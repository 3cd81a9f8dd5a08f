package index

import (
	"iter"

	"reclaim/domain/addr"
)

type avlNode struct {
	key    addr.Address
	height int
	marked bool
	left   *avlNode
	right  *avlNode
}

// AVLTree is a height-balanced binary search tree keyed by address.
// Every node's subtree heights differ by at most one, so insert, contains
// and mark are O(log n) regardless of insertion order.
type AVLTree struct {
	root *avlNode
	size int

	// path is reused across inserts to avoid allocating per call.
	path []**avlNode
}

func NewAVLTree() *AVLTree {
	return &AVLTree{}
}

// ---- public API ----

func (t *AVLTree) Len() int { return t.size }

func (t *AVLTree) Insert(key addr.Address) bool {
	path := t.path[:0]
	link := &t.root
	for *link != nil {
		n := *link
		switch {
		case key < n.key:
			path = append(path, link)
			link = &n.left
		case key > n.key:
			path = append(path, link)
			link = &n.right
		default:
			t.path = path[:0]
			return false
		}
	}
	*link = &avlNode{key: key, height: 1}
	t.size++

	// Walk back up; each link is a field of its parent, so rebalancing a
	// subtree rewires the parent in place.
	for i := len(path) - 1; i >= 0; i-- {
		*path[i] = rebalance(*path[i])
	}
	t.path = path[:0]
	return true
}

func (t *AVLTree) Contains(key addr.Address) bool {
	return t.find(key) != nil
}

func (t *AVLTree) Mark(key addr.Address) bool {
	n := t.find(key)
	if n == nil {
		return false
	}
	n.marked = true
	return true
}

func (t *AVLTree) BuildFrom(keys []addr.Address) int {
	added := 0
	for _, k := range keys {
		if t.Insert(k) {
			added++
		}
	}
	return added
}

func (t *AVLTree) Ascend() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		t.walk(func(n *avlNode) bool {
			return yield(Entry{Key: n.key, Marked: n.marked})
		})
	}
}

func (t *AVLTree) Sweep() (freed, survivors []addr.Address) {
	t.walk(func(n *avlNode) bool {
		if n.marked {
			survivors = append(survivors, n.key)
		} else {
			freed = append(freed, n.key)
		}
		return true
	})
	t.Reset()
	t.BuildFrom(survivors)
	return freed, survivors
}

func (t *AVLTree) Reset() {
	t.root = nil
	t.size = 0
}

// Height returns the height of the tree; an empty tree has height 0.
func (t *AVLTree) Height() int { return height(t.root) }

// ---- internal helpers ----

func (t *AVLTree) find(key addr.Address) *avlNode {
	n := t.root
	for n != nil {
		switch {
		case key < n.key:
			n = n.left
		case key > n.key:
			n = n.right
		default:
			return n
		}
	}
	return nil
}

// walk visits nodes in order using an explicit stack and stops when fn
// returns false.
func (t *AVLTree) walk(fn func(*avlNode) bool) {
	stack := make([]*avlNode, 0, t.root.depthHint())
	n := t.root
	for n != nil || len(stack) > 0 {
		for n != nil {
			stack = append(stack, n)
			n = n.left
		}
		n = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			return
		}
		n = n.right
	}
}

func (n *avlNode) depthHint() int {
	if n == nil {
		return 0
	}
	return n.height + 1
}

func height(n *avlNode) int {
	if n == nil {
		return 0
	}
	return n.height
}

func balance(n *avlNode) int {
	if n == nil {
		return 0
	}
	return height(n.left) - height(n.right)
}

func (n *avlNode) fixHeight() {
	n.height = max(height(n.left), height(n.right)) + 1
}

func rotateRight(y *avlNode) *avlNode {
	x := y.left
	y.left = x.right
	x.right = y
	y.fixHeight()
	x.fixHeight()
	return x
}

func rotateLeft(x *avlNode) *avlNode {
	y := x.right
	x.right = y.left
	y.left = x
	x.fixHeight()
	y.fixHeight()
	return y
}

// rebalance restores the balance factor of n after one of its subtrees grew
// and returns the new subtree root.
func rebalance(n *avlNode) *avlNode {
	n.fixHeight()
	switch bf := balance(n); {
	case bf > 1:
		if balance(n.left) < 0 {
			n.left = rotateLeft(n.left) // left-right
		}
		return rotateRight(n) // left-left
	case bf < -1:
		if balance(n.right) > 0 {
			n.right = rotateRight(n.right) // right-left
		}
		return rotateLeft(n) // right-right
	}
	return n
}
