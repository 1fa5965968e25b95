package database

import "sync"

// itemLocks hands out one mutex per item id. Entries are dropped once no
// goroutine holds or waits for them, so the map only tracks active items.
type itemLocks struct {
	mu    sync.Mutex
	items map[int64]*itemLock
}

type itemLock struct {
	mu   sync.Mutex
	refs int
}

func newItemLocks() *itemLocks {
	return &itemLocks{items: make(map[int64]*itemLock)}
}

// lock blocks until the item's mutex is held and returns its release func.
func (l *itemLocks) lock(itemID int64) func() {
	l.mu.Lock()
	il, ok := l.items[itemID]
	if !ok {
		il = &itemLock{}
		l.items[itemID] = il
	}
	il.refs++
	l.mu.Unlock()

	il.mu.Lock()

	return func() {
		il.mu.Unlock()

		l.mu.Lock()
		il.refs--
		if il.refs == 0 {
			delete(l.items, itemID)
		}
		l.mu.Unlock()
	}
}

func (l *itemLocks) active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
