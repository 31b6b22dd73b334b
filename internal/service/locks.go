package service

import "sync"

// groupLocks 為每個群組提供一把互斥鎖，沒有持有者時自動回收
type groupLocks struct {
	mu    sync.Mutex
	locks map[string]*groupLock
}

type groupLock struct {
	sync.Mutex
	refs int
}

func newGroupLocks() *groupLocks {
	return &groupLocks{locks: make(map[string]*groupLock)}
}

// Lock 鎖住 group 並返回解鎖函數
func (g *groupLocks) Lock(group string) func() {
	g.mu.Lock()
	l, ok := g.locks[group]
	if !ok {
		l = &groupLock{}
		g.locks[group] = l
	}
	l.refs++
	g.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, group)
		}
		g.mu.Unlock()
	}
}

func (g *groupLocks) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
