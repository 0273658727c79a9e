package monitoring

import "sync"

type syncMap struct {
	mu   sync.Mutex
	keys map[interface{}]struct{}
}

// add records key and reports whether it was new.
func (m *syncMap) add(key interface{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[interface{}]struct{})
	}
	if _, ok := m.keys[key]; ok {
		return false
	}
	m.keys[key] = struct{}{}
	return true
}
