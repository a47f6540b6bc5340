package recorder

import (
	"sync"
	"sync/atomic"

	"github.com/toheart/flightrec/engine"
)

// SessionRegistry 管理 id -> Session 的映射
// 会话标识由内部计数器分配，进程生命周期内永不复用
type SessionRegistry struct {
	mu     sync.RWMutex
	table  map[int64]*Session
	nextID atomic.Int64
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{table: make(map[int64]*Session)}
}

// Add 分配新的会话标识并登记会话
func (r *SessionRegistry) Add(capture engine.Capture, settings map[string]string) *Session {
	id := r.nextID.Add(1)
	s := newSession(id, capture, settings)

	r.mu.Lock()
	r.table[id] = s
	r.mu.Unlock()
	return s
}

// Get 按标识查找会话
func (r *SessionRegistry) Get(id int64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.table[id]
	return s, ok
}

// Remove 注销会话，标识不存在时为空操作
func (r *SessionRegistry) Remove(id int64) {
	r.mu.Lock()
	delete(r.table, id)
	r.mu.Unlock()
}

// Snapshot 返回当前全部会话的副本切片，供遍历使用
func (r *SessionRegistry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.table))
	for _, s := range r.table {
		out = append(out, s)
	}
	return out
}

// Len 返回当前登记的会话数
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.table)
}
