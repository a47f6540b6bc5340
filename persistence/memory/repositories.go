package memory

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/toheart/flightrec/domain/model"
)

// MemSessionEventRepository 会话事件仓储的内存实现
// 事件按写入顺序保存在切片里，读取返回副本
type MemSessionEventRepository struct {
	logger *logrus.Logger

	mu     sync.Mutex
	events []model.SessionEvent
	nextID int64
}

// NewMemSessionEventRepository 创建新的内存会话事件仓储
func NewMemSessionEventRepository(logger *logrus.Logger) *MemSessionEventRepository {
	return &MemSessionEventRepository{
		logger: logger,
		nextID: 1,
	}
}

// SaveEvent 保存会话事件
func (r *MemSessionEventRepository) SaveEvent(event *model.SessionEvent) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *event
	stored.ID = r.nextID
	r.nextID++
	r.events = append(r.events, stored)

	r.logger.WithFields(logrus.Fields{
		"sessionId": stored.SessionID,
		"event":     stored.Event,
	}).Debug("session event stored in memory")
	return stored.ID, nil
}

// FindEventsBySessionID 根据会话ID查找事件
func (r *MemSessionEventRepository) FindEventsBySessionID(sessionID int64) ([]model.SessionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []model.SessionEvent
	for _, e := range r.events {
		if e.SessionID == sessionID {
			result = append(result, e)
		}
	}
	return result, nil
}

// CountEvents 统计事件总数
func (r *MemSessionEventRepository) CountEvents() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.events)), nil
}
