package domain

import (
	"github.com/toheart/flightrec/domain/model"
)

// SessionEventRepository 会话事件仓储接口
type SessionEventRepository interface {
	// SaveEvent 保存会话事件
	SaveEvent(event *model.SessionEvent) (int64, error)

	// FindEventsBySessionID 根据会话ID查找事件，按写入顺序返回
	FindEventsBySessionID(sessionID int64) ([]model.SessionEvent, error)

	// CountEvents 统计事件总数
	CountEvents() (int64, error)
}

// RepositoryFactory 仓储工厂接口
type RepositoryFactory interface {
	// 初始化数据库
	Initialize() error

	// GetSessionEventRepository 获取会话事件仓储
	GetSessionEventRepository() SessionEventRepository

	// 关闭数据库连接
	Close() error
}
