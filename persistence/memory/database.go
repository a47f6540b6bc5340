package memory

import (
	"github.com/sirupsen/logrus"
	"github.com/toheart/flightrec/domain"
)

// 确保MemDatabase实现了RepositoryFactory接口
var _ domain.RepositoryFactory = (*MemDatabase)(nil)

// MemDatabase 内存数据库实现，测试和mock场景使用
type MemDatabase struct {
	logger                 *logrus.Logger
	sessionEventRepository *MemSessionEventRepository
}

// NewMemDatabase 创建新的内存数据库
func NewMemDatabase(logger *logrus.Logger) domain.RepositoryFactory {
	return &MemDatabase{
		logger:                 logger,
		sessionEventRepository: NewMemSessionEventRepository(logger),
	}
}

// Initialize 初始化数据库
func (m *MemDatabase) Initialize() error {
	return nil // 内存实现无需初始化
}

// Close 关闭数据库连接
func (m *MemDatabase) Close() error {
	return nil // 内存实现无需关闭
}

func (m *MemDatabase) GetSessionEventRepository() domain.SessionEventRepository {
	return m.sessionEventRepository
}
