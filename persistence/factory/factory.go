package factory

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/toheart/flightrec/domain"
	"github.com/toheart/flightrec/persistence/memory"
	"github.com/toheart/flightrec/persistence/sqlite"
)

// DatabaseType 数据库类型
type DatabaseType string

const (
	DBTypeSQLite DatabaseType = "sqlite"
	DBTypeMemory DatabaseType = "memory"
	// 可以添加更多数据库类型
)

// CreateRepositoryFactory 创建仓储工厂
// dbPath仅对sqlite生效，为空时按进程名生成
func CreateRepositoryFactory(dbType string, dbPath string, logger *logrus.Logger) (domain.RepositoryFactory, error) {
	var factory domain.RepositoryFactory

	// 根据数据库类型返回对应的仓储工厂
	switch dbType {
	case string(DBTypeSQLite):
		factory = sqlite.NewSQLiteDatabase(logger, dbPath)
	case string(DBTypeMemory), "mock":
		factory = memory.NewMemDatabase(logger)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	// 初始化数据库
	if err := factory.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize database failed: %w", err)
	}

	return factory, nil
}

// CloseFactory 关闭指定仓储工厂并释放资源
func CloseFactory(factory domain.RepositoryFactory) error {
	if factory == nil {
		return nil
	}

	return factory.Close()
}
