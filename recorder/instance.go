package recorder

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/toheart/flightrec/domain"
	"github.com/toheart/flightrec/engine"
	"github.com/toheart/flightrec/persistence/factory"
)

var (
	once     sync.Once
	instance *FlightRecorder
)

// 存储仓储工厂的全局实例
var repositoryFactory domain.RepositoryFactory

// Default 初始化并返回 FlightRecorder 的单例实例
// 首次调用完成配置加载、日志、数据库和清理器的全部装配
func Default() *FlightRecorder {
	once.Do(func() {
		config := NewConfig()
		log := initializeLogger(config.LogFileName)
		log.Info("init FlightRecorder success")

		// 初始化数据库
		var repo domain.SessionEventRepository
		f, err := factory.CreateRepositoryFactory(config.DBType, config.DBPath, log)
		if err != nil {
			log.WithFields(logrus.Fields{"error": err}).Error("init database failed")
		} else {
			log.Info("init database success")
			repositoryFactory = f
			repo = f.GetSessionEventRepository()
		}
		log.WithFields(logrus.Fields{"config": config.String()}).Info("recorder config initialized")

		instance = NewFlightRecorder(engine.NewRuntimeEngine(log), config, log, repo)

		// 启动会话清理
		instance.reaper.Start()
		log.Info("start session reaper")
	})
	return instance
}

// ShutdownDefault 关闭单例实例并释放数据库资源
func ShutdownDefault() error {
	if instance == nil {
		return nil
	}
	instance.Shutdown()
	return CloseDatabase()
}

// CloseDatabase 关闭数据库连接
func CloseDatabase() error {
	if repositoryFactory != nil {
		return factory.CloseFactory(repositoryFactory)
	}
	return nil
}

// GetRepositoryFactory 获取仓储工厂
func GetRepositoryFactory() domain.RepositoryFactory {
	return repositoryFactory
}
