package recorder

import (
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// initializeLogger 初始化日志记录器
func initializeLogger(fileName string) *logrus.Logger {
	// 创建新的logrus实例
	log := logrus.New()

	// 配置日志格式为文本格式
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:    true,
		TimestampFormat:  "2006-01-02 15:04:05.000",
		DisableColors:    false,
		DisableTimestamp: false,
	})

	// 默认删除旧的日志文件
	if err := os.Remove(fileName); err != nil && !os.IsNotExist(err) {
		// 如果删除失败且不是因为文件不存在，记录警告
		log.Warnf("Failed to clear log file %s: %v", fileName, err)
	} else {
		log.Infof("Cleared log file: %s", fileName)
	}

	// 配置日志输出到lumberjack用于日志轮转
	logWriter := &lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    20, // 单位为MB，20M
		MaxBackups: 3,
		LocalTime:  true,
		Compress:   true,
	}
	log.SetOutput(logWriter)

	// 设置日志级别
	log.SetLevel(logrus.InfoLevel)

	return log
}
