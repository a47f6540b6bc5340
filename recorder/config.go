package recorder

import (
	"os"
	"strconv"
	"time"
)

// Config 统一的配置结构体
type Config struct {
	// 清理配置
	CleanupInterval      int    // 清理间隔（毫秒）
	OldRecordingsTTL     int    // 旧录制保留时长数值
	OldRecordingsTTLUnit string // 保留时长单位：seconds/minutes/hours

	// 数据库配置
	DBType     string // 数据库类型
	DBPath     string // 数据库文件路径，仅sqlite生效
	InsertMode string // 数据库插入模式：sync/async

	// 事件流水配置
	JournalBuffer int // 流水通道缓冲大小

	// 日志配置
	LogFileName string // 日志文件名

	// 火焰图配置
	PackagePrefix string // 应用包前缀，为空时自动探测
}

// configField 配置字段定义
type configField struct {
	envKey       string            // 环境变量键名
	defaultValue interface{}       // 默认值
	validator    func(string) bool // 验证函数（可选）
}

// 配置字段映射表
var configFields = map[string]configField{
	"CleanupInterval": {
		envKey:       EnvCleanupInterval,
		defaultValue: DefaultCleanupInterval,
		validator: func(v string) bool {
			if i, err := strconv.Atoi(v); err == nil && i > 0 {
				return true
			}
			return false
		},
	},
	"OldRecordingsTTL": {
		envKey:       EnvOldRecordingsTTL,
		defaultValue: DefaultOldRecordingsTTL,
		validator: func(v string) bool {
			if i, err := strconv.Atoi(v); err == nil && i > 0 {
				return true
			}
			return false
		},
	},
	"OldRecordingsTTLUnit": {
		envKey:       EnvOldRecordingsTTLUnit,
		defaultValue: DefaultOldRecordingsTTLUnit,
		validator: func(v string) bool {
			return v == UnitSeconds || v == UnitMinutes || v == UnitHours
		},
	},
	"DBType": {
		envKey:       EnvDBType,
		defaultValue: "sqlite",
	},
	"DBPath": {
		envKey:       EnvDBPath,
		defaultValue: "",
	},
	"InsertMode": {
		envKey:       EnvDBInsertMode,
		defaultValue: SyncMode,
		validator: func(v string) bool {
			return v == SyncMode || v == AsyncMode
		},
	},
	"JournalBuffer": {
		envKey:       EnvJournalBuffer,
		defaultValue: DefaultJournalBuffer,
		validator: func(v string) bool {
			if i, err := strconv.Atoi(v); err == nil && i > 0 {
				return true
			}
			return false
		},
	},
	"LogFileName": {
		envKey:       "",
		defaultValue: LogFileName,
	},
	"PackagePrefix": {
		envKey:       EnvPackagePrefix,
		defaultValue: "",
	},
}

// NewConfig 创建新的配置实例
func NewConfig() *Config {
	config := &Config{}

	// 加载所有配置
	config.loadFromEnv()

	return config
}

// loadFromEnv 从环境变量加载配置
func (c *Config) loadFromEnv() {
	// 清理间隔
	c.CleanupInterval = c.getIntEnv("CleanupInterval")

	// 保留时长
	c.OldRecordingsTTL = c.getIntEnv("OldRecordingsTTL")
	c.OldRecordingsTTLUnit = c.getStringEnv("OldRecordingsTTLUnit")

	// 数据库类型
	c.DBType = c.getStringEnv("DBType")
	c.DBPath = c.getStringEnv("DBPath")

	// 插入模式
	c.InsertMode = c.getStringEnv("InsertMode")

	// 流水缓冲
	c.JournalBuffer = c.getIntEnv("JournalBuffer")

	// 日志文件
	c.LogFileName = c.getStringEnv("LogFileName")

	// 包前缀
	c.PackagePrefix = c.getStringEnv("PackagePrefix")
}

// getStringEnv 获取字符串环境变量
func (c *Config) getStringEnv(fieldName string) string {
	field := configFields[fieldName]
	envValue := os.Getenv(field.envKey)

	// 如果环境变量为空，返回默认值
	if envValue == "" {
		return field.defaultValue.(string)
	}

	// 如果有验证器，验证值的有效性
	if field.validator != nil && !field.validator(envValue) {
		return field.defaultValue.(string)
	}

	return envValue
}

// getIntEnv 获取整数环境变量
func (c *Config) getIntEnv(fieldName string) int {
	field := configFields[fieldName]
	envValue := os.Getenv(field.envKey)

	// 如果环境变量为空，返回默认值
	if envValue == "" {
		return field.defaultValue.(int)
	}

	// 尝试转换为整数
	if intValue, err := strconv.Atoi(envValue); err == nil {
		// 如果有验证器，验证值的有效性
		if field.validator == nil || field.validator(envValue) {
			return intValue
		}
	}

	// 转换失败或验证失败，返回默认值
	return field.defaultValue.(int)
}

// CleanupIntervalDuration 返回清理间隔对应的时长
func (c *Config) CleanupIntervalDuration() time.Duration {
	return time.Duration(c.CleanupInterval) * time.Millisecond
}

// TTL 返回旧录制保留时长
func (c *Config) TTL() time.Duration {
	switch c.OldRecordingsTTLUnit {
	case UnitSeconds:
		return time.Duration(c.OldRecordingsTTL) * time.Second
	case UnitHours:
		return time.Duration(c.OldRecordingsTTL) * time.Hour
	default:
		return time.Duration(c.OldRecordingsTTL) * time.Minute
	}
}

// String 返回配置的字符串表示
func (c *Config) String() string {
	return "Config{" +
		"CleanupInterval: " + strconv.Itoa(c.CleanupInterval) + ", " +
		"OldRecordingsTTL: " + strconv.Itoa(c.OldRecordingsTTL) + " " + c.OldRecordingsTTLUnit + ", " +
		"DBType: " + c.DBType + ", " +
		"DBPath: " + c.DBPath + ", " +
		"InsertMode: " + c.InsertMode + ", " +
		"JournalBuffer: " + strconv.Itoa(c.JournalBuffer) + ", " +
		"LogFileName: " + c.LogFileName + ", " +
		"PackagePrefix: " + c.PackagePrefix +
		"}"
}
