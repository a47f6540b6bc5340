package recorder

import "time"

// 封装 recorder 包的常量
const (
	// DefaultCleanupInterval 默认清理间隔（毫秒）
	DefaultCleanupInterval = 5000

	// DefaultOldRecordingsTTL 默认的旧录制保留时长数值
	DefaultOldRecordingsTTL = 30
	// DefaultOldRecordingsTTLUnit 默认的保留时长单位
	DefaultOldRecordingsTTLUnit = UnitMinutes

	// LogFileName 日志文件名
	LogFileName = "./flightrec.log"

	// DefaultJournalBuffer 事件流水通道的默认缓冲大小
	DefaultJournalBuffer = 50

	// EnvCleanupInterval 清理间隔环境变量（毫秒）
	EnvCleanupInterval = "FLIGHTREC_CLEANUP_INTERVAL"

	// EnvOldRecordingsTTL 旧录制保留时长数值环境变量
	EnvOldRecordingsTTL = "FLIGHTREC_OLD_RECORDINGS_TTL"

	// EnvOldRecordingsTTLUnit 保留时长单位环境变量
	// 可选值: "seconds", "minutes"(默认), "hours"
	EnvOldRecordingsTTLUnit = "FLIGHTREC_OLD_RECORDINGS_TTL_UNIT"

	// EnvDBType 数据库类型环境变量
	EnvDBType = "FLIGHTREC_DB_TYPE"
	// EnvDBPath 数据库文件路径环境变量，仅sqlite生效
	EnvDBPath = "FLIGHTREC_DB_PATH"
	// EnvDBInsertMode 数据库插入模式环境变量
	// 可选值: "sync"(同步模式，默认), "async"(异步模式)
	EnvDBInsertMode = "FLIGHTREC_DB_INSERT_MODE"

	// EnvJournalBuffer 事件流水通道缓冲环境变量
	EnvJournalBuffer = "FLIGHTREC_JOURNAL_BUFFER"

	// EnvPackagePrefix 火焰图过滤的应用包前缀环境变量
	EnvPackagePrefix = "FLIGHTREC_PACKAGE_PREFIX"

	// ProfileMarker 识别引擎预设的关键字，名字包含它的预设参与设置合并
	ProfileMarker = "profile"

	// 时间格式
	TimeFormat = time.RFC3339Nano
)

// 时间单位
const (
	UnitSeconds = "seconds"
	UnitMinutes = "minutes"
	UnitHours   = "hours"
)

// 数据库插入模式
const (
	// 异步插入模式
	AsyncMode = "async"
	// 同步插入模式
	SyncMode = "sync"
)

// 会话生命周期事件
const (
	EventCreated    = "created"
	EventConfigured = "configured"
	EventStarted    = "started"
	EventStopped    = "stopped"
	EventClosed     = "closed"
	EventReaped     = "reaped"
)
