package sqlite

// 数据库相关常量
const (
	// 数据库文件名格式
	DBFileNameFormat = "./%s_%s.db"

	// SQL语句
	SQLCreateSessionEventTable = `CREATE TABLE IF NOT EXISTS SessionEvent (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sessionId INTEGER,
		event TEXT,
		state TEXT,
		destination TEXT,
		detail TEXT,
		createdAt TEXT
	)`

	SQLCreateSessionIndex = "CREATE INDEX IF NOT EXISTS idx_session ON SessionEvent (sessionId)"
	SQLCreateEventIndex   = "CREATE INDEX IF NOT EXISTS idx_event ON SessionEvent (event)"

	SQLInsertSessionEvent = "INSERT INTO SessionEvent (sessionId, event, state, destination, detail, createdAt) VALUES (?, ?, ?, ?, ?, ?)"

	// 按写入顺序查询某个会话的全部事件
	SQLQueryEventsBySession = "SELECT id, sessionId, event, state, destination, detail, createdAt FROM SessionEvent WHERE sessionId = ? ORDER BY id"

	SQLCountEvents = "SELECT COUNT(*) FROM SessionEvent"
)
