package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/toheart/flightrec/domain"
	_ "modernc.org/sqlite"
)

// 确保SQLiteDatabase实现了RepositoryFactory接口
var _ domain.RepositoryFactory = (*SQLiteDatabase)(nil)

// SQLiteDatabase SQLite数据库实现
type SQLiteDatabase struct {
	sessionEventRepository domain.SessionEventRepository
	db                     *sql.DB
	dbPath                 string
	logger                 *logrus.Logger
}

// NewSQLiteDatabase 创建新的SQLite数据库
// dbPath为空时按进程名和时间戳生成文件名
func NewSQLiteDatabase(logger *logrus.Logger, dbPath string) domain.RepositoryFactory {
	s := &SQLiteDatabase{
		db:     nil,
		dbPath: dbPath,
		logger: logger,
	}

	return s
}

// Initialize 初始化数据库
func (s *SQLiteDatabase) Initialize() error {
	// 创建数据库连接
	dbPath := s.dbPath
	if dbPath == "" {
		dbPath = findAvailableDBName()
	}
	var err error
	s.logger.Infof("opening db: %s", dbPath)
	s.db, err = sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath))
	if err != nil {
		return fmt.Errorf("can't open db: %w", err)
	}

	// 设置连接参数
	s.db.SetMaxOpenConns(50)
	s.db.SetMaxIdleConns(10)
	s.db.SetConnMaxIdleTime(30 * time.Second)

	// 测试连接
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("can't ping db: %w", err)
	}

	// 创建表
	if err := s.createTablesAndIndexes(); err != nil {
		return fmt.Errorf("can't create tables and indexes: %w", err)
	}

	return nil
}

// createTablesAndIndexes 创建数据表和索引
func (s *SQLiteDatabase) createTablesAndIndexes() error {
	tables := []string{
		SQLCreateSessionEventTable,

		// 创建索引
		SQLCreateSessionIndex,
		SQLCreateEventIndex,
	}

	for _, table := range tables {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("can't exec sql: %s, %w", table, err)
		}
	}
	s.sessionEventRepository = NewSessionEventRepository(s.db)

	return nil
}

// Close 关闭数据库连接
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) GetSessionEventRepository() domain.SessionEventRepository {
	return s.sessionEventRepository
}

// findAvailableDBName 查找可用的数据库文件名
func findAvailableDBName() string {
	execName, err := os.Executable()
	if err != nil {
		execName = "default"
	}
	execName = filepath.Base(execName)
	currentTime := time.Now().Format("20060102150405")
	return fmt.Sprintf(DBFileNameFormat, execName, currentTime)
}
