package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/toheart/flightrec/domain"
	"github.com/toheart/flightrec/domain/model"
)

// SessionEventRepository 是SQLite实现的会话事件仓储
type SessionEventRepository struct {
	db *sql.DB
}

// NewSessionEventRepository 创建一个新的SQLite会话事件仓储
func NewSessionEventRepository(db *sql.DB) domain.SessionEventRepository {
	return &SessionEventRepository{
		db: db,
	}
}

// SaveEvent 保存会话事件
func (r *SessionEventRepository) SaveEvent(event *model.SessionEvent) (int64, error) {
	result, err := r.db.Exec(
		SQLInsertSessionEvent,
		event.SessionID,
		event.Event,
		event.State,
		event.Destination,
		event.Detail,
		event.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("save session event error: %w", err)
	}

	return result.LastInsertId()
}

// FindEventsBySessionID 根据会话ID查找事件
func (r *SessionEventRepository) FindEventsBySessionID(sessionID int64) ([]model.SessionEvent, error) {
	rows, err := r.db.Query(SQLQueryEventsBySession, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find events by session error: %w", err)
	}
	defer rows.Close()

	var result []model.SessionEvent
	for rows.Next() {
		var event model.SessionEvent
		if err := rows.Scan(
			&event.ID,
			&event.SessionID,
			&event.Event,
			&event.State,
			&event.Destination,
			&event.Detail,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session event error: %w", err)
		}
		result = append(result, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session events error: %w", err)
	}

	return result, nil
}

// CountEvents 统计事件总数
func (r *SessionEventRepository) CountEvents() (int64, error) {
	var count int64
	if err := r.db.QueryRow(SQLCountEvents).Scan(&count); err != nil {
		return 0, fmt.Errorf("count session events error: %w", err)
	}
	return count, nil
}
