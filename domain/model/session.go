package model

// SessionEvent 存储会话生命周期事件的结构体
type SessionEvent struct {
	ID          int64  `json:"id"`          // 自增ID
	SessionID   int64  `json:"sessionId"`   // 会话ID
	Event       string `json:"event"`       // 事件名称
	State       string `json:"state"`       // 事件发生时的会话状态
	Destination string `json:"destination"` // 产物路径
	Detail      string `json:"detail"`      // 附加信息
	CreatedAt   string `json:"createdAt"`   // 记录时间
}

// NewSessionEvent 创建一个新的会话事件
func NewSessionEvent(sessionID int64, event string, state string, createdAt string) *SessionEvent {
	return &SessionEvent{
		SessionID: sessionID,
		Event:     event,
		State:     state,
		CreatedAt: createdAt,
	}
}

// WithDestination 设置产物路径
func (e *SessionEvent) WithDestination(destination string) *SessionEvent {
	e.Destination = destination
	return e
}

// WithDetail 设置附加信息
func (e *SessionEvent) WithDetail(detail string) *SessionEvent {
	e.Detail = detail
	return e
}
