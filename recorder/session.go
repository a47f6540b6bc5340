package recorder

import (
	"time"

	"github.com/toheart/flightrec/engine"
)

// Session 表示单个录制会话的独享状态
// 生命周期状态由底层采集句柄持有，会话只负责关联元信息
type Session struct {
	id       int64
	capture  engine.Capture
	settings map[string]string
	created  time.Time
}

func newSession(id int64, capture engine.Capture, settings map[string]string) *Session {
	return &Session{
		id:       id,
		capture:  capture,
		settings: settings,
		created:  time.Now(),
	}
}

// ID 返回会话标识
func (s *Session) ID() int64 {
	return s.id
}

// State 返回会话当前状态
func (s *Session) State() engine.State {
	return s.capture.State()
}

// Capture 返回底层采集句柄
func (s *Session) Capture() engine.Capture {
	return s.capture
}

// Created 返回会话注册时间
func (s *Session) Created() time.Time {
	return s.created
}

// SessionInfo 会话的对外快照
type SessionInfo struct {
	ID          int64  `json:"id"`
	State       string `json:"state"`
	StartTime   string `json:"startTime,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Destination string `json:"destination,omitempty"`
}

// Info 生成会话快照
func (s *Session) Info() SessionInfo {
	info := SessionInfo{
		ID:          s.id,
		State:       s.capture.State().String(),
		Destination: s.capture.Destination(),
	}
	if start := s.capture.StartTime(); !start.IsZero() {
		info.StartTime = start.Format(TimeFormat)
	}
	if d := s.capture.Duration(); d > 0 {
		info.Duration = d.String()
	}
	return info
}
