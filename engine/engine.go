// Package engine 提供采集底座的抽象和基于Go运行时的默认实现
// 上层通过Engine创建采集句柄，句柄的生命周期由持有方驱动
package engine

import (
	"errors"
	"time"
)

// ErrInvalidState 句柄处于不允许当前操作的状态
var ErrInvalidState = errors.New("invalid capture state")

// State 采集句柄的生命周期状态，只会单向推进
type State int32

const (
	// StateCreated 已创建未开始
	StateCreated State = iota
	// StateRunning 正在采集
	StateRunning
	// StateStopped 已停止，数据已定格
	StateStopped
	// StateClosed 已关闭，占用的内存已释放
	StateClosed
)

// String 返回状态的展示名
func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Configuration 引擎内置的采集预设
type Configuration struct {
	Name     string            `json:"name"`
	Label    string            `json:"label"`
	Settings map[string]string `json:"settings"`
}

// Capture 一次采集的句柄
// 实现必须保证并发安全，且状态只能沿创建、运行、停止、关闭推进
type Capture interface {
	// Start 开始采集
	Start() error
	// Stop 停止采集并在配置了目标路径时落盘
	Stop() error
	// Close 释放句柄，重复关闭无害
	Close() error
	// State 当前状态
	State() State
	// SetDestination 配置产物落盘路径，仅在开始前允许
	SetDestination(path string) error
	// SetDuration 配置到时自动停止的时长，仅在开始前允许
	SetDuration(d time.Duration) error
	// Destination 已配置的产物路径
	Destination() string
	// Duration 已配置的采集时长
	Duration() time.Duration
	// StartTime 开始采集的时间
	StartTime() time.Time
}

// Engine 采集底座
type Engine interface {
	// Configurations 列出内置预设
	Configurations() []Configuration
	// NewCapture 按设置创建新的采集句柄
	NewCapture(settings map[string]string) Capture
}
