// Package flightrec 提供进程内的性能录制会话管理
// 这个包是 recorder 子包的外层接口，提供简单的 API 供用户使用
package flightrec

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/toheart/flightrec/endpoint"
	"github.com/toheart/flightrec/recorder"
)

// NewRecording 创建一个新的录制会话并返回其标识
func NewRecording() int64 {
	return recorder.Default().NewSession()
}

// ConfigureRecording 为会话设置采集时长和产物路径
func ConfigureRecording(id int64, duration time.Duration, destination string) error {
	return recorder.Default().Configure(id, duration, destination)
}

// StartRecording 启动会话采集
func StartRecording(id int64) {
	recorder.Default().Start(id)
}

// StartRecordingFor 创建并启动一个定时长的录制，返回会话标识
func StartRecordingFor(duration time.Duration) (int64, error) {
	return recorder.Default().StartFor(duration)
}

// StopRecording 停止会话采集并返回产物路径
func StopRecording(id int64) (string, bool) {
	return recorder.Default().Stop(id)
}

// IsRecordingStopped 查询会话是否已经停止，不存在的标识视为已停止
func IsRecordingStopped(id int64) bool {
	return recorder.Default().IsStopped(id)
}

// CloseRecording 关闭会话并注销
func CloseRecording(id int64) {
	recorder.Default().CloseSession(id)
}

// Sessions 返回全部录制会话的快照
func Sessions() []recorder.SessionInfo {
	return recorder.Default().Sessions()
}

// Handler 返回挂载了全部录制路由的HTTP处理器
func Handler() http.Handler {
	fr := recorder.Default()
	mux := http.NewServeMux()
	endpoint.New(fr, fr.Config().PackagePrefix).Register(mux)
	return mux
}

// Shutdown 关闭单例实例并释放资源
func Shutdown() error {
	return recorder.ShutdownDefault()
}

// GetLogger 获取日志实例
func GetLogger() *logrus.Logger {
	return recorder.Default().Logger()
}
