// Package endpoint 把录制会话管理能力暴露为HTTP接口
package endpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/toheart/flightrec/flamegraph"
	"github.com/toheart/flightrec/recorder"
)

// PathPrefix 全部路由挂载的路径前缀
const PathPrefix = "/flightrecorder"

// Endpoint 包装会话管理器对外提供录制的增删查和产物下载
type Endpoint struct {
	fr            *recorder.FlightRecorder
	log           *logrus.Logger
	packagePrefix string
}

// New 创建HTTP端点
// packagePrefix用于过滤火焰图，传空串时按构建信息探测主模块路径
func New(fr *recorder.FlightRecorder, packagePrefix string) *Endpoint {
	if packagePrefix == "" {
		packagePrefix = flamegraph.DetectMainPrefix()
	}
	return &Endpoint{
		fr:            fr,
		log:           fr.Logger(),
		packagePrefix: packagePrefix,
	}
}

// Register 注册全部路由
func (ep *Endpoint) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+PathPrefix, ep.listSessions)
	mux.HandleFunc("PUT "+PathPrefix, ep.startRecording)
	mux.HandleFunc("GET "+PathPrefix+"/{id}", ep.downloadRecording)
	mux.HandleFunc("DELETE "+PathPrefix+"/{id}", ep.closeRecording)
	mux.HandleFunc("GET "+PathPrefix+"/{id}/flamegraph.json", ep.filteredFlamegraph)
	mux.HandleFunc("GET "+PathPrefix+"/{id}/rawflamegraph.json", ep.rawFlamegraph)
}

// setNoCacheHeaders 禁止中间层缓存录制产物和渲染结果
func setNoCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

func (ep *Endpoint) listSessions(w http.ResponseWriter, r *http.Request) {
	ep.log.Info("retrieving all known recording sessions")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ep.fr.Sessions()); err != nil {
		ep.log.WithFields(logrus.Fields{"error": err}).Warn("write session list failed")
	}
}

func (ep *Endpoint) startRecording(w http.ResponseWriter, r *http.Request) {
	var cmd StartRecordingCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	duration, err := cmd.ToDuration()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ep.log.WithFields(logrus.Fields{"duration": cmd.Duration, "timeUnit": cmd.TimeUnit}).Info("trying to start recording")

	id, err := ep.fr.StartFor(duration)
	if err != nil {
		ep.log.WithFields(logrus.Fields{"error": err}).Error("start recording failed")
		http.Error(w, "cannot start recording", http.StatusInternalServerError)
		return
	}
	ep.log.WithFields(logrus.Fields{"id": id}).Info("created recording")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "%d", id)
}

// downloadRecording 停止录制并把产物作为附件下载
// 会话不存在或产物不可读都按404处理
func (ep *Endpoint) downloadRecording(w http.ResponseWriter, r *http.Request) {
	id, ok := ep.sessionID(w, r)
	if !ok {
		return
	}
	ep.log.WithFields(logrus.Fields{"id": id}).Info("stopping recording and downloading file")
	dest, found := ep.fr.Stop(id)
	if !found {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(dest)
	if err != nil {
		ep.log.WithFields(logrus.Fields{"error": err, "id": id}).Warn("recording artifact unavailable")
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	setNoCacheHeaders(w)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=flightrecording_%d.pprof", id))
	if _, err := io.Copy(w, f); err != nil {
		ep.log.WithFields(logrus.Fields{"error": err, "id": id}).Warn("stream recording failed")
	}
}

func (ep *Endpoint) closeRecording(w http.ResponseWriter, r *http.Request) {
	id, ok := ep.sessionID(w, r)
	if !ok {
		return
	}
	ep.log.WithFields(logrus.Fields{"id": id}).Info("closing recording")
	ep.fr.CloseSession(id)
	w.WriteHeader(http.StatusOK)
}

func (ep *Endpoint) filteredFlamegraph(w http.ResponseWriter, r *http.Request) {
	ep.renderFlamegraph(w, r, flamegraph.PackagePrefixFilter(ep.packagePrefix))
}

func (ep *Endpoint) rawFlamegraph(w http.ResponseWriter, r *http.Request) {
	ep.renderFlamegraph(w, r)
}

// renderFlamegraph 停止录制并把产物渲染为火焰图JSON
func (ep *Endpoint) renderFlamegraph(w http.ResponseWriter, r *http.Request, filters ...flamegraph.FrameFilter) {
	id, ok := ep.sessionID(w, r)
	if !ok {
		return
	}
	ep.log.WithFields(logrus.Fields{"id": id}).Info("stopping recording and rendering flame graph")
	dest, found := ep.fr.Stop(id)
	if !found {
		http.NotFound(w, r)
		return
	}

	root, err := flamegraph.FromFile(dest, filters...)
	if err != nil {
		ep.log.WithFields(logrus.Fields{"error": err, "id": id}).Warn("render flame graph failed")
		http.Error(w, "cannot render flame graph", http.StatusBadRequest)
		return
	}

	setNoCacheHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(root); err != nil {
		ep.log.WithFields(logrus.Fields{"error": err, "id": id}).Warn("write flame graph failed")
	}
}

// sessionID 解析路径里的会话标识，非法时直接响应400
func (ep *Endpoint) sessionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
