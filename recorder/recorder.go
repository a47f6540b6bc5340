package recorder

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"
	"github.com/toheart/flightrec/domain"
	"github.com/toheart/flightrec/engine"
)

// FlightRecorder 管理录制会话的完整生命周期
// 所有生命周期操作串行通过同一把互斥锁，注册表内部另有读写锁兜底
type FlightRecorder struct {
	mu sync.Mutex

	eng      engine.Engine
	sessions *SessionRegistry
	log      *logrus.Logger
	journal  *journal
	reaper   *Reaper
	config   *Config
}

// NewFlightRecorder 创建会话管理器
// repo可以为nil，此时事件流水整体退化为空操作
func NewFlightRecorder(eng engine.Engine, config *Config, log *logrus.Logger, repo domain.SessionEventRepository) *FlightRecorder {
	fr := &FlightRecorder{
		eng:      eng,
		sessions: NewSessionRegistry(),
		log:      log,
		journal:  newJournal(log, repo, config.InsertMode, config.JournalBuffer),
		config:   config,
	}
	fr.reaper = NewReaper(fr, config.CleanupIntervalDuration(), config.TTL(), log)

	// 异步模式下启动流水消费
	if config.InsertMode == AsyncMode {
		fr.journal.start()
		fr.log.Info("start journal with async mode")
	} else {
		fr.log.Info("running journal in sync mode")
	}
	return fr
}

// Reaper 返回清理器，由装配方决定何时启动
func (fr *FlightRecorder) Reaper() *Reaper {
	return fr.reaper
}

// Logger 获取日志实例
func (fr *FlightRecorder) Logger() *logrus.Logger {
	return fr.log
}

// Config 返回装配时使用的配置
func (fr *FlightRecorder) Config() *Config {
	return fr.config
}

// NewSession 创建一个新的录制会话并返回其标识
func (fr *FlightRecorder) NewSession() int64 {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return fr.newSessionLocked()
}

func (fr *FlightRecorder) newSessionLocked() int64 {
	settings := fr.mergedProfileSettings()
	capture := fr.eng.NewCapture(settings)
	s := fr.sessions.Add(capture, settings)

	fr.journal.record(s.ID(), EventCreated, s.State().String(), "", "")
	fr.log.WithFields(logrus.Fields{"id": s.ID()}).Info("created new recording session")
	return s.ID()
}

// mergedProfileSettings 合并名字带profile标记的引擎预设
// 后发现的预设覆盖同名设置项
func (fr *FlightRecorder) mergedProfileSettings() map[string]string {
	merged := make(map[string]string)
	for _, cfg := range fr.eng.Configurations() {
		fr.log.WithFields(logrus.Fields{"name": cfg.Name, "label": cfg.Label}).Info("found engine configuration")
		if !strings.Contains(cfg.Name, ProfileMarker) {
			continue
		}
		fr.log.WithFields(logrus.Fields{"name": cfg.Name}).Info("using engine configuration")
		for k, v := range cfg.Settings {
			merged[k] = v
		}
	}
	fr.log.WithFields(logrus.Fields{"settings": spew.Sdump(merged)}).Debug("merged profile settings")
	return merged
}

// Configure 为会话设置采集时长和产物路径
// 标识不存在时仅记录告警，不视为错误
func (fr *FlightRecorder) Configure(id int64, duration time.Duration, destination string) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return fr.configureLocked(id, duration, destination)
}

func (fr *FlightRecorder) configureLocked(id int64, duration time.Duration, destination string) error {
	s, ok := fr.sessions.Get(id)
	if !ok {
		fr.log.WithFields(logrus.Fields{"id": id}).Warn("no session found for configure")
		return nil
	}

	if duration > 0 {
		if err := s.Capture().SetDuration(duration); err != nil {
			return fmt.Errorf("configure session %d: %w", id, err)
		}
	}
	if destination != "" {
		if err := s.Capture().SetDestination(destination); err != nil {
			return fmt.Errorf("configure session %d: %w", id, err)
		}
	}

	fr.journal.record(id, EventConfigured, s.State().String(), destination, duration.String())
	fr.log.WithFields(logrus.Fields{
		"id":          id,
		"duration":    duration.String(),
		"destination": destination,
	}).Info("configured recording session")
	return nil
}

// Start 启动会话采集
// 标识不存在时仅记录告警；引擎启动失败记录错误，会话停留在创建态
func (fr *FlightRecorder) Start(id int64) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if err := fr.startLocked(id); err != nil {
		fr.log.WithFields(logrus.Fields{"error": err, "id": id}).Error("start recording failed")
	}
}

func (fr *FlightRecorder) startLocked(id int64) error {
	s, ok := fr.sessions.Get(id)
	if !ok {
		fr.log.WithFields(logrus.Fields{"id": id}).Warn("no session found for start")
		return nil
	}

	if err := s.Capture().Start(); err != nil {
		return fmt.Errorf("start session %d: %w", id, err)
	}
	fr.journal.record(id, EventStarted, s.State().String(), s.Capture().Destination(), "")
	fr.log.WithFields(logrus.Fields{"id": id}).Info("recording started")
	return nil
}

// Stop 停止会话采集并返回产物路径
// 标识不存在返回("", false)；已停止的会话不再触发引擎调用但仍返回路径
func (fr *FlightRecorder) Stop(id int64) (string, bool) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	s, ok := fr.sessions.Get(id)
	if !ok {
		fr.log.WithFields(logrus.Fields{"id": id}).Warn("no recording found for stop")
		return "", false
	}

	if s.State() == engine.StateRunning {
		if err := s.Capture().Stop(); err != nil {
			if errors.Is(err, engine.ErrInvalidState) {
				// 到时自动停止和显式停止竞争时引擎侧已经停过
				fr.log.WithFields(logrus.Fields{"id": id}).Debug("recording already stopped by engine")
			} else {
				fr.log.WithFields(logrus.Fields{"error": err, "id": id}).Error("stop recording failed")
			}
		} else {
			fr.journal.record(id, EventStopped, s.State().String(), s.Capture().Destination(), "")
			fr.log.WithFields(logrus.Fields{"id": id, "destination": s.Capture().Destination()}).Info("recording stopped")
		}
	}

	return s.Capture().Destination(), true
}

// StartFor 创建并启动一个定时长的录制，产物落到临时文件
// 整个组合序列持锁执行，期间不会穿插其它生命周期操作
func (fr *FlightRecorder) StartFor(duration time.Duration) (int64, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	id := fr.newSessionLocked()

	f, err := os.CreateTemp("", "recording-*.pprof")
	if err != nil {
		return 0, fmt.Errorf("create temp artifact: %w", err)
	}
	dest := f.Name()
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close temp artifact: %w", err)
	}

	fr.log.WithFields(logrus.Fields{"id": id, "destination": dest}).Info("recording to temp file")

	if err := fr.configureLocked(id, duration, dest); err != nil {
		return 0, err
	}
	if err := fr.startLocked(id); err != nil {
		return 0, err
	}

	fr.log.WithFields(logrus.Fields{"id": id, "duration": duration.String()}).Info("started recording for duration")
	return id, nil
}

// IsStopped 查询会话是否已经停止
// 不存在的标识视为已停止
func (fr *FlightRecorder) IsStopped(id int64) bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	s, ok := fr.sessions.Get(id)
	if !ok {
		return true
	}
	st := s.State()
	return st == engine.StateStopped || st == engine.StateClosed
}

// CloseSession 显式关闭会话并从注册表注销
// 运行中的会话先停止再关闭；关闭失败仅记录，注销照常进行
func (fr *FlightRecorder) CloseSession(id int64) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	s, ok := fr.sessions.Get(id)
	if !ok {
		fr.log.WithFields(logrus.Fields{"id": id}).Warn("no session found for close")
		return
	}

	if s.State() == engine.StateRunning {
		if err := s.Capture().Stop(); err != nil && !errors.Is(err, engine.ErrInvalidState) {
			fr.log.WithFields(logrus.Fields{"error": err, "id": id}).Info("cannot stop recording during close")
		}
	}
	if err := s.Capture().Close(); err != nil {
		fr.log.WithFields(logrus.Fields{"error": err, "id": id}).Info("cannot close recording")
	}
	fr.sessions.Remove(id)

	fr.journal.record(id, EventClosed, engine.StateClosed.String(), s.Capture().Destination(), "")
	fr.log.WithFields(logrus.Fields{"id": id}).Info("closed recording session")
}

// Sessions 返回全部会话的快照列表，按标识升序
func (fr *FlightRecorder) Sessions() []SessionInfo {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	snapshot := fr.sessions.Snapshot()
	infos := make([]SessionInfo, 0, len(snapshot))
	for _, s := range snapshot {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Events 查询某个会话的生命周期事件流水
func (fr *FlightRecorder) Events(sessionID int64) ([]string, error) {
	if fr.journal.repo == nil {
		return nil, nil
	}
	events, err := fr.journal.repo.FindEventsBySessionID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session events: %w", err)
	}
	names := make([]string, 0, len(events))
	for _, e := range events {
		names = append(names, e.Event)
	}
	return names, nil
}

// reapExpired 回收开始时间早于截止点且已停止的会话，返回回收数量
// 停止态的会话先尽力关闭再注销，关闭失败不阻止注销
func (fr *FlightRecorder) reapExpired(cutoff time.Time) int {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	var expired []*Session
	for _, s := range fr.sessions.Snapshot() {
		st := s.State()
		if st != engine.StateStopped && st != engine.StateClosed {
			continue
		}
		started := s.Capture().StartTime()
		if started.IsZero() || !started.Before(cutoff) {
			continue
		}
		expired = append(expired, s)
	}

	for _, s := range expired {
		if s.State() == engine.StateStopped {
			if err := s.Capture().Close(); err != nil {
				fr.log.WithFields(logrus.Fields{"error": err, "id": s.ID()}).Info("cannot close recording")
			}
		}
		fr.sessions.Remove(s.ID())
		fr.journal.record(s.ID(), EventReaped, s.State().String(), s.Capture().Destination(), "")
		fr.log.WithFields(logrus.Fields{"id": s.ID()}).Info("reaped old recording session")
	}
	return len(expired)
}

// Shutdown 停止清理器并排空事件流水
func (fr *FlightRecorder) Shutdown() {
	fr.reaper.Stop()
	fr.journal.close()
	fr.log.Info("flight recorder shut down")
}
