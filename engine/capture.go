package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// stackCount 聚合同一条调用栈的采样计数
type stackCount struct {
	frames []string
	state  string
	count  int64
}

// 确保runtimeCapture实现了Capture接口
var _ Capture = (*runtimeCapture)(nil)

// runtimeCapture 是 RuntimeEngine 的采集句柄实现
// 状态存放在原子量中保证只读路径无锁，其余字段由互斥锁保护
type runtimeCapture struct {
	eng *RuntimeEngine
	log *logrus.Logger

	settings keepSettings
	state    atomic.Int32

	mu          sync.Mutex
	agg         map[string]*stackCount
	sampleTicks int64
	dest        string
	duration    time.Duration
	start       time.Time
	stopped     time.Time
	durTimer    *time.Timer
}

// keepSettings 从设置映射中解析出的引擎识别项
type keepSettings struct {
	period   time.Duration
	maxDepth int
	keepSelf bool
	raw      map[string]string
}

func newCapture(eng *RuntimeEngine, settings map[string]string) *runtimeCapture {
	c := &runtimeCapture{
		eng:      eng,
		log:      eng.log,
		agg:      make(map[string]*stackCount),
		settings: parseSettings(settings, eng.log),
	}
	c.state.Store(int32(StateCreated))
	return c
}

// parseSettings 解析引擎识别的设置项，非法值回退为默认值
func parseSettings(settings map[string]string, log *logrus.Logger) keepSettings {
	ks := keepSettings{
		period:   DefaultSamplePeriod,
		maxDepth: DefaultStackDepth,
		raw:      settings,
	}
	if v, ok := settings[SettingPeriod]; ok {
		if d, err := time.ParseDuration(v); err == nil && d >= MinSamplePeriod {
			ks.period = d
		} else {
			log.WithFields(logrus.Fields{"period": v}).Warn("invalid period setting, use default")
		}
	}
	if v, ok := settings[SettingStackDepth]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ks.maxDepth = n
		} else {
			log.WithFields(logrus.Fields{"stackdepth": v}).Warn("invalid stackdepth setting, use default")
		}
	}
	if v, ok := settings[SettingSelfSamples]; ok {
		ks.keepSelf = v == "true"
	}
	return ks
}

// advance 尝试把状态从 from 推进到 to
func (c *runtimeCapture) advance(from, to State) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// State 查询当前状态
func (c *runtimeCapture) State() State {
	return State(c.state.Load())
}

// SetDestination 预创建产物文件并记录路径，只允许在开始采集前调用
// 预创建会立即暴露不可写的目标路径，错误作为IO错误向上传播
func (c *runtimeCapture) SetDestination(path string) error {
	if c.State() != StateCreated {
		return fmt.Errorf("set destination: %w (state %s)", ErrInvalidState, c.State())
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("prepare destination dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("prepare destination: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("prepare destination: %w", err)
	}

	c.mu.Lock()
	c.dest = path
	c.mu.Unlock()
	return nil
}

// SetDuration 设置目标采集时长，到时后自动停止
func (c *runtimeCapture) SetDuration(d time.Duration) error {
	if c.State() != StateCreated {
		return fmt.Errorf("set duration: %w (state %s)", ErrInvalidState, c.State())
	}
	if d < 0 {
		return fmt.Errorf("set duration: negative duration %s", d)
	}
	c.mu.Lock()
	c.duration = d
	c.mu.Unlock()
	return nil
}

// Start 把句柄挂到采样器上开始接收采样
func (c *runtimeCapture) Start() error {
	if !c.advance(StateCreated, StateRunning) {
		return fmt.Errorf("start capture: %w (state %s)", ErrInvalidState, c.State())
	}

	c.mu.Lock()
	c.start = time.Now()
	d := c.duration
	if d > 0 {
		// 到时自动停止；和显式Stop竞争时由状态CAS决出唯一胜者
		c.durTimer = time.AfterFunc(d, func() {
			if err := c.Stop(); err != nil {
				c.log.WithFields(logrus.Fields{"error": err}).Debug("duration auto stop skipped")
			}
		})
	}
	c.mu.Unlock()

	c.eng.attach(c)
	return nil
}

// Stop 停止接收采样并把聚合结果刷写到目标路径
// 落盘期间可能短暂阻塞，调用方需容忍该延迟
func (c *runtimeCapture) Stop() error {
	if !c.advance(StateRunning, StateStopped) {
		return fmt.Errorf("stop capture: %w (state %s)", ErrInvalidState, c.State())
	}
	c.eng.detach(c)

	c.mu.Lock()
	if c.durTimer != nil {
		c.durTimer.Stop()
		c.durTimer = nil
	}
	c.stopped = time.Now()
	dest := c.dest
	c.mu.Unlock()

	if dest == "" {
		// 没有目标路径时数据保留在内存里，直到句柄被关闭
		return nil
	}
	if err := c.flush(dest); err != nil {
		return fmt.Errorf("flush artifact: %w", err)
	}
	return nil
}

// Close 释放句柄占用的内存；运行中的句柄会先摘除并丢弃未落盘数据
// 对已关闭句柄重复调用是无害的空操作
func (c *runtimeCapture) Close() error {
	switch {
	case c.advance(StateCreated, StateClosed):
	case c.advance(StateStopped, StateClosed):
	case c.advance(StateRunning, StateClosed):
		c.eng.detach(c)
		c.mu.Lock()
		if c.durTimer != nil {
			c.durTimer.Stop()
			c.durTimer = nil
		}
		c.mu.Unlock()
	case c.State() == StateClosed:
		return nil
	default:
		return fmt.Errorf("close capture: %w (state %s)", ErrInvalidState, c.State())
	}

	c.mu.Lock()
	c.agg = nil
	c.mu.Unlock()
	return nil
}

// record 接收采样器推送的一批调用栈
// 句柄停止后仍可能收到在途的推送，此时直接丢弃
func (c *runtimeCapture) record(stacks []goroutineStack, samplerGID uint64) {
	if c.State() != StateRunning {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// 拿到锁后重新确认状态，避免与Stop交错的在途推送污染已定格的聚合
	if c.State() != StateRunning || c.agg == nil {
		return
	}
	c.sampleTicks++
	for _, s := range stacks {
		if !c.settings.keepSelf && s.gid == samplerGID {
			continue
		}
		frames := s.frames
		if len(frames) > c.settings.maxDepth {
			frames = frames[:c.settings.maxDepth]
		}
		key := stackKey(frames, s.state)
		g, ok := c.agg[key]
		if !ok {
			g = &stackCount{frames: frames, state: s.state}
			c.agg[key] = g
		}
		g.count++
	}
}

// Destination 返回产物路径，未配置时为空串
func (c *runtimeCapture) Destination() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dest
}

// Duration 返回目标采集时长
func (c *runtimeCapture) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// StartTime 返回开始采集的时间，未开始时为零值
func (c *runtimeCapture) StartTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start
}

func stackKey(frames []string, state string) string {
	n := len(state)
	for _, f := range frames {
		n += len(f) + 1
	}
	b := make([]byte, 0, n)
	for _, f := range frames {
		b = append(b, f...)
		b = append(b, '\n')
	}
	b = append(b, state...)
	return string(b)
}
