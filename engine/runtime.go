package engine

import (
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// SettingPeriod 采样周期设置项，取值为time.Duration字符串
	SettingPeriod = "period"
	// SettingStackDepth 聚合保留的最大栈深设置项
	SettingStackDepth = "stackdepth"
	// SettingSelfSamples 是否保留采样器自身goroutine的采样
	SettingSelfSamples = "selfsamples"

	// DefaultSamplePeriod 默认采样周期
	DefaultSamplePeriod = 20 * time.Millisecond
	// MinSamplePeriod 允许的最小采样周期，低于该值按非法处理
	MinSamplePeriod = time.Millisecond
	// DefaultStackDepth 默认保留栈深
	DefaultStackDepth = 64

	// ConfigNameDefault 低开销的默认预设名
	ConfigNameDefault = "default"
	// ConfigNameProfile 高精度持续剖析预设名
	ConfigNameProfile = "continuous-profile"

	// initStackBuf 首次抓取全量栈的缓冲区大小
	initStackBuf = 1 << 20
	// maxStackBuf 抓取缓冲区的增长上限
	maxStackBuf = 64 << 20
)

// 确保RuntimeEngine实现了Engine接口
var _ Engine = (*RuntimeEngine)(nil)

// RuntimeEngine 基于运行时栈抓取实现单一采样能力的复用
// 任意时刻至多一个采样循环在运行，所有活跃句柄共享同一批抓取结果
type RuntimeEngine struct {
	log *logrus.Logger

	mu      sync.Mutex
	running map[*runtimeCapture]struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewRuntimeEngine 创建运行时采样引擎
func NewRuntimeEngine(log *logrus.Logger) *RuntimeEngine {
	return &RuntimeEngine{
		log:     log,
		running: make(map[*runtimeCapture]struct{}),
	}
}

// Configurations 返回引擎内置的预设列表，调用方可安全修改返回值
func (e *RuntimeEngine) Configurations() []Configuration {
	return []Configuration{
		{
			Name:  ConfigNameDefault,
			Label: "Low overhead sampling suitable for production use",
			Settings: map[string]string{
				SettingPeriod:     DefaultSamplePeriod.String(),
				SettingStackDepth: "64",
			},
		},
		{
			Name:  ConfigNameProfile,
			Label: "Continuous profiling with higher sampling detail",
			Settings: map[string]string{
				SettingPeriod:     "10ms",
				SettingStackDepth: "128",
			},
		},
	}
}

// NewCapture 创建一个处于CREATED状态的采集句柄
func (e *RuntimeEngine) NewCapture(settings map[string]string) Capture {
	return newCapture(e, settings)
}

// attach 把句柄加入活跃集合，首个句柄会拉起采样循环
// 句柄若在入列前已被并发停止则直接放弃，避免活跃集合里出现非运行句柄
func (e *RuntimeEngine) attach(c *runtimeCapture) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c.State() != StateRunning {
		return
	}
	e.running[c] = struct{}{}
	if len(e.running) == 1 {
		stopCh := make(chan struct{})
		e.stopCh = stopCh
		e.wg.Add(1)
		go e.sampleLoop(stopCh)
		e.log.WithFields(logrus.Fields{"period": e.effectivePeriodLocked()}).Info("sampler loop started")
	}
}

// detach 把句柄移出活跃集合，最后一个句柄离开时通知采样循环退出
func (e *RuntimeEngine) detach(c *runtimeCapture) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.running[c]; !ok {
		return
	}
	delete(e.running, c)
	if len(e.running) == 0 && e.stopCh != nil {
		close(e.stopCh)
		e.stopCh = nil
		e.log.Info("sampler loop stopping")
	}
}

// effectivePeriodLocked 计算当前生效的采样周期，取活跃句柄中的最小值
func (e *RuntimeEngine) effectivePeriodLocked() time.Duration {
	p := DefaultSamplePeriod
	first := true
	for c := range e.running {
		if first || c.settings.period < p {
			p = c.settings.period
			first = false
		}
	}
	return p
}

func (e *RuntimeEngine) effectivePeriod() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.effectivePeriodLocked()
}

// snapshotRunning 复制一份活跃句柄列表，投递时不持有引擎锁
func (e *RuntimeEngine) snapshotRunning() []*runtimeCapture {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.running) == 0 {
		return nil
	}
	out := make([]*runtimeCapture, 0, len(e.running))
	for c := range e.running {
		out = append(out, c)
	}
	return out
}

// sampleLoop 按当前生效周期抓取全量goroutine栈并投递给所有活跃句柄
func (e *RuntimeEngine) sampleLoop(stopCh chan struct{}) {
	defer e.wg.Done()

	gid := currentGID()
	buf := make([]byte, initStackBuf)
	timer := time.NewTimer(e.effectivePeriod())
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
		}

		var dump []byte
		dump, buf = captureStacks(buf)
		stacks := parseStacks(dump)
		for _, c := range e.snapshotRunning() {
			c.record(stacks, gid)
		}
		timer.Reset(e.effectivePeriod())
	}
}

// captureStacks 抓取全部goroutine的文本栈，缓冲区不足时翻倍重试
// 返回本次的有效切片和可复用的底层缓冲区
func captureStacks(buf []byte) ([]byte, []byte) {
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return buf[:n], buf
		}
		if len(buf) >= maxStackBuf {
			return buf[:n], buf
		}
		buf = make([]byte, len(buf)*2)
	}
}
