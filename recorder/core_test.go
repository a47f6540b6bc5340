package recorder

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toheart/flightrec/engine"
	"github.com/toheart/flightrec/persistence/memory"
)

// stubCapture 可控的采集句柄，用于确定性地驱动生命周期
type stubCapture struct {
	mu       sync.Mutex
	state    engine.State
	dest     string
	duration time.Duration
	start    time.Time
	closeErr error
}

func (c *stubCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != engine.StateCreated {
		return engine.ErrInvalidState
	}
	c.state = engine.StateRunning
	c.start = time.Now()
	return nil
}

func (c *stubCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != engine.StateRunning {
		return engine.ErrInvalidState
	}
	c.state = engine.StateStopped
	return nil
}

func (c *stubCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeErr != nil {
		return c.closeErr
	}
	c.state = engine.StateClosed
	return nil
}

func (c *stubCapture) State() engine.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *stubCapture) SetDestination(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != engine.StateCreated {
		return engine.ErrInvalidState
	}
	c.dest = path
	return nil
}

func (c *stubCapture) SetDuration(d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != engine.StateCreated {
		return engine.ErrInvalidState
	}
	c.duration = d
	return nil
}

func (c *stubCapture) Destination() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dest
}

func (c *stubCapture) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

func (c *stubCapture) StartTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start
}

func (c *stubCapture) setStartTime(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = at
}

// stubEngine 记录创建参数的引擎替身
type stubEngine struct {
	mu           sync.Mutex
	captures     []*stubCapture
	lastSettings map[string]string
}

func (e *stubEngine) Configurations() []engine.Configuration {
	return []engine.Configuration{
		{Name: "default", Label: "plain preset", Settings: map[string]string{"period": "20ms", "selfsamples": "true"}},
		{Name: "test-profile", Label: "marked preset", Settings: map[string]string{"period": "5ms", "stackdepth": "32"}},
	}
}

func (e *stubEngine) NewCapture(settings map[string]string) engine.Capture {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSettings = settings
	c := &stubCapture{}
	e.captures = append(e.captures, c)
	return c
}

func (e *stubEngine) capture(i int) *stubCapture {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.captures[i]
}

func testConfig() *Config {
	return &Config{
		CleanupInterval:      DefaultCleanupInterval,
		OldRecordingsTTL:     30,
		OldRecordingsTTLUnit: UnitSeconds,
		DBType:               "memory",
		InsertMode:           SyncMode,
		JournalBuffer:        8,
		LogFileName:          LogFileName,
	}
}

func newStubRecorder(t *testing.T, cfg *Config) (*FlightRecorder, *stubEngine, *memory.MemSessionEventRepository) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	eng := &stubEngine{}
	repo := memory.NewMemSessionEventRepository(log)
	return NewFlightRecorder(eng, cfg, log, repo), eng, repo
}

func TestNewSessionMergesProfileSettings(t *testing.T) {
	fr, eng, _ := newStubRecorder(t, testConfig())

	id := fr.NewSession()
	assert.Greater(t, id, int64(0))

	assert.Equal(t, "5ms", eng.lastSettings["period"], "marked preset settings should be merged")
	assert.Equal(t, "32", eng.lastSettings["stackdepth"])
	_, fromPlain := eng.lastSettings["selfsamples"]
	assert.False(t, fromPlain, "unmarked preset settings must not leak in")
}

func TestNewSessionConcurrentUniqueIDs(t *testing.T) {
	fr, _, _ := newStubRecorder(t, testConfig())

	const workers = 8
	const perWorker = 10
	ids := make(chan int64, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				ids <- fr.NewSession()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)
	assert.Len(t, fr.Sessions(), workers*perWorker)
}

func TestConfigureUnknownSessionIsNoop(t *testing.T) {
	fr, _, _ := newStubRecorder(t, testConfig())
	assert.NoError(t, fr.Configure(999, time.Second, "/tmp/ignored.pprof"),
		"configuring an unknown session must not fail")
}

func TestConfigureAfterStartRejected(t *testing.T) {
	fr, _, _ := newStubRecorder(t, testConfig())
	id := fr.NewSession()
	fr.Start(id)

	err := fr.Configure(id, time.Second, "/tmp/late.pprof")
	assert.True(t, errors.Is(err, engine.ErrInvalidState))
}

func TestStopLifecycle(t *testing.T) {
	fr, _, _ := newStubRecorder(t, testConfig())

	// 未知标识
	dest, ok := fr.Stop(404)
	assert.False(t, ok)
	assert.Empty(t, dest)

	// 创建但未启动：不触发引擎调用，仍返回路径
	id := fr.NewSession()
	require.NoError(t, fr.Configure(id, 0, "/tmp/rec.pprof"))
	dest, ok = fr.Stop(id)
	assert.True(t, ok)
	assert.Equal(t, "/tmp/rec.pprof", dest)

	// 正常启动停止
	fr.Start(id)
	dest, ok = fr.Stop(id)
	assert.True(t, ok)
	assert.Equal(t, "/tmp/rec.pprof", dest)
	assert.True(t, fr.IsStopped(id))

	// 重复停止幂等
	dest, ok = fr.Stop(id)
	assert.True(t, ok)
	assert.Equal(t, "/tmp/rec.pprof", dest)
	assert.True(t, fr.IsStopped(id))
}

func TestIsStoppedStates(t *testing.T) {
	fr, _, _ := newStubRecorder(t, testConfig())

	assert.True(t, fr.IsStopped(12345), "absent session counts as stopped")

	id := fr.NewSession()
	assert.False(t, fr.IsStopped(id), "created session is not stopped")

	fr.Start(id)
	assert.False(t, fr.IsStopped(id), "running session is not stopped")

	fr.Stop(id)
	assert.True(t, fr.IsStopped(id))
}

func TestCloseSessionRemoves(t *testing.T) {
	fr, _, _ := newStubRecorder(t, testConfig())
	id := fr.NewSession()
	fr.Start(id)

	fr.CloseSession(id)
	assert.Empty(t, fr.Sessions())
	assert.True(t, fr.IsStopped(id))

	// 重复关闭只产生告警
	fr.CloseSession(id)
}

func TestSessionsSnapshot(t *testing.T) {
	fr, _, _ := newStubRecorder(t, testConfig())
	first := fr.NewSession()
	second := fr.NewSession()
	fr.Start(second)

	infos := fr.Sessions()
	require.Len(t, infos, 2)
	assert.Equal(t, first, infos[0].ID, "sessions should be ordered by id")
	assert.Equal(t, "CREATED", infos[0].State)
	assert.Equal(t, second, infos[1].ID)
	assert.Equal(t, "RUNNING", infos[1].State)
	assert.NotEmpty(t, infos[1].StartTime)

	fr.Stop(second)
}

func TestReaperSweepBoundary(t *testing.T) {
	cfg := testConfig() // TTL 30 seconds
	fr, eng, _ := newStubRecorder(t, cfg)

	id := fr.NewSession()
	fr.Start(id)
	fr.Stop(id)

	t0 := time.Now()
	eng.capture(0).setStartTime(t0)

	rp := fr.Reaper()

	// 恰好到达保留期限的会话保留
	assert.Equal(t, 0, rp.sweep(t0.Add(cfg.TTL())), "session exactly at the cutoff must survive")
	require.Len(t, fr.Sessions(), 1)

	// 超过保留期限即被回收
	assert.Equal(t, 1, rp.sweep(t0.Add(cfg.TTL()+time.Millisecond)))
	assert.Empty(t, fr.Sessions())
}

func TestReaperSkipsLiveSessions(t *testing.T) {
	fr, eng, _ := newStubRecorder(t, testConfig())
	rp := fr.Reaper()
	farFuture := time.Now().Add(240 * time.Hour)

	created := fr.NewSession()
	assert.Equal(t, 0, rp.sweep(farFuture), "created sessions are never reaped")

	running := fr.NewSession()
	fr.Start(running)
	eng.capture(1).setStartTime(time.Now().Add(-time.Hour))
	assert.Equal(t, 0, rp.sweep(farFuture), "running sessions are never reaped")

	require.Len(t, fr.Sessions(), 2)
	fr.Stop(running)
	fr.CloseSession(created)
	fr.CloseSession(running)
}

func TestReaperRemovesDespiteCloseFailure(t *testing.T) {
	fr, eng, _ := newStubRecorder(t, testConfig())

	id := fr.NewSession()
	fr.Start(id)
	fr.Stop(id)
	eng.capture(0).closeErr = errors.New("close sabotage")
	eng.capture(0).setStartTime(time.Now().Add(-time.Hour))

	assert.Equal(t, 1, fr.Reaper().sweep(time.Now()), "close failure must not block removal")
	assert.Empty(t, fr.Sessions())
}

func TestJournalRecordsLifecycleSequence(t *testing.T) {
	fr, eng, _ := newStubRecorder(t, testConfig())

	id := fr.NewSession()
	require.NoError(t, fr.Configure(id, time.Second, "/tmp/seq.pprof"))
	fr.Start(id)
	fr.Stop(id)
	eng.capture(0).setStartTime(time.Now().Add(-time.Hour))
	fr.Reaper().sweep(time.Now())

	events, err := fr.Events(id)
	require.NoError(t, err)
	assert.Equal(t, []string{EventCreated, EventConfigured, EventStarted, EventStopped, EventReaped}, events)
}

func TestJournalRecordsClose(t *testing.T) {
	fr, _, _ := newStubRecorder(t, testConfig())
	id := fr.NewSession()
	fr.CloseSession(id)

	events, err := fr.Events(id)
	require.NoError(t, err)
	assert.Equal(t, []string{EventCreated, EventClosed}, events)
}

func TestJournalAsyncDrainOnShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.InsertMode = AsyncMode
	fr, _, repo := newStubRecorder(t, cfg)

	const n = 10
	for i := 0; i < n; i++ {
		fr.NewSession()
	}
	fr.Shutdown()

	count, err := repo.CountEvents()
	require.NoError(t, err)
	assert.Equal(t, int64(n), count, "shutdown must drain all pending journal events")

	// 关闭后的写入退化为同步执行，数据不丢失
	fr.NewSession()
	count, err = repo.CountEvents()
	require.NoError(t, err)
	assert.Equal(t, int64(n+1), count)
}

func TestShutdownIsIdempotent(t *testing.T) {
	fr, _, _ := newStubRecorder(t, testConfig())
	fr.Reaper().Start()
	fr.Shutdown()
	fr.Shutdown()
}
