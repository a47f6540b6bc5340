package engine

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/pprof/profile"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "CREATED", StateCreated.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "STOPPED", StateStopped.String())
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
}

func TestConfigurationsAreCopies(t *testing.T) {
	eng := NewRuntimeEngine(newTestLogger())
	first := eng.Configurations()
	require.Len(t, first, 2)
	assert.Equal(t, ConfigNameDefault, first[0].Name)
	assert.Equal(t, ConfigNameProfile, first[1].Name)

	first[0].Settings[SettingPeriod] = "1h"
	second := eng.Configurations()
	assert.Equal(t, DefaultSamplePeriod.String(), second[0].Settings[SettingPeriod],
		"mutating a returned configuration must not leak into the engine")
}

func TestParseSettings(t *testing.T) {
	log := newTestLogger()

	ks := parseSettings(nil, log)
	assert.Equal(t, DefaultSamplePeriod, ks.period)
	assert.Equal(t, DefaultStackDepth, ks.maxDepth)
	assert.False(t, ks.keepSelf)

	ks = parseSettings(map[string]string{
		SettingPeriod:      "50ms",
		SettingStackDepth:  "16",
		SettingSelfSamples: "true",
	}, log)
	assert.Equal(t, 50*time.Millisecond, ks.period)
	assert.Equal(t, 16, ks.maxDepth)
	assert.True(t, ks.keepSelf)

	ks = parseSettings(map[string]string{
		SettingPeriod:     "not-a-duration",
		SettingStackDepth: "-3",
	}, log)
	assert.Equal(t, DefaultSamplePeriod, ks.period, "invalid period should fall back to default")
	assert.Equal(t, DefaultStackDepth, ks.maxDepth, "invalid depth should fall back to default")

	ks = parseSettings(map[string]string{SettingPeriod: "500us"}, log)
	assert.Equal(t, DefaultSamplePeriod, ks.period, "period below the minimum should fall back to default")
}

func TestCaptureStateMachine(t *testing.T) {
	eng := NewRuntimeEngine(newTestLogger())
	c := eng.NewCapture(nil)
	assert.Equal(t, StateCreated, c.State())

	err := c.Stop()
	assert.True(t, errors.Is(err, ErrInvalidState), "stop before start should be rejected")

	require.NoError(t, c.Start())
	assert.Equal(t, StateRunning, c.State())
	assert.False(t, c.StartTime().IsZero())

	err = c.Start()
	assert.True(t, errors.Is(err, ErrInvalidState), "double start should be rejected")
	err = c.SetDestination(filepath.Join(t.TempDir(), "late.pprof"))
	assert.True(t, errors.Is(err, ErrInvalidState), "destination cannot change after start")
	err = c.SetDuration(time.Second)
	assert.True(t, errors.Is(err, ErrInvalidState), "duration cannot change after start")

	require.NoError(t, c.Stop())
	assert.Equal(t, StateStopped, c.State())
	err = c.Stop()
	assert.True(t, errors.Is(err, ErrInvalidState), "double stop should be rejected")

	require.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())
	require.NoError(t, c.Close(), "closing a closed capture should be a no-op")
}

func TestCaptureCloseWhileRunning(t *testing.T) {
	eng := NewRuntimeEngine(newTestLogger())
	c := eng.NewCapture(map[string]string{SettingPeriod: "5ms"})
	require.NoError(t, c.Start())
	require.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())
	eng.wg.Wait()
}

func TestCaptureArtifact(t *testing.T) {
	eng := NewRuntimeEngine(newTestLogger())
	c := eng.NewCapture(map[string]string{SettingPeriod: "5ms"})

	dest := filepath.Join(t.TempDir(), "sub", "cap.pprof")
	require.NoError(t, c.SetDestination(dest))
	_, err := os.Stat(dest)
	require.NoError(t, err, "destination should be pre-created")
	assert.Equal(t, dest, c.Destination())

	require.NoError(t, c.Start())
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, c.Stop())

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	prof, err := profile.Parse(f)
	require.NoError(t, err, "artifact should be a valid pprof profile")
	require.NoError(t, prof.CheckValid())

	require.Len(t, prof.SampleType, 2)
	assert.Equal(t, "samples", prof.SampleType[0].Type)
	assert.Equal(t, "wall", prof.SampleType[1].Type)
	assert.NotEmpty(t, prof.Sample, "sampling for 150ms at 5ms period should collect samples")
	assert.Greater(t, prof.DurationNanos, int64(0))

	require.NoError(t, c.Close())
	eng.wg.Wait()
}

func TestSamplerMultiplexesCaptures(t *testing.T) {
	eng := NewRuntimeEngine(newTestLogger())
	first := eng.NewCapture(map[string]string{SettingPeriod: "5ms"})
	second := eng.NewCapture(map[string]string{SettingPeriod: "10ms"})

	dir := t.TempDir()
	destFirst := filepath.Join(dir, "first.pprof")
	destSecond := filepath.Join(dir, "second.pprof")
	require.NoError(t, first.SetDestination(destFirst))
	require.NoError(t, second.SetDestination(destSecond))

	require.NoError(t, first.Start())
	require.NoError(t, second.Start())
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, first.Stop())
	require.NoError(t, second.Stop())

	for _, dest := range []string{destFirst, destSecond} {
		f, err := os.Open(dest)
		require.NoError(t, err)
		prof, err := profile.Parse(f)
		f.Close()
		require.NoError(t, err)
		require.NoError(t, prof.CheckValid())
		assert.NotEmpty(t, prof.Sample, "every running capture should receive samples from the shared sampler")
	}

	require.NoError(t, first.Close())
	require.NoError(t, second.Close())
	eng.wg.Wait()
}

func TestCaptureDurationAutoStop(t *testing.T) {
	eng := NewRuntimeEngine(newTestLogger())
	c := eng.NewCapture(map[string]string{SettingPeriod: "5ms"})
	require.NoError(t, c.SetDuration(30*time.Millisecond))
	assert.Equal(t, 30*time.Millisecond, c.Duration())
	require.NoError(t, c.Start())

	deadline := time.Now().Add(2 * time.Second)
	for c.State() != StateStopped && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, StateStopped, c.State(), "capture should stop itself after the configured duration")
	require.NoError(t, c.Close())
	eng.wg.Wait()
}

func TestRecordAggregation(t *testing.T) {
	eng := NewRuntimeEngine(newTestLogger())
	c := newCapture(eng, map[string]string{SettingStackDepth: "2"})
	c.state.Store(int32(StateRunning))

	stacks := []goroutineStack{
		{gid: 7, state: "running", frames: []string{"self.loop"}},
		{gid: 9, state: "select", frames: []string{"leaf", "mid", "root"}},
	}
	c.record(stacks, 7)
	c.record(stacks, 7)

	require.Len(t, c.agg, 1, "sampler goroutine should be filtered out by default")
	for _, g := range c.agg {
		assert.Equal(t, []string{"leaf", "mid"}, g.frames, "frames should be truncated to the configured depth")
		assert.Equal(t, "select", g.state)
		assert.Equal(t, int64(2), g.count)
	}
	assert.Equal(t, int64(2), c.sampleTicks)
}

func TestRecordKeepsSelfWhenAsked(t *testing.T) {
	eng := NewRuntimeEngine(newTestLogger())
	c := newCapture(eng, map[string]string{SettingSelfSamples: "true"})
	c.state.Store(int32(StateRunning))

	c.record([]goroutineStack{{gid: 7, state: "running", frames: []string{"self.loop"}}}, 7)
	assert.Len(t, c.agg, 1)
}

func TestRecordIgnoredAfterStop(t *testing.T) {
	eng := NewRuntimeEngine(newTestLogger())
	c := newCapture(eng, nil)
	c.state.Store(int32(StateStopped))
	c.record([]goroutineStack{{gid: 9, state: "running", frames: []string{"f"}}}, 1)
	assert.Empty(t, c.agg)
}

func TestEffectivePeriodTracksMinimum(t *testing.T) {
	eng := NewRuntimeEngine(newTestLogger())
	slow := eng.NewCapture(map[string]string{SettingPeriod: "40ms"})
	fast := eng.NewCapture(map[string]string{SettingPeriod: "5ms"})

	require.NoError(t, slow.Start())
	assert.Equal(t, 40*time.Millisecond, eng.effectivePeriod())

	require.NoError(t, fast.Start())
	assert.Equal(t, 5*time.Millisecond, eng.effectivePeriod(), "fastest running capture should win")

	require.NoError(t, fast.Stop())
	assert.Equal(t, 40*time.Millisecond, eng.effectivePeriod())

	require.NoError(t, slow.Stop())
	assert.Equal(t, DefaultSamplePeriod, eng.effectivePeriod(), "idle engine should report the default period")

	require.NoError(t, slow.Close())
	require.NoError(t, fast.Close())
	eng.wg.Wait()
}

func TestBuildProfileValues(t *testing.T) {
	start := time.Now()
	stop := start.Add(100 * time.Millisecond)
	groups := []*stackCount{
		{frames: []string{"other.fn"}, state: "select", count: 1},
		{frames: []string{"leaf.fn", "root.fn"}, state: "running", count: 4},
	}

	prof := buildProfile(groups, start, stop, 10*time.Millisecond, 10)
	require.NoError(t, prof.CheckValid())

	wallPer := int64(10 * time.Millisecond)
	assert.Equal(t, wallPer, prof.Period)
	assert.Equal(t, "samples", prof.DefaultSampleType)
	assert.Equal(t, int64(100*time.Millisecond), prof.DurationNanos)
	assert.Equal(t, start.UnixNano(), prof.TimeNanos)

	require.Len(t, prof.Sample, 2)
	busiest := prof.Sample[0]
	assert.Equal(t, []int64{4, 4 * wallPer}, busiest.Value, "samples should be ordered by count descending")
	assert.Equal(t, []string{"running"}, busiest.Label[LabelState])
	require.Len(t, busiest.Location, 2)
	assert.Equal(t, "leaf.fn", busiest.Location[0].Line[0].Function.Name, "locations should stay leaf first")
	assert.Equal(t, "root.fn", busiest.Location[1].Line[0].Function.Name)
}

func TestBuildProfileNoTicks(t *testing.T) {
	now := time.Now()
	prof := buildProfile(nil, now, now, 20*time.Millisecond, 0)
	require.NoError(t, prof.CheckValid())
	assert.Equal(t, int64(20*time.Millisecond), prof.Period, "period should fall back to the configured value")
	assert.Empty(t, prof.Sample)
}

func TestSetDestinationUnwritable(t *testing.T) {
	eng := NewRuntimeEngine(newTestLogger())
	c := eng.NewCapture(nil)
	err := c.SetDestination(filepath.Join(t.TempDir(), "missing\x00dir", "cap.pprof"))
	assert.Error(t, err, "unwritable destination should surface immediately")
}
