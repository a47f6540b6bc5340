package engine

import (
	"os"
	"sort"
	"time"

	"github.com/google/pprof/profile"
)

// LabelState 样本上携带goroutine状态的标签键
const LabelState = "state"

// flush 把聚合结果编码为pprof产物并写入目标文件
func (c *runtimeCapture) flush(dest string) error {
	c.mu.Lock()
	groups := make([]*stackCount, 0, len(c.agg))
	for _, g := range c.agg {
		groups = append(groups, g)
	}
	start, stop := c.start, c.stopped
	ticks := c.sampleTicks
	period := c.settings.period
	c.mu.Unlock()

	prof := buildProfile(groups, start, stop, period, ticks)
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := prof.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// buildProfile 将聚合计数转换为pprof剖析结构
// 每个样本带两列取值：采样次数和按实际平均采样间隔折算的墙钟时间
func buildProfile(groups []*stackCount, start, stop time.Time, period time.Duration, ticks int64) *profile.Profile {
	// 实际间隔以运行时长除以推送轮次估算，没有任何轮次时退回配置周期
	wallPer := period.Nanoseconds()
	if ticks > 0 && stop.After(start) {
		if per := stop.Sub(start).Nanoseconds() / ticks; per > 0 {
			wallPer = per
		}
	}

	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "samples", Unit: "count"},
			{Type: "wall", Unit: "nanoseconds"},
		},
		DefaultSampleType: "samples",
		PeriodType:        &profile.ValueType{Type: "wall", Unit: "nanoseconds"},
		Period:            wallPer,
		TimeNanos:         start.UnixNano(),
	}
	if stop.After(start) {
		prof.DurationNanos = stop.Sub(start).Nanoseconds()
	}

	// 固定顺序输出，保证同一份聚合生成的产物可复现
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return stackKey(groups[i].frames, groups[i].state) < stackKey(groups[j].frames, groups[j].state)
	})

	locs := make(map[string]*profile.Location)
	for _, g := range groups {
		sample := &profile.Sample{
			Value: []int64{g.count, g.count * wallPer},
			Label: map[string][]string{LabelState: {g.state}},
		}
		for _, name := range g.frames {
			loc, ok := locs[name]
			if !ok {
				fn := &profile.Function{
					ID:         uint64(len(prof.Function) + 1),
					Name:       name,
					SystemName: name,
				}
				prof.Function = append(prof.Function, fn)
				loc = &profile.Location{
					ID:   uint64(len(prof.Location) + 1),
					Line: []profile.Line{{Function: fn}},
				}
				prof.Location = append(prof.Location, loc)
				locs[name] = loc
			}
			sample.Location = append(sample.Location, loc)
		}
		prof.Sample = append(prof.Sample, sample)
	}
	return prof
}
