// Package flamegraph 把pprof产物聚合成火焰图文档
// 输出为d3-flamegraph消费的 name/value/children 树形JSON结构
package flamegraph

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/google/pprof/profile"
)

// RootName 火焰图根节点名
const RootName = "all"

// Frame 火焰图的一个节点，Value为包含全部子节点在内的累计采样数
type Frame struct {
	Name     string   `json:"name"`
	Value    int64    `json:"value"`
	Children []*Frame `json:"children,omitempty"`
}

// From 解析一份pprof产物并聚合为火焰图
// 过滤器未保留的帧会被拼接掉：其采样停留在最近一个保留下来的祖先节点上
func From(r io.Reader, filters ...FrameFilter) (*Frame, error) {
	prof, err := profile.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return fromProfile(prof, filters), nil
}

// FromFile 从文件读取pprof产物并聚合为火焰图
func FromFile(path string, filters ...FrameFilter) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	return From(f, filters...)
}

func fromProfile(prof *profile.Profile, filters []FrameFilter) *Frame {
	root := &Frame{Name: RootName}
	idx := sampleIndex(prof)

	for _, s := range prof.Sample {
		if idx >= len(s.Value) {
			continue
		}
		v := s.Value[idx]
		if v == 0 {
			continue
		}
		root.Value += v

		cur := root
		for _, name := range rootFirstNames(s) {
			if !keep(filters, name) {
				continue
			}
			cur = cur.child(name)
			cur.Value += v
		}
	}

	root.sortTree()
	return root
}

// sampleIndex 定位默认取值列，找不到时使用第一列
func sampleIndex(prof *profile.Profile) int {
	for i, st := range prof.SampleType {
		if st.Type == prof.DefaultSampleType {
			return i
		}
	}
	return 0
}

// rootFirstNames 按根在前的顺序展开一条样本的函数名序列
// pprof的位置序列叶子在前，这里整体反转，内联行同样反转
func rootFirstNames(s *profile.Sample) []string {
	names := make([]string, 0, len(s.Location))
	for i := len(s.Location) - 1; i >= 0; i-- {
		loc := s.Location[i]
		for j := len(loc.Line) - 1; j >= 0; j-- {
			if fn := loc.Line[j].Function; fn != nil && fn.Name != "" {
				names = append(names, fn.Name)
			}
		}
	}
	return names
}

func keep(filters []FrameFilter, name string) bool {
	for _, f := range filters {
		if !f.Keep(name) {
			return false
		}
	}
	return true
}

// child 按名字取子节点，不存在时追加
func (f *Frame) child(name string) *Frame {
	for _, c := range f.Children {
		if c.Name == name {
			return c
		}
	}
	c := &Frame{Name: name}
	f.Children = append(f.Children, c)
	return c
}

// sortTree 递归固定子节点顺序，保证同一份产物渲染结果可复现
func (f *Frame) sortTree() {
	sort.Slice(f.Children, func(i, j int) bool {
		if f.Children[i].Value != f.Children[j].Value {
			return f.Children[i].Value > f.Children[j].Value
		}
		return f.Children[i].Name < f.Children[j].Name
	})
	for _, c := range f.Children {
		c.sortTree()
	}
}
