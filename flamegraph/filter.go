package flamegraph

import (
	"runtime/debug"
	"strings"
)

// FrameFilter 决定一个函数帧是否保留在火焰图里
type FrameFilter interface {
	Keep(frame string) bool
}

type prefixFilter struct {
	prefix string
}

// PackagePrefixFilter 只保留限定名以给定包前缀开头的帧
// 前缀为空时不做任何过滤，保证探测失败时仍能输出完整文档
func PackagePrefixFilter(prefix string) FrameFilter {
	return prefixFilter{prefix: prefix}
}

func (f prefixFilter) Keep(frame string) bool {
	if f.prefix == "" {
		return true
	}
	return strings.HasPrefix(frame, f.prefix)
}

// DetectMainPrefix 从构建信息里探测应用主模块的包前缀
// 非模块构建或信息缺失时返回空串
func DetectMainPrefix() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	return info.Main.Path
}
