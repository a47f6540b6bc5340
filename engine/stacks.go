package engine

import (
	"bytes"
	"runtime"
	"strconv"
	"strings"
)

// goroutineStack 一条goroutine的文本栈解析结果，frames按叶子在前排列
type goroutineStack struct {
	gid    uint64
	state  string
	frames []string
}

const (
	headerPrefix    = "goroutine "
	createdByPrefix = "created by "
)

// parseStacks 解析runtime.Stack全量抓取的文本输出
// 没有任何有效帧的块会被整体丢弃
func parseStacks(dump []byte) []goroutineStack {
	var out []goroutineStack
	var cur *goroutineStack

	flush := func() {
		if cur != nil && len(cur.frames) > 0 {
			out = append(out, *cur)
		}
		cur = nil
	}

	for len(dump) > 0 {
		var line []byte
		if i := bytes.IndexByte(dump, '\n'); i >= 0 {
			line, dump = dump[:i], dump[i+1:]
		} else {
			line, dump = dump, nil
		}
		s := string(line)

		switch {
		case strings.HasPrefix(s, headerPrefix):
			flush()
			if gid, state, ok := parseHeader(s); ok {
				cur = &goroutineStack{gid: gid, state: state}
			}
		case cur == nil, s == "":
			// 块外内容或块结束的空行
			flush()
		case strings.HasPrefix(s, "\t"), strings.HasPrefix(s, createdByPrefix):
			// 位置行与创建点行不参与聚合
		default:
			cur.frames = append(cur.frames, trimFrameArgs(s))
		}
	}
	flush()
	return out
}

// parseHeader 解析形如 "goroutine 18 [chan receive, 2 minutes]:" 的块头
func parseHeader(line string) (uint64, string, bool) {
	rest := strings.TrimPrefix(line, headerPrefix)
	sp := strings.IndexByte(rest, ' ')
	if sp <= 0 {
		return 0, "", false
	}
	gid, err := strconv.ParseUint(rest[:sp], 10, 64)
	if err != nil {
		return 0, "", false
	}
	open := strings.IndexByte(rest, '[')
	closeIdx := strings.LastIndexByte(rest, ']')
	if open < 0 || closeIdx <= open {
		return 0, "", false
	}
	state := rest[open+1 : closeIdx]
	// 等待时长后缀不属于状态本身
	if comma := strings.IndexByte(state, ','); comma >= 0 {
		state = state[:comma]
	}
	return gid, state, true
}

// trimFrameArgs 去掉函数行尾部的实参列表，保留完整函数名
// 方法名自身可能带括号，因此从最后一个左括号截断
func trimFrameArgs(line string) string {
	if i := strings.LastIndexByte(line, '('); i > 0 {
		return line[:i]
	}
	return line
}

// currentGID 解析当前goroutine的编号
func currentGID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte(headerPrefix))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}
