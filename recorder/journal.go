package recorder

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"github.com/toheart/flightrec/domain"
	"github.com/toheart/flightrec/domain/model"
)

// journal 会话生命周期事件流水
// 事件写入绝不阻塞也绝不影响生命周期操作本身，仓储缺失时整体退化为空操作
type journal struct {
	log        *logrus.Logger
	repo       domain.SessionEventRepository
	insertMode string

	mu        sync.RWMutex
	closed    bool
	opChan    chan *model.SessionEvent
	dataClose chan struct{}
}

func newJournal(log *logrus.Logger, repo domain.SessionEventRepository, insertMode string, buffer int) *journal {
	if buffer <= 0 {
		buffer = DefaultJournalBuffer
	}
	return &journal{
		log:        log,
		repo:       repo,
		insertMode: insertMode,
		opChan:     make(chan *model.SessionEvent, buffer),
		dataClose:  make(chan struct{}),
	}
}

// start 启动异步消费，仅异步模式调用
func (j *journal) start() {
	go j.run()
}

func (j *journal) run() {
	p := pool.New().WithMaxGoroutines(50)
	for op := range j.opChan {
		tmpOp := op
		p.Go(func() {
			j.persist(tmpOp)
		})
	}
	p.Wait()
	j.dataClose <- struct{}{}
}

// record 登记一条生命周期事件
func (j *journal) record(sessionID int64, event string, state string, destination string, detail string) {
	if j.repo == nil {
		return
	}
	e := model.NewSessionEvent(sessionID, event, state, time.Now().Format(TimeFormat)).
		WithDestination(destination).
		WithDetail(detail)
	j.send(e)
}

// send 根据插入模式决定是同步执行还是通过通道异步执行
func (j *journal) send(e *model.SessionEvent) {
	if j.insertMode == SyncMode {
		j.persist(e)
		return
	}

	// 检查是否已关闭，避免向已关闭的通道写入
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		// 已关闭，改为同步执行以确保数据不丢失
		j.persist(e)
		return
	}

	// 使用select避免阻塞，如果通道满了则同步执行
	select {
	case j.opChan <- e:
		j.mu.RUnlock()
	default:
		j.mu.RUnlock()
		// 通道满了，同步执行避免丢失数据
		j.persist(e)
	}
}

func (j *journal) persist(e *model.SessionEvent) {
	if _, err := j.repo.SaveEvent(e); err != nil {
		j.log.WithFields(logrus.Fields{"error": err, "sessionId": e.SessionID, "event": e.Event}).Error("save session event failed")
	}
}

// close 关闭流水并等待异步消费完成
func (j *journal) close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	j.mu.Unlock()

	if j.insertMode == AsyncMode {
		close(j.opChan)
		<-j.dataClose
	}
}
