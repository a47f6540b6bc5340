package main

import (
	"crypto/sha256"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/toheart/flightrec"
)

// OrderBook 模拟业务负载的订单簿结构体
type OrderBook struct {
	bids []float64
	asks []float64
}

// NewOrderBook 创建新的订单簿
func NewOrderBook() *OrderBook {
	return &OrderBook{}
}

// Insert 插入一笔报价并保持有序
func (ob *OrderBook) Insert(price float64, isBid bool) {
	side := &ob.asks
	if isBid {
		side = &ob.bids
	}
	*side = append(*side, price)

	// 低效的插入排序，留给采样器观察
	for i := len(*side) - 1; i > 0 && (*side)[i] < (*side)[i-1]; i-- {
		(*side)[i], (*side)[i-1] = (*side)[i-1], (*side)[i]
	}
	if len(*side) > 4096 {
		*side = (*side)[:2048]
	}
}

// hashRounds 制造CPU密集的哈希负载
func hashRounds(seed string, rounds int) [32]byte {
	sum := sha256.Sum256([]byte(seed))
	for i := 0; i < rounds; i++ {
		sum = sha256.Sum256(sum[:])
	}
	return sum
}

// fibonacci 递归斐波那契，制造深调用栈
func fibonacci(n int) int {
	if n < 2 {
		return n
	}
	return fibonacci(n-1) + fibonacci(n-2)
}

// runWorkload 持续运行的模拟业务负载
func runWorkload(stop chan struct{}) {
	ob := NewOrderBook()
	i := 0
	for {
		select {
		case <-stop:
			return
		default:
		}
		ob.Insert(float64(i%997), i%2 == 0)
		hashRounds(fmt.Sprintf("order-%d", i), 200)
		if i%50 == 0 {
			fibonacci(18)
		}
		i++
		time.Sleep(time.Millisecond)
	}
}

func main() {
	fmt.Println("=== Flightrec Example Program ===")

	// 后台负载，让录制有内容可看
	stop := make(chan struct{})
	go runWorkload(stop)
	go runWorkload(stop)

	// 程序内直接发起一段定时录制
	id, err := flightrec.StartRecordingFor(3 * time.Second)
	if err != nil {
		log.Fatalf("start recording failed: %v", err)
	}
	fmt.Printf("recording session %d started for 3s\n", id)

	go func() {
		for !flightrec.IsRecordingStopped(id) {
			time.Sleep(100 * time.Millisecond)
		}
		if dest, ok := flightrec.StopRecording(id); ok {
			fmt.Printf("recording session %d finished, artifact: %s\n", id, dest)
			fmt.Printf("inspect it with: go tool pprof %s\n", dest)
		}
	}()

	// 挂载HTTP接口，浏览器里可以直接拿火焰图
	mux := http.NewServeMux()
	mux.Handle("/", flightrec.Handler())
	srv := &http.Server{Addr: ":8080", Handler: mux}

	go func() {
		fmt.Println("listening on :8080")
		fmt.Println("  PUT    /flightrecorder                      start a recording, e.g. {\"duration\": 30, \"timeUnit\": \"seconds\"}")
		fmt.Println("  GET    /flightrecorder                      list sessions")
		fmt.Println("  GET    /flightrecorder/{id}                 download the pprof artifact")
		fmt.Println("  GET    /flightrecorder/{id}/flamegraph.json render the filtered flame graph")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve failed: %v", err)
		}
	}()

	// 等待退出信号
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	fmt.Println("shutting down")
	close(stop)
	srv.Close()
	if err := flightrec.Shutdown(); err != nil {
		log.Printf("shutdown flight recorder: %v", err)
	}

	fmt.Println("=== Example program execution completed ===")
}
