package eventbus

import (
	"sync/atomic"
	"time"
)

// StatsSnapshot 预测统计快照
type StatsSnapshot struct {
	Completed     uint64  `json:"completed"`
	Failed        uint64  `json:"failed"`
	Rejected      uint64  `json:"rejected"`
	AvgUpstreamMS float64 `json:"avg_upstream_ms"`
}

// Stats 通过订阅预测事件累计计数，可并发读取
type Stats struct {
	completed  atomic.Uint64
	failed     atomic.Uint64
	rejected   atomic.Uint64
	upstreamNS atomic.Int64
}

// NewStats 创建统计订阅者
func NewStats() *Stats {
	return &Stats{}
}

// Register 订阅预测事件
func (s *Stats) Register(bus Subscriber) error {
	if err := bus.Subscribe(EventPredictionCompleted, s.onCompleted); err != nil {
		return err
	}
	if err := bus.Subscribe(EventPredictionFailed, s.onFailed); err != nil {
		return err
	}
	return bus.Subscribe(EventPredictionRejected, s.onRejected)
}

func (s *Stats) onCompleted(data PredictionEventData) {
	s.completed.Add(1)
	s.upstreamNS.Add(int64(data.Duration))
}

func (s *Stats) onFailed(data PredictionEventData) {
	s.failed.Add(1)
	s.upstreamNS.Add(int64(data.Duration))
}

func (s *Stats) onRejected(PredictionEventData) {
	s.rejected.Add(1)
}

// Snapshot 返回当前计数
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Completed: s.completed.Load(),
		Failed:    s.failed.Load(),
		Rejected:  s.rejected.Load(),
	}
	if calls := snap.Completed + snap.Failed; calls > 0 {
		avg := time.Duration(s.upstreamNS.Load() / int64(calls))
		snap.AvgUpstreamMS = float64(avg.Microseconds()) / 1000
	}
	return snap
}
