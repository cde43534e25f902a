package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/metrics"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"

	"go.uber.org/zap"
)

// ErrQueuesClosed 队列已关闭
var ErrQueuesClosed = errors.New("tracker queues closed")

const processTimeout = 30 * time.Second

// EventSink 报警周期事件接收方
type EventSink interface {
	HandleEpisodeEvent(ctx context.Context, event models.EpisodeEvent)
}

// Queues 按患者划分的有序队列：每个活跃患者一个 goroutine，
// 同一患者按提交顺序处理，不同患者并发处理。
type Queues struct {
	tracker     *Tracker
	sink        EventSink
	metrics     *metrics.Metrics
	logger      *zap.Logger
	queueSize   int
	idleTimeout time.Duration

	mu      sync.Mutex
	workers map[string]*worker
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

type worker struct {
	ch      chan models.PatientSnapshot
	pending int // 已提交未处理的数量，受 Queues.mu 保护
}

// NewQueues 创建队列
func NewQueues(
	tracker *Tracker,
	sink EventSink,
	queueSize int,
	idleTimeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Queues {
	if queueSize <= 0 {
		queueSize = 64
	}
	if idleTimeout <= 0 {
		idleTimeout = 5 * time.Minute
	}
	return &Queues{
		tracker:     tracker,
		sink:        sink,
		metrics:     m,
		logger:      logger,
		queueSize:   queueSize,
		idleTimeout: idleTimeout,
		workers:     make(map[string]*worker),
		done:        make(chan struct{}),
	}
}

// Submit 提交一条快照更新（队列满时阻塞，直到 ctx 取消）
func (q *Queues) Submit(ctx context.Context, snap models.PatientSnapshot) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueuesClosed
	}
	w, ok := q.workers[snap.PatientID]
	if !ok {
		w = &worker{ch: make(chan models.PatientSnapshot, q.queueSize)}
		q.workers[snap.PatientID] = w
		q.wg.Add(1)
		q.metrics.WorkerStarted()
		go q.run(snap.PatientID, w)
	}
	w.pending++
	q.mu.Unlock()

	select {
	case w.ch <- snap:
		return nil
	case <-ctx.Done():
		q.release(w)
		return ctx.Err()
	case <-q.done:
		q.release(w)
		return ErrQueuesClosed
	}
}

// ActiveWorkers 当前活跃的患者 goroutine 数量
func (q *Queues) ActiveWorkers() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.workers)
}

// Close 停止接收新的更新，处理完已入队的更新后返回
func (q *Queues) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queues) release(w *worker) {
	q.mu.Lock()
	w.pending--
	q.mu.Unlock()
}

func (q *Queues) run(patientID string, w *worker) {
	defer q.wg.Done()
	defer q.metrics.WorkerStopped()

	idle := time.NewTimer(q.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case snap := <-w.ch:
			q.process(snap)
			q.release(w)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(q.idleTimeout)

		case <-idle.C:
			q.mu.Lock()
			if w.pending == 0 {
				delete(q.workers, patientID)
				q.mu.Unlock()
				q.logger.Debug("Tracker worker idle, exiting",
					zap.String("patient_id", patientID),
				)
				return
			}
			q.mu.Unlock()
			idle.Reset(q.idleTimeout)

		case <-q.done:
			// 处理已入队的更新
			for {
				select {
				case snap := <-w.ch:
					q.process(snap)
					q.release(w)
				default:
					return
				}
			}
		}
	}
}

func (q *Queues) process(snap models.PatientSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	event, err := q.tracker.Apply(ctx, snap)
	if err != nil {
		q.logger.Error("Failed to apply snapshot",
			zap.String("patient_id", snap.PatientID),
			zap.Int64("version", snap.Version),
			zap.Error(err),
		)
		return
	}
	if event != nil && q.sink != nil {
		q.sink.HandleEpisodeEvent(ctx, *event)
	}
}
