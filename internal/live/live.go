package live

import (
	"context"
	"errors"
	"sync"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/evaluator"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/metrics"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/telemetry"
	"github.com/RecoveryCode-company/PulsoftMovil/internal/tracker"

	"go.uber.org/zap"
)

// View 实时视图：快照 + 报警周期状态 + 弹窗提示
type View struct {
	Snapshot        models.PatientSnapshot     `json:"snapshot"`
	Episode         models.AlertEpisode        `json:"episode"`
	Classification  models.AlertClassification `json:"classification"`
	DisplayWarnings []string                   `json:"display_warnings"`
	Error           string                     `json:"error,omitempty"` // 读取失败时由客户端展示可重试状态
}

// Subscriber 实时订阅
type Subscriber struct {
	store     *telemetry.Store
	episodes  tracker.StateStore
	evaluator *evaluator.Evaluator
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewSubscriber 创建实时订阅
func NewSubscriber(
	store *telemetry.Store,
	episodes tracker.StateStore,
	eval *evaluator.Evaluator,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Subscriber {
	return &Subscriber{
		store:     store,
		episodes:  episodes,
		evaluator: eval,
		metrics:   m,
		logger:    logger,
	}
}

// Subscription 一个订阅；C() 先给出当前视图，之后每次写入给出一次
type Subscription struct {
	ch        chan View
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once
}

// C 视图通道，订阅结束后关闭
func (s *Subscription) C() <-chan View {
	return s.ch
}

// Close 取消订阅；返回后不会再有视图发出，底层 Pub/Sub 已释放
func (s *Subscription) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.exited
}

// Subscribe 订阅患者的实时视图（节点不存在时给出默认视图）
func (s *Subscriber) Subscribe(ctx context.Context, patientID string) (*Subscription, error) {
	pubsub, err := s.store.Subscribe(ctx, patientID)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		ch:     make(chan View),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	s.metrics.SubscriberOpened()

	go func() {
		defer close(sub.exited)
		defer close(sub.ch)
		defer s.metrics.SubscriberClosed()
		defer pubsub.Close()

		emit := func() bool {
			view := s.View(ctx, patientID)
			select {
			case sub.ch <- view:
				return true
			case <-sub.done:
				return false
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}

		messages := pubsub.Channel()
		for {
			select {
			case _, ok := <-messages:
				if !ok || !emit() {
					return
				}
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub, nil
}

// View 读取当前视图
func (s *Subscriber) View(ctx context.Context, patientID string) View {
	view := View{
		Snapshot:        models.DefaultSnapshot(patientID),
		Classification:  models.ClassificationNone,
		DisplayWarnings: []string{},
	}

	snap, err := s.store.Get(ctx, patientID)
	switch {
	case err == nil:
		view.Snapshot = *snap
	case errors.Is(err, telemetry.ErrNotFound):
	default:
		s.logger.Error("Failed to read snapshot for live view",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		view.Error = "failed to load snapshot"
		return view
	}

	ep, err := s.episodes.Load(ctx, patientID)
	if err != nil {
		s.logger.Error("Failed to read episode for live view",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		view.Error = "failed to load episode state"
		return view
	}
	view.Episode = *ep
	view.Classification = s.evaluator.Evaluate(view.Snapshot)
	view.DisplayWarnings = s.evaluator.DisplayWarnings(view.Snapshot)
	return view
}
