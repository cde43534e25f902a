package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/live"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
)

// LiveSource 实时视图订阅（由 live.Subscriber 实现）
type LiveSource interface {
	Subscribe(ctx context.Context, patientID string) (*live.Subscription, error)
}

// LiveHandler 实时视图 WebSocket Handler
type LiveHandler struct {
	source   LiveSource
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewLiveHandler(source LiveSource, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 移动端不带 Origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Live 升级为 WebSocket，每次快照变更推送一条 View JSON；客户端断开即取消订阅
func (h *LiveHandler) Live(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已写入错误响应
		h.logger.Warn("WebSocket upgrade failed", zap.String("patient_id", id), zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := h.source.Subscribe(ctx, id)
	if err != nil {
		h.logger.Error("Live subscribe failed", zap.String("patient_id", id), zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(liveWriteWait))
		return
	}
	defer sub.Close()

	// 读循环只处理控制帧，读失败即客户端断开
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case view, ok := <-sub.C():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteJSON(view); err != nil {
				h.logger.Debug("Live write failed", zap.String("patient_id", id), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
