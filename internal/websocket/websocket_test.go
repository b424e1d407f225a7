package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// В одно соединение пишут две стороны: рассыльщик обновлений и ответ
// pong из обработчика сообщений. Записи обязаны сериализоваться.
func TestConcurrentBroadcastAndPong(t *testing.T) {
	gin.SetMode(gin.TestMode)
	StartManager()

	r := gin.New()
	r.GET("/ws", Handler())
	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?client_id=test-client"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)

	// Поток обновлений статусов со стороны сервера
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				SendTripStatusUpdate(1, "DISPATCHED", "RESOLVED", "")
				time.Sleep(time.Millisecond)
			}
		}
	}()

	// Поток ping-сообщений со стороны клиента, каждое вызывает pong
	go func() {
		ping, _ := json.Marshal(map[string]string{"type": "ping"})
		for {
			select {
			case <-stop:
				return
			default:
				if err := conn.WriteMessage(websocket.TextMessage, ping); err != nil {
					return
				}
				time.Sleep(time.Millisecond)
			}
		}
	}()

	// Истекший дедлайн чтения делает соединение непригодным, поэтому
	// он общий на весь цикл
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var gotPong, gotUpdate bool
	for !gotPong || !gotUpdate {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "поток сообщений прервался раньше времени")

		var msg map[string]interface{}
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg["type"] {
		case "pong":
			gotPong = true
		case TripStatusUpdateType:
			gotUpdate = true
		}
	}
}
