package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"fleet-backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Константы для типов сообщений WebSocket
const (
	TripStatusUpdateType      = "TRIP_STATUS_UPDATE"
	VehicleLocationUpdateType = "VEHICLE_LOCATION_UPDATE"
)

// Message представляет формат сообщения WebSocket
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Manager управляет всеми подключениями WebSocket. Подписчикам
// (диспетчерским панелям) рассылаются все обновления статусов рейсов
// и местоположений ТС.
type Manager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	mutex      sync.RWMutex
}

// Client представляет клиентское соединение WebSocket
type Client struct {
	conn     *websocket.Conn
	clientID string
	writeMu  sync.Mutex
}

// write сериализует записи в соединение: в него пишут и рассыльщик,
// и обработчик ping-сообщений, а gorilla/websocket допускает только
// одного пишущего
func (c *Client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// Глобальный менеджер WebSocket
var wsManager = NewManager()

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 64),
	}
}

// Start запускает обработку сообщений WebSocket
func (m *Manager) Start() {
	log.Printf("Запуск WebSocket Manager")
	go func() {
		for {
			select {
			case client := <-m.register:
				m.mutex.Lock()
				m.clients[client.clientID] = client
				m.mutex.Unlock()
				log.Printf("Зарегистрирован клиент %s", client.clientID)

			case client := <-m.unregister:
				m.mutex.Lock()
				if existing, ok := m.clients[client.clientID]; ok && existing == client {
					delete(m.clients, client.clientID)
					client.conn.Close()
					log.Printf("Клиент %s отключен", client.clientID)
				}
				m.mutex.Unlock()

			case message := <-m.broadcast:
				m.sendToAll(message)
			}
		}
	}()
}

// Broadcast рассылает сообщение всем подключенным клиентам без блокировки
func (m *Manager) Broadcast(message *Message) {
	select {
	case m.broadcast <- message:
	default:
		log.Printf("Канал рассылки переполнен, сообщение %s пропущено", message.Type)
	}
}

func (m *Manager) sendToAll(message *Message) {
	jsonMessage, err := json.Marshal(message)
	if err != nil {
		log.Printf("Ошибка при кодировании сообщения: %v", err)
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for _, client := range m.clients {
		if err := client.write(websocket.TextMessage, jsonMessage); err != nil {
			log.Printf("Ошибка при отправке сообщения клиенту %s: %v", client.clientID, err)
			go func(c *Client) { m.unregister <- c }(client)
		}
	}
}

// Handler обрабатывает подключения WebSocket
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Upgrade") != "websocket" {
			c.String(http.StatusBadRequest, "Требуется WebSocket соединение")
			return
		}

		clientID := c.Query("client_id")
		if clientID == "" {
			clientID = uuid.New().String()
		}

		upgrader := websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Разрешаем подключения с любых источников
			},
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("Ошибка обновления соединения до WebSocket: %v", err)
			return
		}

		client := &Client{conn: conn, clientID: clientID}
		wsManager.register <- client

		go handleMessages(client)
	}
}

// handleMessages обрабатывает сообщения от клиента
func handleMessages(client *Client) {
	defer func() {
		wsManager.unregister <- client
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			log.Printf("Ошибка при чтении сообщения от клиента %s: %v", client.clientID, err)
			break
		}

		var data map[string]interface{}
		if err := json.Unmarshal(message, &data); err != nil {
			continue
		}

		// Обрабатываем ping-сообщения
		if msgType, ok := data["type"].(string); ok && msgType == "ping" {
			pongMsg := map[string]interface{}{
				"type": "pong",
				"time": time.Now().Unix(),
			}
			pongJSON, _ := json.Marshal(pongMsg)
			if err := client.write(websocket.TextMessage, pongJSON); err != nil {
				log.Printf("Ошибка при отправке pong: %v", err)
			}
		}
	}
}

// SendTripStatusUpdate рассылает обновление статуса рейса
func SendTripStatusUpdate(tripID uint, status string, phase string, errText string) {
	payload := map[string]interface{}{
		"trip_id": tripID,
		"status":  status,
		"phase":   phase,
	}
	if errText != "" {
		payload["error"] = errText
	}
	wsManager.Broadcast(&Message{
		Type:    TripStatusUpdateType,
		Payload: payload,
	})
}

// SendVehicleLocationUpdate рассылает свежее местоположение ТС
func SendVehicleLocationUpdate(loc models.VehicleLatestLocation) {
	wsManager.Broadcast(&Message{
		Type:    VehicleLocationUpdateType,
		Payload: loc,
	})
}

// StartManager запускает глобальный менеджер WebSocket
func StartManager() {
	wsManager.Start()
}
