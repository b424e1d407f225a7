package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"
)

// Симулятор трекеров: шлет синтетические пинги местоположений в API.
// Удобен для проверки телеметрии и WebSocket-рассылки без железа.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "адрес сервера")
	token := flag.String("token", "", "bearer-токен с ролью device")
	vehicles := flag.Int("vehicles", 3, "количество ТС")
	interval := flag.Duration("interval", 2*time.Second, "интервал между пингами")
	flag.Parse()

	if *token == "" {
		log.Fatal("Не задан токен (-token)")
	}

	client := &http.Client{Timeout: 5 * time.Second}

	// Стартовая точка, вокруг которой блуждают ТС
	baseLat, baseLon := 51.1282, 71.4304

	for {
		for v := 1; v <= *vehicles; v++ {
			ping := map[string]interface{}{
				"vehicle_id": v,
				"latitude":   baseLat + (rand.Float64()-0.5)*0.05,
				"longitude":  baseLon + (rand.Float64()-0.5)*0.05,
				"speed_kmh":  30 + rand.Float64()*40,
			}

			body, _ := json.Marshal(ping)
			req, err := http.NewRequest(http.MethodPost, *baseURL+"/api/locations", bytes.NewReader(body))
			if err != nil {
				log.Printf("Ошибка создания запроса: %v", err)
				continue
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+*token)

			resp, err := client.Do(req)
			if err != nil {
				log.Printf("Ошибка отправки пинга ТС %d: %v", v, err)
				continue
			}
			resp.Body.Close()
			fmt.Printf("ТС %d: пинг отправлен, статус %d\n", v, resp.StatusCode)
		}
		time.Sleep(*interval)
	}
}
