package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"fleet-backend/internal/utils"

	"github.com/joho/godotenv"
)

// Выпускает долгоживущий сервисный токен: admin для панели управления
// либо device для трекеров, отправляющих пинги местоположений
func main() {
	role := flag.String("role", "admin", "роль токена: admin или device")
	flag.Parse()

	if *role != "admin" && *role != "device" {
		log.Fatalf("Неизвестная роль: %s", *role)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используем переменные окружения")
	}

	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("Не задан JWT_SECRET")
	}

	tokenString, err := utils.GenerateServiceJWT(*role)
	if err != nil {
		log.Fatalf("Ошибка генерации токена: %v", err)
	}

	fmt.Printf("Сгенерирован токен с ролью %s: %s\n", *role, tokenString)
}
