package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"devconnect/backend/internal/api/handler"
	"devconnect/backend/internal/config"
	"devconnect/backend/internal/relay"
	"devconnect/backend/internal/storage"
)

func main() {
	log.Println("Starting DevConnect chat relay...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file loaded")
	}
	cfg := config.Load()

	var store storage.Storage
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Fatalf("Failed to connect Redis at %s: %v", cfg.RedisAddr, err)
		}
		store = storage.NewStorageService(rdb)
		log.Printf("Redis connected at %s, cross-node fan-out enabled", cfg.RedisAddr)
	} else {
		log.Println("REDIS_ADDR not set, running single-node")
	}

	hub := relay.NewHub(store)
	go hub.Run()

	r := gin.Default()
	h := handler.NewHandler(hub, cfg.JWTSecret)
	h.Routes(r)

	log.Printf("Relay listening on %s", cfg.HTTPAddr)
	log.Fatal(r.Run(cfg.HTTPAddr))
}
