package main

import (
	"log"
	"os"

	"github.com/lwhela12/the-hive-sub001/config"
	"github.com/lwhela12/the-hive-sub001/internal/server"
)

func main() {
	addr := os.Getenv("HIVE_HTTP_ADDR")

	cfg := config.LoadConfig("")
	if err := server.Run(cfg, addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
