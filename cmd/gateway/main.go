package main

import (
	"log"

	"PaymentGateway/config"
	"PaymentGateway/internal/gateway"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Config error: %s", err)
	}

	if err := gateway.Run(cfg); err != nil {
		log.Fatalf("Gateway error: %s", err)
	}
}
