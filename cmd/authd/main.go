package main

import (
	"context"
	"flag"
	"log"

	"github.com/MrEthical07/sessionauth/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "configs/authd.yaml", "path to the YAML config file")
	flag.Parse()

	ctx := context.Background()
	runtime, err := bootstrap.NewRuntime(ctx, *configPath)
	if err != nil {
		log.Fatalf("bootstrap runtime: %v", err)
	}
	if err := runtime.RunAPI(ctx); err != nil {
		log.Fatalf("run api: %v", err)
	}
}
