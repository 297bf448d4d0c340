package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/omochice/linetalk/internal/config"
	"github.com/omochice/linetalk/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	port := flag.Int("port", 0, "TCP chat port (overrides config)")
	dualStack := flag.Bool("dual-stack", false, "Accept IPv6 as well as IPv4 (overrides config)")
	wsAddress := flag.String("ws", "", "WebSocket listen address, empty to disable (overrides config)")
	historyPath := flag.String("history", "", "SQLite path for the message log (overrides config)")
	maxConns := flag.Int("max-conns", 0, "Maximum simultaneous TCP connections, 0 for unlimited (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	// Flags that were set explicitly win over file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "dual-stack":
			cfg.DualStack = *dualStack
		case "ws":
			cfg.WSAddress = *wsAddress
		case "history":
			cfg.History = *historyPath
		case "max-conns":
			cfg.MaxConns = *maxConns
		}
	})

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Printf("Received signal %v, shutting down...", sig)
	srv.Stop()

	log.Println("Server stopped")
}
