package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/omochice/linetalk/internal/client"
	"github.com/omochice/linetalk/internal/client/ws"
)

func main() {
	serverAddr := flag.String("server", "ws://127.0.0.1:9001", "WebSocket server address (e.g., ws://127.0.0.1:9001)")
	username := flag.String("username", "", "Username for chat")
	flag.Parse()

	if *username == "" {
		log.Fatal("Username is required. Use -username flag")
	}

	c := ws.New(*serverAddr, *username)

	if err := c.Connect(context.Background()); err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	defer c.Disconnect()

	log.Printf("Connected to %s as %s", *serverAddr, *username)

	if err := c.Join(); err != nil {
		log.Fatalf("Failed to join chat: %v", err)
	}

	console := client.New(*username, os.Stdout)
	go func() {
		for env := range c.Messages() {
			console.Print(env)
		}
	}()

	fmt.Println("Type your messages (or 'quit' to exit):")
	if err := console.Prompt(os.Stdin, c.SendLine); err != nil {
		log.Printf("Input error: %v", err)
	}

	if err := c.Leave(); err != nil {
		log.Printf("Failed to send leave message: %v", err)
	}

	log.Println("Disconnected from server")
}
