package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/omochice/linetalk/internal/client"
	"github.com/omochice/linetalk/pkg/envelope"
	"github.com/omochice/linetalk/pkg/talk"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1", "Server address")
	port := flag.Int("port", 9000, "Server TCP port")
	username := flag.String("username", "", "Username for chat")
	flag.Parse()

	if *username == "" {
		log.Fatal("Username is required. Use -username flag")
	}

	conn, err := talk.Connect(*serverAddr, *port)
	if err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}

	console := client.New(*username, os.Stdout)

	lost := make(chan struct{})
	conn.OnMessage(func(_ *talk.Conn, line string) {
		console.PrintLine(line)
	})
	conn.OnClose(func(_ *talk.Conn) {
		close(lost)
	})

	log.Printf("Connected to %s:%d as %s", *serverAddr, *port, *username)

	joinLine, err := envelope.Join(*username).Encode()
	if err != nil {
		log.Fatalf("Failed to encode join message: %v", err)
	}
	if err := conn.Send(joinLine); err != nil {
		log.Fatalf("Failed to join chat: %v", err)
	}

	fmt.Println("Type your messages (or 'quit' to exit):")
	promptDone := make(chan error, 1)
	go func() {
		promptDone <- console.Prompt(os.Stdin, conn.Send)
	}()

	select {
	case err := <-promptDone:
		if err != nil {
			log.Printf("Input error: %v", err)
		}
		if leaveLine, err := envelope.Leave(*username).Encode(); err == nil {
			if err := conn.Send(leaveLine); err != nil {
				log.Printf("Failed to send leave message: %v", err)
			}
		}
		if err := conn.Disconnect(); err == nil {
			<-lost
		}
	case <-lost:
		log.Println("Connection closed by server")
	}

	log.Println("Disconnected from server")
}
