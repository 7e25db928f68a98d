package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"devconnect/backend/internal/chatsession"
	"devconnect/backend/internal/models"
)

var (
	relayURL = flag.String("relay", "http://localhost:8080", "relay base URL")
	room     = flag.String("room", "", "project room id to join")
)

func main() {
	flag.Parse()
	if *room == "" {
		log.Fatal("-room is required")
	}

	token, anonID := fetchToken(*relayURL)

	session := chatsession.New(chatsession.Config{
		Endpoint: wsEndpoint(*relayURL),
		Token:    token,
		Identity: chatsession.StaticIdentity(anonID),
	})
	session.OnMessage(printMessage(session))
	session.OnStateChange(func(st chatsession.State) {
		log.Printf("connection: %s", st)
		if st == chatsession.StateDisconnected && session.LastError() != "" {
			log.Printf("error: %s", session.LastError())
		}
	})

	session.Start()
	defer session.Stop()

	// Queued until the handshake completes, then replayed.
	if err := session.SwitchRoom(*room); err != nil && err != chatsession.ErrNotConnected {
		log.Fatalf("Failed to join room %s: %v", *room, err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	lines := make(chan string)
	go readLines(lines)

	fmt.Printf("Joining %s as %s. Type messages, Ctrl+C to quit.\n", *room, anonID)
	for {
		select {
		case <-interrupt:
			log.Println("Interrupt received, closing session...")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			session.Send(line)
		}
	}
}

func printMessage(session *chatsession.ChatSession) func(models.Message) {
	return func(msg models.Message) {
		if msg.IsSystem() {
			fmt.Printf("-- %s\n", msg.Body)
			return
		}
		who := msg.SenderID
		if who == session.LocalID() {
			who = "you"
		}
		fmt.Printf("[%s] %s: %s\n", msg.SentAt.Local().Format("15:04:05"), who, msg.Body)
	}
}

func readLines(lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
}

func fetchToken(base string) (token, anonID string) {
	resp, err := http.Get(strings.TrimRight(base, "/") + "/token")
	if err != nil {
		log.Fatalf("Failed to fetch token: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Token endpoint returned %s", resp.Status)
	}

	var body struct {
		Token  string `json:"token"`
		AnonID string `json:"anon_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Fatalf("Failed to decode token response: %v", err)
	}
	return body.Token, body.AnonID
}

func wsEndpoint(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		log.Fatalf("Invalid relay URL %q: %v", base, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String()
}
