// webhook-sim sends a fake gateway webhook to a locally running chat
// service, so the pipeline can be exercised without a real WhatsApp channel.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
)

func main() {
	var (
		baseURL  = flag.String("base-url", getenv("BASE_URL", "http://localhost:8081"), "chat service base url")
		instance = flag.String("instance", getenv("INSTANCE", "petshop-dev"), "gateway instance name")
		sender   = flag.String("sender", getenv("SENDER", "5511999990000@s.whatsapp.net"), "sender jid")
		text     = flag.String("text", "CONFIRMO", "message text")
		state    = flag.String("state", "", "send a connection update with this state (open|connecting|close) instead of a message")
	)
	flag.Parse()

	var payload map[string]any
	if *state != "" {
		payload = map[string]any{
			"event":    "connection.update",
			"instance": *instance,
			"data":     map[string]any{"state": *state},
		}
	} else {
		payload = map[string]any{
			"event":    "messages.upsert",
			"instance": *instance,
			"data": map[string]any{
				"key":     map[string]any{"remoteJid": *sender, "fromMe": false},
				"message": map[string]any{"conversation": *text},
			},
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		fatal(err.Error())
	}

	resp, err := http.Post(strings.TrimRight(*baseURL, "/")+"/webhook", "application/json", bytes.NewReader(raw))
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	fmt.Printf("status=%d\n", resp.StatusCode)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
