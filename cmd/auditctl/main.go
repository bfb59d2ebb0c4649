package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"

	"github.com/quizguard/quizguard/internal/config"
)

// auditctl is the operator CLI for the audit surface: summary, clear, and a
// live tail of the security event stream.
func main() {
	var baseURL string
	flag.StringVar(&baseURL, "base-url", "http://localhost:8080", "Server base URL")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return
	}

	apiKey := readAPIKey()
	if apiKey == "" {
		fmt.Println("Error: API key is required")
		os.Exit(1)
	}

	switch args[0] {
	case "summary":
		doRequest(baseURL, apiKey, http.MethodGet)
	case "clear":
		doRequest(baseURL, apiKey, http.MethodDelete)
	case "stream":
		streamEvents(baseURL, apiKey)
	default:
		printUsage()
	}
}

// readAPIKey takes the key from the environment when set, otherwise prompts
// without echo.
func readAPIKey() string {
	cfg := config.Load()
	if cfg.APIKey != "" {
		return cfg.APIKey
	}

	fmt.Print("Enter API Key: ")
	byteKey, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Newline after hidden input
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(byteKey))
}

func doRequest(baseURL, apiKey, method string) {
	req, err := http.NewRequest(method, baseURL+"/api/audit", nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("X-API-Key", apiKey)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Server returned %d: %s\n", resp.StatusCode, strings.TrimSpace(string(body)))
		os.Exit(1)
	}

	var pretty json.RawMessage = body
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(string(out))
}

// streamEvents tails the live security event stream until interrupted.
func streamEvents(baseURL, apiKey string) {
	u, err := url.Parse(baseURL)
	if err != nil {
		fmt.Printf("Error: invalid base URL: %v\n", err)
		os.Exit(1)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/security/stream"

	header := http.Header{}
	header.Set("X-API-Key", apiKey)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		fmt.Printf("Error: connect failed: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("Connected to %s, streaming security events...\n", u.String())

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			fmt.Printf("Stream closed: %v\n", err)
			return
		}
		fmt.Println(string(message))
	}
}

func printUsage() {
	fmt.Println("Usage: auditctl [flags] <command>")
	fmt.Println("Commands: summary, clear, stream")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
