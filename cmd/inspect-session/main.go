package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/stemsi/quizspin-backend/internal/config"
	"github.com/stemsi/quizspin-backend/internal/middleware"
	"github.com/stemsi/quizspin-backend/internal/service"
	"golang.org/x/term"
)

// inspect-session decodes a quizspin_session cookie value and prints the
// session it carries. Useful when a player reports a stuck wheel.
func main() {
	cfg := config.Load()

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Inspect Session Cookie ===")

	// ─── Secret ────────────────────────────────────────────────────────
	secret := cfg.SessionSecret
	if secret == config.DefaultSessionSecret {
		fmt.Print("Enter SESSION_SECRET (blank for default): ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Printf("Error reading secret: %v\n", err)
			os.Exit(1)
		}
		if s := strings.TrimSpace(string(raw)); s != "" {
			secret = s
		}
	}

	codec, err := service.NewSessionCodec(secret, cfg.SessionMaxAge)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// ─── Cookie Value ──────────────────────────────────────────────────
	fmt.Print("Paste cookie value: ")
	token, _ := reader.ReadString('\n')
	token = strings.TrimSpace(token)
	token = strings.TrimPrefix(token, middleware.SessionCookieName+"=")
	if token == "" {
		fmt.Println("Error: cookie value is required")
		os.Exit(1)
	}

	state, status := codec.Decode(token, time.Now())
	fmt.Printf("Status: %s\n", status)
	if status != service.DecodeValid {
		os.Exit(2)
	}

	out, _ := json.MarshalIndent(state, "", "  ")
	fmt.Println(string(out))
}
