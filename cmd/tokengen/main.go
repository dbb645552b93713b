// Package main provides a CLI tool for minting session tokens against a
// local users API. Tokens are signed with the key given on the command line
// or JWT_SIGNING_KEY, so they only work where that key is configured.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "usersapi/internal/jwt_token"
	"usersapi/pkg/domain"
	"usersapi/pkg/platform/middleware/auth"
)

const (
	defaultIssuer   = "users-api"
	defaultTokenTTL = 15 * time.Minute
)

type tokenOutput struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	ExpiresAt    time.Time         `json:"expires_at"`
	Claims       map[string]string `json:"claims"`
	Usage        map[string]string `json:"usage"`
}

func main() {
	fs := flag.NewFlagSet("tokengen", flag.ExitOnError)
	userID := fs.String("user-id", "", "User ID (UUID). Generated if empty.")
	email := fs.String("email", "dev@example.com", "Email embedded in the token")
	key := fs.String("key", os.Getenv("JWT_SIGNING_KEY"), "HS256 signing key (defaults to JWT_SIGNING_KEY)")
	issuer := fs.String("issuer", defaultIssuer, "Token issuer")
	ttl := fs.Duration("ttl", defaultTokenTTL, "Access token time-to-live")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	_ = fs.Parse(os.Args[1:])

	if *key == "" {
		fmt.Fprintln(os.Stderr, "a signing key is required: pass -key or set JWT_SIGNING_KEY")
		os.Exit(1)
	}

	uid := domain.NewUserID()
	if *userID != "" {
		parsed, err := domain.ParseUserID(*userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid user-id: %v\n", err)
			os.Exit(1)
		}
		uid = parsed
	}

	svc, err := jwttoken.NewJWTService(jwttoken.Config{
		AccessKey:  *key,
		Issuer:     *issuer,
		AccessTTL:  *ttl,
		RefreshTTL: 2 * *ttl,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring signer: %v\n", err)
		os.Exit(1)
	}

	pair, err := svc.Issue(context.Background(), domain.Identity{ID: uid, Email: *email})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	cookieHeader := fmt.Sprintf("Cookie: %s=%s", auth.SessionCookieName, pair.AccessToken)
	if *jsonOut {
		printJSON(tokenOutput{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresAt:    pair.AccessExpiresAt,
			Claims: map[string]string{
				"sub":   uid.String(),
				"email": *email,
				"iss":   *issuer,
			},
			Usage: map[string]string{"header": cookieHeader},
		})
		return
	}

	fmt.Println("Access Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("User ID:    %s\n", uid)
	fmt.Printf("Email:      %s\n", *email)
	fmt.Printf("Expires At: %s\n", pair.AccessExpiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println(pair.AccessToken)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  curl -H %q http://localhost:8080/api/users\n", cookieHeader)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
