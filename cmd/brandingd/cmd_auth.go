package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nextmovecargo/branding/internal/auth"
	"github.com/nextmovecargo/branding/internal/server"
)

// runHashKey prints a bcrypt hash for auth.api_key_hash. Without -key a
// random key is generated and printed once.
func runHashKey(args []string) {
	fs := flag.NewFlagSet("hash-key", flag.ExitOnError)
	key := fs.String("key", "", "API key to hash (generated when empty)")
	cost := fs.Int("cost", 0, "bcrypt cost (default 10)")
	_ = fs.Parse(args)

	if *key == "" {
		generated, err := auth.GenerateAPIKey()
		if err != nil {
			fatalf("hash-key: %v", err)
		}
		*key = generated
		fmt.Printf("api key:      %s\n", *key)
	}
	hash, err := auth.HashAPIKey(*key, *cost)
	if err != nil {
		fatalf("hash-key: %v", err)
	}
	fmt.Printf("api_key_hash: %s\n", hash)
}

// runToken mints a token signed with auth.jwt_secret, for scripts and
// local testing without Supabase.
func runToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", "", "path to configuration file")
	sub := fs.String("sub", "cli", "token subject")
	role := fs.String("role", string(auth.RoleAdmin), "app_metadata.role claim")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	_ = fs.Parse(args)

	v, err := server.LoadConfig(*configPath)
	if err != nil {
		fatalf("token: %v", err)
	}
	secret := v.GetString("auth.jwt_secret")
	if secret == "" {
		fatalf("token: auth.jwt_secret is not configured")
	}

	tokens := auth.NewTokenService([]byte(secret), v.GetString("auth.issuer"), *ttl)
	token, err := tokens.Issue(*sub, auth.Role(*role), *ttl)
	if err != nil {
		fatalf("token: %v", err)
	}
	fmt.Fprintln(os.Stdout, token)
}
