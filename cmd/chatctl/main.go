package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"okeanchat/internal/domain"
	"okeanchat/internal/jwtsigner"
	"okeanchat/internal/store"
	"okeanchat/pkg/db"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "token":
		err = runToken(args)
	case "migrate":
		err = runMigrate(args)
	case "seed-user":
		err = runSeedUser(args)
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  token      Mint an HS256 session token for local development")
	fmt.Fprintln(os.Stderr, "  migrate    Create or update the chat tables")
	fmt.Fprintln(os.Stderr, "  seed-user  Insert a user profile row")
	os.Exit(2)
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	secret := fs.String("secret", os.Getenv("CHAT_JWT_SECRET"), "HS256 shared secret")
	issuer := fs.String("issuer", os.Getenv("CHAT_ISSUER"), "iss claim")
	sub := fs.String("sub", "", "user id (required)")
	name := fs.String("name", "", "display name claim")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*sub) == "" {
		return fmt.Errorf("-sub is required")
	}

	signer, err := jwtsigner.New(*secret, *issuer)
	if err != nil {
		return err
	}
	claims := map[string]any{}
	if *name != "" {
		claims["name"] = *name
	}
	tok, err := signer.Sign(*sub, *ttl, claims)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func openStore(fs *flag.FlagSet, args []string) (*store.Store, error) {
	driver := fs.String("driver", envOr("CHAT_DATABASE_DRIVER", db.DriverPostgres), "postgres or sqlite")
	dsn := fs.String("dsn", os.Getenv("CHAT_DATABASE_URL"), "database url")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *dsn == "" {
		return nil, fmt.Errorf("-dsn or CHAT_DATABASE_URL is required")
	}
	gdb, err := db.OpenGorm(db.Config{Driver: *driver, DSN: *dsn})
	if err != nil {
		return nil, err
	}
	return store.New(gdb), nil
}

func runMigrate(args []string) error {
	st, err := openStore(flag.NewFlagSet("migrate", flag.ExitOnError), args)
	if err != nil {
		return err
	}
	if err := st.AutoMigrate(context.Background()); err != nil {
		return err
	}
	fmt.Println("migrated")
	return nil
}

func runSeedUser(args []string) error {
	fs := flag.NewFlagSet("seed-user", flag.ExitOnError)
	id := fs.String("id", "", "user id (required)")
	name := fs.String("name", "", "display name")
	avatar := fs.String("avatar", "", "avatar url")
	st, err := openStore(fs, args)
	if err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}
	if *name == "" {
		*name = *id
	}
	return st.Users().Ensure(context.Background(), &domain.User{ID: *id, UserName: *name, Avatar: *avatar})
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
