// Command token mints a bearer token for local development, signed with
// JWT_SECRET from the environment or .env.
//
//	go run ./cmd/token -role center_owner
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/reefline/divetrips/internal/config"
	"github.com/reefline/divetrips/internal/domain"
	"github.com/reefline/divetrips/internal/middleware"
)

func main() {
	role := flag.String("role", string(domain.RoleDiver), "diver, center_owner or admin")
	id := flag.String("id", "", "actor UUID (random when empty)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := run(*role, *id, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
}

func run(role, id string, ttl time.Duration) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	actor := domain.Actor{ID: uuid.New(), Role: domain.Role(role)}
	switch actor.Role {
	case domain.RoleDiver, domain.RoleCenterOwner, domain.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	if id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return fmt.Errorf("invalid -id: %w", err)
		}
		actor.ID = parsed
	}

	token, err := middleware.IssueToken([]byte(secret), actor, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "actor %s (%s)\n", actor.ID, actor.Role)
	fmt.Println(token)
	return nil
}
