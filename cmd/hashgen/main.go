package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/config"
	"github.com/USSTM/asset-backend/internal/database"
	"github.com/USSTM/asset-backend/internal/db"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/joho/godotenv"
	"golang.org/x/term"
)

const minPasswordLength = 8

func main() {
	if len(os.Args) < 3 || len(os.Args) > 4 {
		fmt.Fprintf(os.Stderr, "Usage: %s <email> <name> [role]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Example: %s admin@example.com \"Site Admin\" Admin\n", os.Args[0])
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2], roleArg(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func roleArg(args []string) string {
	if len(args) == 4 {
		return args[3]
	}
	return "Admin"
}

func run(email, name, roleName string) error {
	_ = godotenv.Load()

	password, err := readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	cfg := config.Load()
	conn, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	ctx := context.Background()
	q := conn.Queries()

	// bootstrap roles are global or shared, never department-owned
	role, err := q.GetRoleByName(ctx, db.GetRoleByNameParams{Name: roleName})
	if err != nil {
		return fmt.Errorf("role %s: %w", roleName, err)
	}

	user, err := q.CreateUser(ctx, db.CreateUserParams{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         name,
		PasswordHash: hash,
		RoleID:       role.ID,
		DepartmentID: pgtype.Int8{},
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("User created successfully: %s (%s)\n", user.Email, role.Name)
	return nil
}

// readPassword masks input on a terminal and falls back to one line of stdin
// when piped.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("no password on stdin")
	}
	return strings.TrimSpace(line), nil
}
