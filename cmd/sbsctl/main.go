// Command sbsctl is an operator tool for the banking portal gateway: it
// decodes and issues tokens, checks passwords and resolves portal routes.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"banking-portal/internal/auth"
	"banking-portal/internal/config"
	"banking-portal/internal/guard"
	"banking-portal/internal/password"
	"banking-portal/internal/rbac"
)

const usage = `usage: sbsctl <command> [flags]

commands:
  decode <token>                 print the claims of a bearer token
  token -secret S -user ID ...   issue a signed token
  password check <password>      evaluate a password
  password generate              print a generated password
  route [-file routes.yaml] <path>
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, time.Now()); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "sbsctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, now time.Time) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "decode":
		return decodeCmd(args[1:], out, now)
	case "token":
		return tokenCmd(args[1:], out, now)
	case "password":
		return passwordCmd(args[1:], out)
	case "route":
		return routeCmd(args[1:], out)
	default:
		return errUsage
	}
}

func decodeCmd(args []string, out io.Writer, now time.Time) error {
	if len(args) != 1 {
		return errUsage
	}
	claims, ok := auth.Decode(args[0])
	if !ok {
		return errors.New("token is not decodable")
	}
	role := rbac.Role(claims.Role)
	return writeJSON(out, map[string]any{
		"claims":      claims,
		"roleName":    role.Name(),
		"landingPage": rbac.LandingPage(role),
		"expired":     claims.Expired(now),
	})
}

func tokenCmd(args []string, out io.Writer, now time.Time) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	secret := fs.String("secret", os.Getenv("JWT_SECRET"), "HMAC signing secret")
	issuer := fs.String("issuer", os.Getenv("JWT_ISSUER"), "token issuer")
	ttl := fs.Duration("ttl", 30*time.Minute, "token lifetime")
	userID := fs.Int64("user", 0, "user id")
	username := fs.String("name", "", "username")
	email := fs.String("email", "", "email address")
	roleName := fs.String("role", rbac.NameUser, "role: user, admin or internal")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	role, ok := rbac.ParseName(*roleName)
	if !ok {
		return fmt.Errorf("unknown role %q", *roleName)
	}
	m, err := auth.NewManager(config.AuthConfig{JWTSecret: *secret, JWTIssuer: *issuer, TokenTTL: *ttl})
	if err != nil {
		return err
	}
	tok, err := m.Issue(now, auth.Identity{UserID: *userID, Username: *username, Email: *email, Role: int(role)})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, tok)
	return err
}

func passwordCmd(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "check":
		if len(args) != 2 {
			return errUsage
		}
		res := password.Evaluate(args[1])
		return writeJSON(out, map[string]any{
			"isValid":  res.IsValid,
			"errors":   res.Errors,
			"strength": res.Strength,
			"score":    res.Score,
			"message":  res.Strength.Message(),
		})
	case "generate":
		_, err := fmt.Fprintln(out, password.Generate())
		return err
	default:
		return errUsage
	}
}

func routeCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("route", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	file := fs.String("file", "", "route table YAML (embedded table when empty)")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}
	rt, err := guard.LoadRoutes(*file)
	if err != nil {
		return err
	}
	return writeJSON(out, rt.Resolve(fs.Arg(0)))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
