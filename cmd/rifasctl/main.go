// Command rifasctl holds operator utilities. "rifasctl token" mints bearer
// tokens for local development against the API's signing key.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/rifas-mx/rifas/internal/auth"
	"github.com/rifas-mx/rifas/internal/config"
	"github.com/rifas-mx/rifas/internal/domain"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "rifasctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] != "token" {
		return fmt.Errorf("usage: rifasctl token --user ID --role participant|seller|admin [--ttl 1h]")
	}

	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	user := fs.String("user", "", "user id placed in the token subject")
	role := fs.String("role", string(domain.RoleParticipant), "participant, seller or admin")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	key := fs.String("key", "", "signing key (default $JWT_SIGNING_KEY or the config file)")
	configPath := fs.String("config", "", "path to the YAML config file (default $RIFAS_CONFIG)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	signingKey, issuer := *key, "rifas"
	if signingKey == "" {
		config.LoadDotEnv()
		cfg, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		signingKey, issuer = cfg.Auth.SigningKey, cfg.Auth.Issuer
	}

	token, err := auth.NewIssuer(signingKey, issuer, nil).
		Issue(domain.Caller{UserID: *user, Role: domain.Role(*role)}, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
