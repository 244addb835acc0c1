package main

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc"
	"github.com/spf13/cobra"

	"taskboard/domain"
	"taskboard/internal/devserver"
)

func devserverCmd(a *app) *cobra.Command {
	var seeds []string
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run an in-memory task service for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, err := a.devAuth()
			if err != nil {
				return err
			}
			srv := devserver.New(auth, a.logger)
			for _, seed := range seeds {
				reg, err := parseSeed(seed)
				if err != nil {
					return err
				}
				u, err := srv.AddUser(reg)
				if err != nil {
					return fmt.Errorf("seed %s: %w", reg.Email, err)
				}
				a.logger.WithField("user", u.ID).WithField("email", u.Email).Info("seeded user")
			}
			return runEcho(cmd.Context(), srv.Echo(), a.cfg.DevServer.Listen, a.logger)
		},
	}
	f := cmd.Flags()
	f.String("listen", "", "listen address")
	f.String("secret", "", "HS256 signing secret (random when empty)")
	f.String("jwks-url", "", "verify RS256 tokens against this JWKS instead of issuing them")
	f.String("issuer", "", "expected token issuer")
	f.StringArrayVar(&seeds, "user", nil, "seed an account as name,email,password (repeatable)")
	return cmd
}

func (a *app) devAuth() (*devserver.Auth, error) {
	dc := a.cfg.DevServer
	if dc.JWKSURL != "" {
		jwks, err := keyfunc.Get(dc.JWKSURL, keyfunc.Options{})
		if err != nil {
			return nil, fmt.Errorf("jwks: %w", err)
		}
		return devserver.NewJWKSAuth(jwks, dc.Issuer, 0), nil
	}
	secret := []byte(dc.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		a.logger.Warn("no devserver secret configured; tokens will not survive a restart")
	}
	auth := devserver.NewSharedSecretAuth(secret, dc.TokenTTL)
	auth.Issuer = dc.Issuer
	return auth, nil
}

func parseSeed(s string) (domain.Registration, error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) != 3 {
		return domain.Registration{}, fmt.Errorf("invalid --user %q: want name,email,password", s)
	}
	return domain.Registration{
		Name:     strings.TrimSpace(parts[0]),
		Email:    strings.TrimSpace(parts[1]),
		Password: parts[2],
	}, nil
}
