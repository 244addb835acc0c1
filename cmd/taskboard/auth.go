package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskboard/domain"
	"taskboard/session"
)

func registerCmd(a *app) *cobra.Command {
	var reg domain.Registration
	cmd := &cobra.Command{
		Use:         "register",
		Short:       "Create an account",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{anonymousAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.client(false).Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Registered %s <%s> (id %d)\n", u.Name, u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "display name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email address")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password")
	for _, f := range []string{"name", "email", "password"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func loginCmd(a *app) *cobra.Command {
	var creds domain.Credentials
	cmd := &cobra.Command{
		Use:         "login",
		Short:       "Log in and store the session",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{anonymousAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := a.client(false).Login(cmd.Context(), creds)
			if err != nil {
				return err
			}
			sess := session.FromLogin(l)
			if err := a.store.Save(cmd.Context(), sess); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			a.logger.WithField("user", l.User.ID).Debug("session saved")
			fmt.Fprintf(a.out, "Logged in as %s\n", l.User.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "email address")
	cmd.Flags().StringVar(&creds.Password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}
