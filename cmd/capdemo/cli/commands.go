// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package cli implements the capdemo commands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/capdemo/auth"
	"github.com/hashicorp/capdemo/session"
	"github.com/hashicorp/capdemo/view"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

// New returns the capdemo root command.
func New() *cobra.Command {
	ro := newRootOptions()
	var logger hclog.Logger
	cmd := &cobra.Command{
		Use:               "capdemo",
		Short:             "Sign in to an OIDC provider and inspect the session's tokens.",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := ro.load(); err != nil {
				return err
			}
			logger = ro.logger(cmd)
			return nil
		},
	}
	ro.AddFlags(cmd)
	log := func() hclog.Logger { return logger }

	cmd.AddCommand(
		serveCmd(ro, log),
		signInCmd(ro, log),
		controllerCmd(ro, log, "signout", "Revoke the access token, sign out at the provider and clear the session.",
			func(ctx context.Context, c *auth.Controller) error { return c.SignOut(ctx) }),
		controllerCmd(ro, log, "signout-local", "Revoke the access token and close the provider session without a redirect.",
			func(ctx context.Context, c *auth.Controller) error { return c.SignOutWithoutRedirect(ctx) }),
		controllerCmd(ro, log, "revoke", "Revoke the access token and clear the session.",
			func(ctx context.Context, c *auth.Controller) error { return c.Revoke(ctx) }),
		clearCmd(ro, log),
		showCmd(ro, log),
	)
	return cmd
}

func signInCmd(ro *RootOptions, log func() hclog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:     "signin",
		Short:   "Sign in with the provider's consent page.",
		Example: "  capdemo signin --issuer https://idp.example.com --client-id capdemo",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ro.newApp(log())
			if err != nil {
				return err
			}
			defer a.Close()
			fmt.Fprintln(cmd.ErrOrStderr(), "Complete the sign in with your OIDC provider.")
			if _, err := a.controller.SignIn(cmd.Context(), ro.v.GetStringSlice(flagScopes)...); err != nil {
				return err
			}
			return printSession(cmd.OutOrStdout(), a.store, nil)
		},
	}
}

func controllerCmd(ro *RootOptions, log func() hclog.Logger, use, short string, fn func(context.Context, *auth.Controller) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ro.newApp(log())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := fn(cmd.Context(), a.controller); err != nil {
				return err
			}
			return printSession(cmd.OutOrStdout(), a.store, nil)
		},
	}
}

func clearCmd(ro *RootOptions, log func() hclog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the local session without contacting the provider.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ro.newStore(log())
			if err != nil {
				return err
			}
			s.Clear()
			return printSession(cmd.OutOrStdout(), s, nil)
		},
	}
}

func showCmd(ro *RootOptions, log func() hclog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the session's identity and access tokens.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ro.v.GetBool(flagUserInfo) {
				s, err := ro.newStore(log())
				if err != nil {
					return err
				}
				return printSession(cmd.OutOrStdout(), s, nil)
			}
			a, err := ro.newApp(log())
			if err != nil {
				return err
			}
			defer a.Close()
			var info map[string]interface{}
			if err := a.controller.UserInfo(cmd.Context(), &info); err != nil {
				return err
			}
			return printSession(cmd.OutOrStdout(), a.store, info)
		},
	}
	cmd.Flags().Bool(flagUserInfo, false, "include the provider's UserInfo claims")
	ro.bind(cmd.Flags())
	return cmd
}

func serveCmd(ro *RootOptions, log func() hclog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session page with its sign in, sign out, clear and revoke commands.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log()
			a, err := ro.newApp(logger)
			if err != nil {
				return err
			}
			defer a.Close()
			page, err := view.NewPage(a.controller, a.store, view.WithLogger(logger))
			if err != nil {
				return err
			}
			listen := ro.v.GetString(flagListen)
			srv := &http.Server{Addr: listen, Handler: page, ReadHeaderTimeout: 10 * time.Second}
			srvCh := make(chan error, 1)
			go func() { srvCh <- srv.ListenAndServe() }()
			logger.Info("serving session page", "url", "http://"+listen)

			select {
			case err := <-srvCh:
				return err
			case <-cmd.Context().Done():
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String(flagListen, defaultListen, "address of the session page")
	ro.bind(cmd.Flags())
	return cmd
}

// sessionOutput is what commands print: the two token displays, the id
// token's claims and, optionally, UserInfo claims.
type sessionOutput struct {
	IDToken     string                 `json:"idToken"`
	AccessToken string                 `json:"accessToken"`
	Claims      map[string]interface{} `json:"claims,omitempty"`
	UserInfo    map[string]interface{} `json:"userInfo,omitempty"`
}

func printSession(w io.Writer, s *session.Store, userInfo map[string]interface{}) error {
	d := view.Current(s)
	out := sessionOutput{
		IDToken:     d.IDToken,
		AccessToken: d.AccessToken,
		UserInfo:    userInfo,
	}
	if id, ok := s.Get(session.IDToken); ok {
		out.Claims = id.Claims
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
