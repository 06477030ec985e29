// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/capdemo/auth"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix     = "CAPDEMO"
	defaultListen = "127.0.0.1:3000"
)

// flag names, which are also the config file keys and (upper cased with a
// CAPDEMO_ prefix) the env vars.
const (
	flagConfig                = "config"
	flagIssuer                = "issuer"
	flagClientID              = "client-id"
	flagClientSecret          = "client-secret"
	flagProviderCA            = "provider-ca"
	flagOrigin                = "origin"
	flagScopes                = "scopes"
	flagSessionFile           = "session-file"
	flagCallbackAddr          = "callback-addr"
	flagAttemptExpiry         = "attempt-expiry"
	flagPostLogoutRedirectURL = "post-logout-redirect-url"
	flagUseTestProvider       = "use-test-provider"
	flagVerbose               = "verbose"
	flagListen                = "listen"
	flagUserInfo              = "userinfo"
)

// RootOptions are the options shared by every command.  Values come from
// flags, CAPDEMO_* env vars and an optional config file, in that order of
// precedence.
type RootOptions struct {
	v *viper.Viper
}

func newRootOptions() *RootOptions {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault(flagListen, defaultListen)
	return &RootOptions{v: v}
}

// AddFlags adds the persistent flags to the root command.
func (o *RootOptions) AddFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.String(flagConfig, "", "config file (yaml, json or toml)")
	pf.String(flagIssuer, "", "OIDC issuer URL")
	pf.String(flagClientID, "", "OIDC client ID")
	pf.String(flagClientSecret, "", "OIDC client secret, empty for a public client")
	pf.String(flagProviderCA, "", "PEM file of the CA which signed the provider's TLS certificate")
	pf.String(flagOrigin, "", "origin sent with revocation and session calls, defaults to http://<listen>")
	pf.StringSlice(flagScopes, auth.DefaultScopes, "scopes to request when signing in")
	pf.String(flagSessionFile, defaultSessionFile(), "file which persists the session, empty to keep it in memory")
	pf.String(flagCallbackAddr, auth.DefaultCallbackAddr, "loopback host:port of the sign in callback listener")
	pf.Duration(flagAttemptExpiry, auth.DefaultAttemptExpiry, "how long to wait for the provider when signing in")
	pf.String(flagPostLogoutRedirectURL, "", "URL the provider redirects to after sign out")
	pf.Bool(flagUseTestProvider, false, "use an in process test provider")
	pf.BoolP(flagVerbose, "v", false, "log debug output")
	o.bind(pf)
}

func (o *RootOptions) bind(fs *pflag.FlagSet) {
	// BindPFlags only fails for a nil flag set
	_ = o.v.BindPFlags(fs)
}

// load reads the config file, when one is set.
func (o *RootOptions) load() error {
	const op = "RootOptions.load"
	file := o.v.GetString(flagConfig)
	if file == "" {
		return nil
	}
	o.v.SetConfigFile(file)
	if err := o.v.ReadInConfig(); err != nil {
		return fmt.Errorf("%s: unable to read config %q: %w", op, file, err)
	}
	return nil
}

func (o *RootOptions) logger(cmd *cobra.Command) hclog.Logger {
	level := hclog.Info
	if o.v.GetBool(flagVerbose) {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "capdemo",
		Level:  level,
		Output: cmd.ErrOrStderr(),
	})
}

func (o *RootOptions) providerCA() (string, error) {
	file := o.v.GetString(flagProviderCA)
	if file == "" {
		return "", nil
	}
	pem, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("unable to read provider CA: %w", err)
	}
	return string(pem), nil
}

func (o *RootOptions) origin() string {
	if origin := o.v.GetString(flagOrigin); origin != "" {
		return origin
	}
	return "http://" + o.v.GetString(flagListen)
}

func (o *RootOptions) attemptExpiry() time.Duration {
	return o.v.GetDuration(flagAttemptExpiry)
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "capdemo", "session.json")
}
