package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iliyamo/taskboard/internal/client"
)

const (
	keyServer = "server"
	keyToken  = "token"
)

// app carries the resolved configuration shared by all commands.
type app struct {
	v       *viper.Viper
	cfgFile string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "boardctl",
		Short:         "Manage task boards from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default $HOME/.boardctl.yaml)")
	root.PersistentFlags().String(keyServer, "http://localhost:8080", "API base URL")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 15*time.Second, "per-command timeout")
	_ = a.v.BindPFlag(keyServer, root.PersistentFlags().Lookup(keyServer))

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.boardsCmd(),
		a.boardCmd(),
		a.listsCmd(),
		a.listCmd(),
		a.cardCmd(),
		a.membersCmd(),
	)
	return root
}

// loadConfig reads ~/.boardctl.yaml (or --config) and BOARDCTL_* variables.
// A missing file is fine; it is created by login.
func (a *app) loadConfig() error {
	a.v.SetEnvPrefix("boardctl")
	a.v.AutomaticEnv()
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		a.v.AddConfigPath(home)
		a.v.SetConfigName(".boardctl")
		a.v.SetConfigType("yaml")
		a.cfgFile = filepath.Join(home, ".boardctl.yaml")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func (a *app) saveToken(token string) error {
	a.v.Set(keyToken, token)
	return a.v.WriteConfigAs(a.cfgFile)
}

func (a *app) client() *client.Client {
	return client.New(a.v.GetString(keyServer), client.WithToken(a.v.GetString(keyToken)))
}

func (a *app) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.timeout)
}

func parseID(s, what string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}
