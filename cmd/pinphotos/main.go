package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bitbucket.org/kleinnic74/pinphotos/config"
	"bitbucket.org/kleinnic74/pinphotos/consts"
	"bitbucket.org/kleinnic74/pinphotos/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type flags struct {
	cfgFile string
	dev     bool
}

func newRootCommand() *cobra.Command {
	f := &flags{}
	rootCmd := &cobra.Command{
		Use:           consts.AppName,
		Short:         "Drop pins on a map and collect photos taken around them",
		Version:       consts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&f.cfgFile, "config", "", "config file (default is ./pinphotos.yaml or $HOME/.pinphotos.yaml)")
	rootCmd.PersistentFlags().BoolVar(&f.dev, "dev", false, "enable dev mode: debug logging, /logs and /debug endpoints")

	rootCmd.AddCommand(newServeCommand(f), newSearchCommand(f), newPurgeCommand(f), newListCommand(f))
	return rootCmd
}

// setup loads the configuration and initializes logging
func setup(cmd *cobra.Command, f *flags) (*config.Config, error) {
	v := viper.New()
	if err := v.BindPFlag("server.dev", cmd.Flags().Lookup("dev")); err != nil {
		return nil, err
	}
	cfg, err := config.Load(v, f.cfgFile)
	if err != nil {
		return nil, err
	}
	consts.SetDevMode(cfg.Server.Dev)
	if err := logging.Init(logging.Options{
		File:        cfg.Log.File,
		LogglyToken: cfg.Log.LogglyToken,
		MemoryLines: cfg.Log.MemoryLines,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	logging.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
