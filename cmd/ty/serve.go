package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskyard/internal/api"
	"github.com/zulandar/taskyard/internal/sweep"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts the Taskyard HTTP API. When sweep.schedule is set in config, a
background sweeper also repairs stale blocked statuses on that schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Taskyard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	s, err := openStack(configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if port <= 0 {
		port = s.cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if expr := s.cfg.Sweep.Schedule; expr != "" {
		sweeper, err := sweep.New(s.store, expr, s.log)
		if err != nil {
			return err
		}
		go sweeper.Run(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "Sweeper scheduled: %s\n", expr)
	}

	return api.Start(ctx, api.StartOpts{
		Service:        s.svc,
		Auth:           s.jwt(),
		Log:            s.log,
		Port:           port,
		RequestTimeout: s.cfg.Server.RequestTimeout,
		Out:            cmd.OutOrStdout(),
	})
}
