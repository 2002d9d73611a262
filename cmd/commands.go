package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cesium-ml/baselayer/config"
	"github.com/cesium-ml/baselayer/version"
)

var configFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "baselayer",
		Short:        "Realtime channel: relay server, terminal client and message push",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", DEFAULT_CONFIG_FILE, "Configuration file path (.yaml or .toml)")

	root.AddCommand(
		connectCmd(),
		serveCmd(),
		pushCmd(),
		notifyCmd(),
		tokenCmd(),
		generateConfigCmd(),
		versionCmd(),
	)
	return root
}

func connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect to the relay and show status and notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(configFile)
			if err != nil {
				return err
			}
			return runUntilSignal(func(ctx context.Context) error {
				return app.Connect(ctx, cmd.OutOrStdout())
			})
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket relay and token endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(configFile)
			if err != nil {
				return err
			}
			return runUntilSignal(app.Serve)
		},
	}
}

func pushCmd() *cobra.Command {
	var payload string

	cmd := &cobra.Command{
		Use:   "push <user-id|*> <action-type>",
		Short: "Push an action to a user's sockets through the message bus",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(payload)) {
				return fmt.Errorf("payload must be valid JSON")
			}
			app, err := NewApp(configFile)
			if err != nil {
				return err
			}
			if err := app.Push(args[0], args[1], json.RawMessage(payload)); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pushed %s to %s\n", args[1], args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&payload, "payload", "p", "{}", "JSON payload")
	return cmd
}

func notifyCmd() *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "notify <user-id|*> <note>",
		Short: "Show a notification in a user's browser",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(configFile)
			if err != nil {
				return err
			}
			if err := app.Notify(args[0], args[1], level); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "notified %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&level, "level", "l", "info", "Notification level: info, warning or error")
	return cmd
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Print a socket token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(configFile)
			if err != nil {
				return err
			}
			token, err := app.IssueToken(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

func generateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-config",
		Short: "Write a default configuration file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.GenerateDefaultConfig(configFile); err != nil {
				return fmt.Errorf("failed to generate config: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Default configuration generated at %s\n", configFile)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "baselayer version %s\n", version.Version)
			_, _ = fmt.Fprintf(out, "Git Commit: %s\n", version.GitCommit)
			_, _ = fmt.Fprintf(out, "Git URL: %s\n", version.GitURL)
			_, _ = fmt.Fprintf(out, "Build Date: %s\n", version.BuildDate)
		},
	}
}
