package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and all subcommands writing to out/errOut.
func buildRoot(out, errOut io.Writer) *cobra.Command {
	globalFlags := &GlobalFlags{}
	c := &command{global: globalFlags, out: out, errOut: errOut}

	root := createRootCommand(globalFlags)
	root.SetOut(out)
	root.SetErr(errOut)

	root.AddCommand(
		createAddCommand(c),
		createRemoveCommand(c),
		createEditCommand(c),
		createStartCommand(c),
		createStopCommand(c),
		createRestartCommand(c),
		createStatusCommand(c),
		createListCommand(c),
		createStartAllCommand(c),
		createStopAllCommand(c),
		createPortsCommand(c),
		createBootCommand(c),
		createServeCommand(c),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "srvctl",
		Short: "Supervise a registry of named local servers",
		Long: `srvctl keeps a registry of named local server processes and starts,
stops and restarts them, refusing to start a server whose port is taken.

Examples:
  srvctl add web --cmd "python3 -m http.server 9000" --port 9000 --auto-start
  srvctl start web
  srvctl list
  srvctl serve                                     # run the daemon and HTTP API
  srvctl list --api-url http://127.0.0.1:8080/api  # talk to a running daemon`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	pf.StringVar(&flags.RegistryPath, "registry", "", "registry path, overrides registry.path")
	pf.StringVar(&flags.APIUrl, "api-url", "", "daemon API base URL; when set commands go through the daemon")
	pf.DurationVar(&flags.APITimeout, "api-timeout", 30*time.Second, "daemon API request timeout")
	pf.BoolVar(&flags.JSON, "json", false, "print JSON instead of tables")
	return root
}

func createAddCommand(c *command) *cobra.Command {
	f := &AddFlags{}
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a new server",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.Add(args[0], *f)
		},
	}
	cmd.Flags().StringVar(&f.Command, "cmd", "", "command line to run")
	cmd.Flags().IntVar(&f.Port, "port", 0, "TCP port the server listens on (0 for none)")
	cmd.Flags().StringVar(&f.Dir, "dir", "", "working directory (default: current directory)")
	cmd.Flags().StringVar(&f.Description, "desc", "", "free-form description")
	cmd.Flags().BoolVar(&f.AutoStart, "auto-start", false, "start this server on boot")
	_ = cmd.MarkFlagRequired("cmd")
	return cmd
}

func createRemoveCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Stop a server if running and delete it from the registry",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.Remove(args[0])
		},
	}
}

func createEditCommand(c *command) *cobra.Command {
	f := &EditFlags{}
	cmd := &cobra.Command{
		Use:   "edit NAME",
		Short: "Change a server's definition",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&f.Command, "cmd", "", "command line to run")
	cmd.Flags().IntVar(&f.Port, "port", 0, "TCP port (0 for none)")
	cmd.Flags().StringVar(&f.Dir, "dir", "", "working directory")
	cmd.Flags().StringVar(&f.Description, "desc", "", "description")
	cmd.Flags().BoolVar(&f.AutoStart, "auto-start", false, "start this server on boot")
	f.changed = cmd.Flags().Changed
	cmd.RunE = func(_ *cobra.Command, args []string) error {
		return c.Edit(args[0], *f)
	}
	return cmd
}

func createStartCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "start NAME",
		Short: "Start a registered server",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.Start(args[0])
		},
	}
}

func createStopCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop NAME",
		Short: "Kill a running server and its process group",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.Stop(args[0])
		},
	}
}

func createRestartCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "restart NAME",
		Short: "Stop (if running) and start a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.Restart(args[0])
		},
	}
}

func createStatusCommand(c *command) *cobra.Command {
	f := &StatusFlags{}
	cmd := &cobra.Command{
		Use:   "status NAME",
		Short: "Show a server's record",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return c.Status(args[0], *f)
		},
	}
	cmd.Flags().BoolVar(&f.Detail, "detail", false, "include live port, liveness and uptime")
	return cmd
}

func createListCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered servers",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.List()
		},
	}
}

func createStartAllCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "start-all",
		Short: "Start every stopped server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.StartAll()
		},
	}
}

func createStopAllCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop-all",
		Short: "Stop every running server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.StopAll()
		},
	}
}

func createPortsCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "Show each server's port and whether it is in use",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Ports()
		},
	}
}

func createBootCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "boot",
		Short: "Start every auto-start server that is not running",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Boot()
		},
	}
}

func createServeCommand(c *command) *cobra.Command {
	f := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon: boot, reconcile and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Serve(*f)
		},
	}
	cmd.Flags().StringVar(&f.Listen, "listen", "", "API listen address (overrides server.listen)")
	cmd.Flags().StringVar(&f.BasePath, "base-path", "", "API base path (overrides server.base_path)")
	cmd.Flags().BoolVar(&f.NoBoot, "no-boot", false, "skip starting auto-start servers")
	return cmd
}
