// Command schemadump applies pending migrations to a database and writes its
// schema structure file.
//
//	schemadump dump --url postgres://app@localhost/app --migrations db/migrations --out db/structure.sql
//	schemadump dump --target shop
//	schemadump targets
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/SedlarDavid/schemadump/internal/config"
	"github.com/SedlarDavid/schemadump/internal/dumperr"
	"github.com/SedlarDavid/schemadump/internal/migrate"
	"github.com/SedlarDavid/schemadump/pkg/schemadump"
)

var (
	version = "0.1.0"
	cfgFile string
	verbose bool
	logger  *slog.Logger
	cfg     *config.Config
)

// Exit codes.
const (
	exitError       = 1
	exitConfig      = 10
	exitConnection  = 11
	exitMigration   = 12
	exitDumpUtility = 13
	exitIO          = 14
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "schemadump",
		Short:        "Migrate a database and dump its schema structure",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			// Best effort; a missing .env is fine.
			_ = godotenv.Load()

			var err error
			if cfgFile != "" {
				cfg, err = config.LoadFile(cfgFile)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ~/.schemadump/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(dumpCmd())
	rootCmd.AddCommand(targetsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func dumpCmd() *cobra.Command {
	var (
		target string
		flags  schemadump.Config
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Apply pending migrations and write the structure file",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dumpConfig(cmd, target, flags)
			if err != nil {
				return err
			}
			req, err := c.Resolve()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d := &schemadump.Dumper{Logger: logger}
			res, err := d.Dump(ctx, req)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes, %d migrations applied)\n", res.Destination, res.Bytes, len(res.Applied))
			return nil
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "configured target ID (default target when configured)")
	cmd.Flags().StringVar(&flags.Engine, "engine", "", "sqlite, mysql or postgres (default from URL scheme)")
	cmd.Flags().StringVar(&flags.Backend, "backend", "", "migration backend: native or golang-migrate")
	cmd.Flags().StringVar(&flags.URL, "url", "", "connection URL (default per engine)")
	cmd.Flags().StringVarP(&flags.MigrationsDir, "migrations", "m", "", "migrations directory (default ./migrations)")
	cmd.Flags().StringVarP(&flags.Destination, "out", "o", "", "structure file (default ./structure.sql)")
	return cmd
}

// dumpConfig starts from the selected target and applies the flags the
// user set explicitly.
func dumpConfig(cmd *cobra.Command, target string, flags schemadump.Config) (schemadump.Config, error) {
	var c schemadump.Config
	if target == "" && cfg.HasTarget(config.DefaultTarget) {
		target = config.DefaultTarget
	}
	if target != "" {
		t, ok := cfg.Target(target)
		if !ok {
			return c, dumperr.New(dumperr.KindURIConfiguration, "target", "unknown target %q", target)
		}
		c = schemadump.Config{
			Engine:        string(t.Engine),
			Backend:       t.Backend,
			URL:           t.URL,
			MigrationsDir: t.Migrations,
			Destination:   t.Destination,
		}
	}

	set := cmd.Flags().Changed
	if set("engine") {
		c.Engine = flags.Engine
	}
	if set("backend") {
		c.Backend = flags.Backend
	}
	if set("url") {
		c.URL = flags.URL
		if !set("engine") {
			// The target's engine must not override the scheme of a new URL.
			c.Engine = ""
		}
	}
	if set("migrations") {
		c.MigrationsDir = flags.MigrationsDir
	}
	if set("out") {
		c.Destination = flags.Destination
	}
	return c, nil
}

func targetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List configured targets (no credentials)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return renderTargets(cmd.OutOrStdout(), cfg.TargetInfos())
		},
	}
}

// renderTargets prints one row per target. Targets without a backend use
// the native runner.
func renderTargets(w io.Writer, infos []config.TargetInfo) error {
	if len(infos) == 0 {
		_, err := fmt.Fprintln(w, "No targets configured")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Options(tablewriter.WithConfig(tablewriter.Config{
		Header: tw.CellConfig{
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
	}))
	table.Options(tablewriter.WithSymbols(&tw.SymbolASCII{}))
	table.Header("ID", "ENGINE", "BACKEND", "MIGRATIONS", "DESTINATION")

	for _, t := range infos {
		backend := t.Backend
		if backend == "" {
			backend = string(migrate.Native)
		}
		if err := table.Append(t.ID, t.Engine, backend, t.Migrations, t.Destination); err != nil {
			return err
		}
	}
	return table.Render()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("schemadump %s\n", version)
		},
	}
}

func exitCode(err error) int {
	switch dumperr.KindOf(err) {
	case dumperr.KindURIConfiguration, dumperr.KindURIConfigurationDecoding:
		return exitConfig
	case dumperr.KindDatabaseConnection:
		return exitConnection
	case dumperr.KindMigration:
		return exitMigration
	case dumperr.KindCommandRun:
		return exitDumpUtility
	case dumperr.KindIO:
		return exitIO
	}
	return exitError
}
