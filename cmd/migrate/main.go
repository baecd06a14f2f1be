// migrate applies the embedded Postgres schema: migrate up | down | version.
package main

import (
	"fmt"
	"io"
	"os"

	"callbridge/internal/config"
	"callbridge/internal/db/migrate"

	"github.com/spf13/cobra"
)

type runFunc func(dsn, direction string) error

type versionFunc func(dsn string) (uint, bool, bool, error)

func newRootCmd(run runFunc, version versionFunc) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply the callbridge Postgres schema",
		Long:          "Applies the SQL migrations embedded in the binary. Uses DATABASE_URL unless --database-url is given.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&dsn, "database-url", "", "postgres URL (defaults to DATABASE_URL)")

	resolve := func() (string, error) {
		if dsn != "" {
			return dsn, nil
		}
		cfg, err := config.Load()
		if err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		return cfg.DB.URL, nil
	}

	cmd.AddCommand(newDirectionCmd(migrate.DirectionUp, "Apply all pending migrations", run, resolve))
	cmd.AddCommand(newDirectionCmd(migrate.DirectionDown, "Revert all migrations", run, resolve))
	cmd.AddCommand(newVersionCmd(version, resolve))
	return cmd
}

func newDirectionCmd(direction, short string, run runFunc, resolve func() (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   direction,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := resolve()
			if err != nil {
				return err
			}
			return runDirection(cmd.OutOrStdout(), run, dsn, direction)
		},
	}
}

func runDirection(out io.Writer, run runFunc, dsn, direction string) error {
	if err := run(dsn, direction); err != nil {
		return err
	}
	fmt.Fprintf(out, "migrations %s: ok\n", direction)
	return nil
}

func newVersionCmd(version versionFunc, resolve func() (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, err := resolve()
			if err != nil {
				return err
			}
			return runVersion(cmd.OutOrStdout(), version, dsn)
		},
	}
}

func runVersion(out io.Writer, version versionFunc, dsn string) error {
	v, dirty, ok, err := version(dsn)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "no migrations applied")
		return nil
	}
	if dirty {
		fmt.Fprintf(out, "version %d (dirty)\n", v)
		return nil
	}
	fmt.Fprintf(out, "version %d\n", v)
	return nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "migrate:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd(migrate.Run, migrate.Version)))
}
