// Package main is the entry point for the browser shell process.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

// exitError carries the loop's exit code out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit code %d", e.code) }

func main() {
	err := rootCmd().Execute()
	if code := exitCode(err); code != 0 {
		os.Exit(code)
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return 1
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "browsershell",
		Short:         "Browser windowing shell event loop host",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to browsershell.toml (empty = defaults)")

	root.AddCommand(
		runCmd(),
		configCmd(),
	)

	return root
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the shell event loop until quit",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			exitAfter, _ := cmd.Flags().GetDuration("exit-after")
			watchStdin, _ := cmd.Flags().GetBool("watch-stdin")

			code, err := runShell(runOptions{
				configPath: path,
				exitAfter:  exitAfter,
				stdinFD:    stdinFD(watchStdin),
				stdout:     cmd.OutOrStdout(),
				stderr:     cmd.ErrOrStderr(),
			})
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			if code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().Duration("exit-after", 0, "quit after this long (0 = run until signalled)")
	cmd.Flags().Bool("watch-stdin", false, "post each line read from stdin to the shell as an event")
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(path)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			return cfg.Write(cmd.OutOrStdout())
		},
	}
}

func stdinFD(watch bool) int {
	if !watch {
		return -1
	}
	return int(os.Stdin.Fd())
}
