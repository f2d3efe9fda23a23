// Copyright (c) 2024 the buffrs contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/buffrs-dev/buffrs/internal/version"
)

var (
	quiet   bool
	verbose bool
	logger  *slog.Logger
)

// Execute runs the root command, returning the process exit code.
func Execute(ctx context.Context) int {
	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		return exitCodeFor(err)
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "buffrs",
		Short:         "Protobuf dependency management, the way cargo manages crates",
		Version:       version.Get(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = newLogger()
		},
	}

	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInitCmd(),
		newAddCmd(),
		newRemoveCmd(),
		newInstallCmd(),
		newUninstallCmd(),
		newPackageCmd(),
		newPublishCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newLintCmd(),
		newListCmd(),
		newLockCmd(),
	)

	return root
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// exitCode classifies a command failure into buffrs's stable exit-code
// contract, matched with errors.As against the typed errors each
// internal package returns.
type exitCode int

const (
	exitOK             exitCode = 0
	exitGeneric        exitCode = 1
	exitManifestError  exitCode = 2
	exitResolveError   exitCode = 3
	exitRegistryError  exitCode = 4
	exitWorkspaceError exitCode = 5
)

func exitCodeFor(err error) int {
	if err == nil {
		return int(exitOK)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	return int(classify(err))
}
