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
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var registryURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a bearer token for a registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if registryURL == "" {
				return fmt.Errorf("--registry is required")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "token for %s: ", registryURL)
			reader := bufio.NewReader(cmd.InOrStdin())
			token, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("read token: %w", err)
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("token must not be empty")
			}

			store := credentialsStore()
			if err := store.Put(registryURL, token); err != nil {
				return err
			}

			logger.Info("stored credentials", "registry", registryURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&registryURL, "registry", "", "registry base URL")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	var registryURL string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove a stored registry token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if registryURL == "" {
				return fmt.Errorf("--registry is required")
			}
			store := credentialsStore()
			if err := store.Delete(registryURL); err != nil {
				return err
			}
			logger.Info("removed credentials", "registry", registryURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&registryURL, "registry", "", "registry base URL")
	return cmd
}
