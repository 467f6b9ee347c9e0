/*
 * Copyright 2025 Cong Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/amtp-protocol/specregistry/internal/types"
)

type rootOptions struct {
	registryURL string
	timeout     time.Duration
	verbose     bool
	jsonOutput  bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "specregistry-admin",
		Short:        "Manage OpenAPI documents in a schema registry",
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.registryURL, "registry-url", envOr("SPECREG_URL", "http://localhost:8000"), "Registry base URL")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print raw JSON responses")

	newClientFor := func(cmd *cobra.Command) *client {
		return newClient(opts.registryURL, opts.timeout, opts.verbose, cmd.ErrOrStderr())
	}

	root.AddCommand(
		newUploadCmd(opts, newClientFor),
		newGetCmd(newClientFor),
		newVersionsCmd(opts, newClientFor),
		newHealthCmd(opts, newClientFor),
	)
	return root
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func newUploadCmd(opts *rootOptions, newClientFor func(*cobra.Command) *client) *cobra.Command {
	var application, service string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an OpenAPI document as the next version of its scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClientFor(cmd).upload(application, service, args[0])
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s as version %d (%s)\n", scopeLabel(result.Application, result.Service), result.Version, result.MediaType)
			fmt.Fprintf(cmd.OutOrStdout(), "  checksum: %s\n  path:     %s\n", result.Checksum, result.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&application, "application", "a", "", "Application name (required)")
	cmd.Flags().StringVarP(&service, "service", "s", "", "Service name")
	cmd.MarkFlagRequired("application")
	return cmd
}

func newGetCmd(newClientFor func(*cobra.Command) *client) *cobra.Command {
	var application, service, output string
	var version int
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Download the latest or a specific version of a document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := scopeQuery(application, service)
			if version > 0 {
				query.Set("version", strconv.Itoa(version))
			}
			resp, err := newClientFor(cmd).get("/schemas", query)
			if err != nil {
				return err
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write(resp.Body)
				return err
			}
			if err := os.WriteFile(output, resp.Body, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved version %s to %s\n", resp.Header.Get("X-Schema-Version"), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&application, "application", "a", "", "Application name (required)")
	cmd.Flags().StringVarP(&service, "service", "s", "", "Service name")
	cmd.Flags().IntVar(&version, "version", 0, "Version to fetch (default: latest)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the document to a file instead of stdout")
	cmd.MarkFlagRequired("application")
	return cmd
}

func newVersionsCmd(opts *rootOptions, newClientFor func(*cobra.Command) *client) *cobra.Command {
	var application, service string
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List every stored version of a scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClientFor(cmd).get("/schemas/versions", scopeQuery(application, service))
			if err != nil {
				return err
			}
			var listing types.VersionListResponse
			if err := json.Unmarshal(resp.Body, &listing); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), listing)
			}

			out := cmd.OutOrStdout()
			if len(listing.Versions) == 0 {
				fmt.Fprintf(out, "No versions stored for %s\n", scopeLabel(listing.Application, listing.Service))
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tUPLOADED\tMEDIA TYPE\tSIZE\tCHECKSUM")
			for _, v := range listing.Versions {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", v.Version, v.UploadedAt.Format(time.RFC3339), v.MediaType, v.SizeBytes, shortChecksum(v.Checksum))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&application, "application", "a", "", "Application name (required)")
	cmd.Flags().StringVarP(&service, "service", "s", "", "Service name")
	cmd.MarkFlagRequired("application")
	return cmd
}

func newHealthCmd(opts *rootOptions, newClientFor func(*cobra.Command) *client) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show registry readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := newClientFor(cmd).get("/readyz", nil)
			if err != nil {
				return err
			}
			var status types.ReadinessStatus
			if err := json.Unmarshal(resp.Body, &status); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status: %s\n", status.Status)
			names := make([]string, 0, len(status.Checks))
			for name := range status.Checks {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  %-10s %s\n", name, status.Checks[name])
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func scopeLabel(application string, service *string) string {
	if service == nil {
		return application
	}
	return application + "/" + *service
}

func shortChecksum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
