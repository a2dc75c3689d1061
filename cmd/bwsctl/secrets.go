package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bwscache/bwscache/internal/secrets"
	"github.com/bwscache/bwscache/pkg/log"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value of a secret",
		Long: `Print the value of one secret in the project.

With --output json the full record is printed, value included.`,
		Example: `  # Use a secret in a script
  export DB_PASSWORD="$(bwsctl get DB_PASSWORD -p infra)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.openManager(cmd.Context())
			if err != nil {
				return err
			}

			s, err := m.Get(args[0])
			if err != nil {
				return err
			}

			if a.output == "json" {
				return printJSON(a.out, s)
			}
			fmt.Fprintln(a.out, s.Value)
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the secrets in the project",
		Long: `List every secret in the project, sorted by key.

Values are masked unless --reveal is given.`,
		Example: `  # List keys
  bwsctl list -p infra

  # Dump everything, values included
  bwsctl list -p infra --reveal -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.openManager(cmd.Context())
			if err != nil {
				return err
			}

			entries := m.Entries()

			if a.output == "json" {
				records := make([]secrets.Secret, 0, len(entries))
				for _, e := range entries {
					s := e.Secret
					if !reveal {
						s = s.Redacted()
					}
					records = append(records, s)
				}
				return printJSON(a.out, records)
			}

			if len(entries) == 0 {
				fmt.Fprintln(a.out, Dim("No secrets found."))
				return nil
			}

			headers := []string{"KEY", "ID", "UPDATED", "VALUE"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{
					e.Key,
					e.Secret.ID,
					formatTimestamp(e.Secret.RevisionDate),
					maskValue(e.Secret.Value, reveal),
				}
			}
			printTable(a.out, headers, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show secret values")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "add <key> [value]",
		Short: "Create a new secret",
		Long: `Create a new secret in the project.

Fails if the key already exists; use 'bwsctl update' to change it. Pass the
value on stdin with --stdin to keep it out of shell history.`,
		Example: `  # Add a secret
  bwsctl add API_KEY s3cr3t -p infra

  # Read the value from a file
  bwsctl add TLS_KEY --stdin -p infra < server.key`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := a.readValue(args, fromStdin)
			if err != nil {
				return err
			}

			m, err := a.openManager(cmd.Context())
			if err != nil {
				return err
			}

			s, err := m.Add(cmd.Context(), args[0], value)
			if err != nil {
				return err
			}

			if a.output == "json" {
				return printJSON(a.out, s.Redacted())
			}
			Success(a.out, fmt.Sprintf("Added %s %s", Bold(s.Key), Dim("("+s.ID+")")))
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the value from stdin")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "update <key> [value]",
		Short: "Change the value of an existing secret",
		Long: `Change the value of an existing secret. The secret keeps its ID.

Fails if the key does not exist; use 'bwsctl add' to create it.`,
		Example: `  # Rotate a password
  bwsctl update DB_PASSWORD "$(openssl rand -base64 24)" -p infra`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := a.readValue(args, fromStdin)
			if err != nil {
				return err
			}

			m, err := a.openManager(cmd.Context())
			if err != nil {
				return err
			}

			s, err := m.UpdateValue(cmd.Context(), args[0], value)
			if err != nil {
				return err
			}

			if a.output == "json" {
				return printJSON(a.out, s.Redacted())
			}
			Success(a.out, fmt.Sprintf("Updated %s %s", Bold(s.Key), Dim("("+s.ID+")")))
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the value from stdin")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>...",
		Aliases: []string{"rm"},
		Short:   "Delete secrets",
		Long: `Delete one or more secrets by key.

Keys are deleted in order and the command stops at the first failure. Keys
deleted before the failure stay deleted.`,
		Example: `  # Delete two secrets
  bwsctl delete OLD_TOKEN LEGACY_URL -p infra`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.openManager(cmd.Context())
			if err != nil {
				return err
			}

			for _, key := range args {
				if err := m.Delete(cmd.Context(), key); err != nil {
					return err
				}
				if a.output != "json" {
					Success(a.out, fmt.Sprintf("Deleted %s", Bold(key)))
				}
			}

			if a.output == "json" {
				return printJSON(a.out, map[string]interface{}{"deleted": args})
			}
			return nil
		},
	}
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Load the project and report what is cached",
		Long: `Resolve the project, load every secret in it and report the result.

Useful to check that the token, project name and bws executable work, and
that the project holds no duplicate keys.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.openManager(cmd.Context())
			if err != nil {
				return err
			}

			if a.output == "json" {
				return printJSON(a.out, map[string]interface{}{
					"project":    m.ProjectName(),
					"project_id": m.ProjectID(),
					"secrets":    m.Len(),
					"keys":       m.Keys(),
				})
			}

			Success(a.out, fmt.Sprintf("Loaded %d secrets from project %s %s",
				m.Len(), Bold(m.ProjectName()), Dim("("+m.ProjectID()+")")))
			return nil
		},
	}
}

func newRawCmd(a *app) *cobra.Command {
	var structured bool

	cmd := &cobra.Command{
		Use:   "raw -- <bws arguments>...",
		Short: "Run an arbitrary bws command",
		Long: `Run bws with the given arguments, adding the access token.

The token is still scrubbed from the output. Changes made this way are not
reflected in any cache until the project is loaded again.`,
		Example: `  # Show one secret by ID
  bwsctl raw -- secret get 2f6a4d1c-0b7e-4a36-9a2f-5c8d9e1f0a3b`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := a.openInvoker(cmd.Context())
			if err != nil {
				return err
			}

			log.FromContext(cmd.Context()).Warn().Strs("args", args[:min(2, len(args))]).Msg("Running raw bws command")

			if structured {
				var v interface{}
				if err := inv.JSON(cmd.Context(), &v, args...); err != nil {
					return err
				}
				return printJSON(a.out, v)
			}

			out, err := inv.Text(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&structured, "json", false, "Request JSON output from bws and pretty-print it")
	return cmd
}

func newProjectsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List the projects the token can access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := a.openInvoker(cmd.Context())
			if err != nil {
				return err
			}

			var projects []secrets.Project
			if err := inv.JSON(cmd.Context(), &projects, "project", "list"); err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}

			if a.output == "json" {
				return printJSON(a.out, projects)
			}

			if len(projects) == 0 {
				fmt.Fprintln(a.out, Dim("No projects found."))
				return nil
			}

			headers := []string{"", "NAME", "ID", "UPDATED"}
			rows := make([][]string, len(projects))
			for i, p := range projects {
				current := ""
				if p.Name == a.project {
					current = Green("*")
				}
				rows[i] = []string{current, p.Name, p.ID, formatTimestamp(p.RevisionDate)}
			}
			printTable(a.out, headers, rows)
			return nil
		},
	}
}

func newBWSHelpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bws-help",
		Short: "Print the help text of the bws executable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := a.openInvoker(cmd.Context())
			if err != nil {
				return err
			}
			out, err := inv.Text(cmd.Context(), "-h")
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, out)
			return nil
		},
	}
}

func newBWSVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bws-version",
		Short: "Print the version of the bws executable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := a.openInvoker(cmd.Context())
			if err != nil {
				return err
			}
			out, err := inv.Text(cmd.Context(), "-V")
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, out)
			return nil
		},
	}
}

// readValue returns the secret value from the second argument or, with
// --stdin, from standard input minus its trailing newline.
func (a *app) readValue(args []string, fromStdin bool) (string, error) {
	if fromStdin {
		if len(args) > 1 {
			return "", errors.New("pass the value either as an argument or with --stdin, not both")
		}
		data, err := io.ReadAll(a.in)
		if err != nil {
			return "", fmt.Errorf("failed to read value from stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	if len(args) < 2 {
		return "", errors.New("missing value: pass it as the second argument or use --stdin")
	}
	return args[1], nil
}
