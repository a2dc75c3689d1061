package main

import (
	"github.com/spf13/cobra"
)

func newCompletionCmd(rootCmd *cobra.Command) *cobra.Command {
	completionCmd := &cobra.Command{
		Use:   "completion",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for bwsctl.

To load completions:

Bash:
  $ source <(bwsctl completion bash)

Zsh:
  $ bwsctl completion zsh > "${fpath[1]}/_bwsctl"

Fish:
  $ bwsctl completion fish | source

PowerShell:
  PS> bwsctl completion powershell | Out-String | Invoke-Expression
`,
	}

	completionCmd.AddCommand(
		&cobra.Command{
			Use:                   "bash",
			Short:                 "Generate bash completion script",
			DisableFlagsInUseLine: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return rootCmd.GenBashCompletion(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:                   "zsh",
			Short:                 "Generate zsh completion script",
			DisableFlagsInUseLine: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return rootCmd.GenZshCompletion(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:                   "fish",
			Short:                 "Generate fish completion script",
			DisableFlagsInUseLine: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
			},
		},
		&cobra.Command{
			Use:                   "powershell",
			Short:                 "Generate powershell completion script",
			DisableFlagsInUseLine: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				return rootCmd.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
			},
		},
	)

	return completionCmd
}
