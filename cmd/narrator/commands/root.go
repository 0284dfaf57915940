package commands

import (
	"github.com/spf13/cobra"
)

var (
	flagConfigPath string
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "narrator",
	Short: "Spoken narration for unattended terminal sessions",
	Long: `narrator watches a terminal session and speaks the moments worth
hearing: finished builds, failing tests, and questions waiting for an
answer. A local language model decides what deserves narration, so
routine output stays silent.

Sources are a tmux pane or a growing log file. With voice input
enabled, questions open a short listening window and the transcribed
answer is typed back into the watched session.

Configuration is read from the OS config directory
(~/.config/narrator/config.yaml on Linux), then .env, then the
environment. Flags override everything.

Examples:
  # Narrate tmux pane 1, checking every 3 seconds
  narrator run --pane 1

  # Watch a log file instead of a pane
  narrator run --logfile /tmp/agent.log

  # Answer questions by voice, hands free
  narrator run --voice-input --wake-word`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path (default: OS config directory)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")
}
