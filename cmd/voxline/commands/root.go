package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "voxline",
	Short: "Voice call agent server",
	Long: `voxline - a voice-driven conversational call agent.

The server captures spoken audio, transcribes it, forwards the transcript
to a language model, converts the reply to speech, and persists the
dialogue as a session transcript.

Examples:
  # Configure backend credentials, then run the server
  voxline creds set openai --api-key sk-...
  voxline serve -f voxline.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
