package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/challengetracker/go/internal/config"
)

var (
	envFile string
	debug   bool

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "challenge-tracker",
		Short: "Serve and maintain shared challenge trackers",
		Long: `challenge-tracker runs the websocket gateway that replicates
challenge trackers between the peers of a world, and maintains the saved
trackers of each owner.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(envFile)
			if err != nil {
				return err
			}
			cfg = loaded
			setupLogging(cfg.Level())
			return nil
		},
	}
)

func setupLogging(level zerolog.Level) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file loaded before the process environment")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	rootCmd.AddCommand(serveCmd, listCmd, copyCmd, moveCmd, deleteCmd, settingsCmd)
	settingsCmd.AddCommand(settingsCheckCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
