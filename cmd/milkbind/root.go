package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	Verbose bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "milkbind",
		Short: "Drive an audio-reactive visualizer from player state",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			zerolog.TimeFieldFormat = time.RFC3339
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			if opts.Verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newPresetsCommand(opts))
	return cmd
}
