package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("milkbind")
		os.Exit(1)
	}
}
