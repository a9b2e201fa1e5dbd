package cli

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Syxd09/code-byte-sub000/internal/config"
)

// NewExitCmd discards the stored session so the next play starts fresh.
func NewExitCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "exit",
		Short: "Leave the current game and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			store, err := buildStore(cfg, playFlags{})
			if err != nil {
				return err
			}
			if err := store.Purge(cmd.Context()); err != nil {
				return err
			}
			log.Info().Msg("stored session discarded")
			return nil
		},
	}
}
