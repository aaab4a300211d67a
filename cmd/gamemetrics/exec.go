package main

import (
	"errors"
	"fmt"

	"github.com/jsirianni/gamemetrics/client"
	"github.com/jsirianni/gamemetrics/internal/collector"
	"github.com/spf13/cobra"
)

func newExecCmd(root *rootOptions) *cobra.Command {
	var game string
	cmd := &cobra.Command{
		Use:   "exec [command]",
		Short: "Run one RCON command and print the raw reply",
		Long: `Run one RCON command and print the raw reply.

With --game and no command, the game's player count command is run and the
reply is parsed the same way a scrape would parse it.

With --game source only the text before the first ";" is sent. Other
commands, Factorio Lua included, are sent as given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				variant    collector.Variant
				hasVariant bool
				command    string
			)
			if game != "" {
				variant, hasVariant = collector.Lookup(game)
				if !hasVariant {
					return fmt.Errorf("unknown game %q, expected one of %v", game, collector.Names())
				}
				command = variant.Command
			}
			if len(args) == 1 {
				command = args[0]
			}
			if command == "" {
				return errors.New("a command or --game is required")
			}

			cfg, err := loadConfig(cmd, root.configPath)
			if err != nil {
				return err
			}

			c := client.New(client.Options{
				Address:       cfg.RCON.Address(),
				Password:      cfg.RCON.Password,
				Timeout:       cfg.RCON.ReadTimeout,
				SingleCommand: game == collector.Source.Name,
			})
			resp, err := c.Exec(cmd.Context(), command)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp)

			if hasVariant && len(args) == 0 {
				count, err := variant.Parse(resp)
				if err != nil {
					return &collector.MetricsCollectError{Game: variant.Name, Raw: resp, Err: err}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "players_online %d\n", count)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&game, "game", "", "Run the player count command of this game and parse the reply")
	addRCONFlags(cmd.Flags())
	return cmd
}
