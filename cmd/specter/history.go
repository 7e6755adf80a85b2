package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var historyJSON bool

var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Print the persisted history of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}

		snap, err := a.store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if historyJSON {
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		for _, turn := range snap.Turns {
			fmt.Fprintf(cmd.OutOrStdout(), "Q: %s\nA: %s\n\n", turn.Question, turn.Answer)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print the structured record")
}
