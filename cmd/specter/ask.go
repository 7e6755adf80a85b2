package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/specter/analysis"
	"github.com/AltairaLabs/specter/session"
)

var showReasoning bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question and stream the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}

		question := strings.Join(args, " ")
		done := make(chan error, 1)

		_, err = a.overlay.SubmitQuestion(question, analysis.Events{
			OnDelta: func(ev analysis.StreamEvent) {
				switch {
				case ev.Channel == analysis.ChannelAnswer && ev.Kind == analysis.KindDelta:
					fmt.Fprint(cmd.OutOrStdout(), ev.Text)
				case ev.Channel == analysis.ChannelReasoning && showReasoning && ev.Kind == analysis.KindDelta:
					fmt.Fprint(cmd.ErrOrStderr(), ev.Text)
				case ev.Channel == analysis.ChannelToolStatus:
					fmt.Fprintf(cmd.ErrOrStderr(), "[web search: %s]\n", ev.Phase)
				}
			},
			OnDone: func(session.Turn) {
				fmt.Fprintln(cmd.OutOrStdout())
				done <- nil
			},
			OnError: func(err error) {
				done <- err
			},
		})
		if err != nil {
			return err
		}

		return <-done
	},
}

func init() {
	askCmd.Flags().BoolVar(&showReasoning, "reasoning", false, "print reasoning summary to stderr")
}
