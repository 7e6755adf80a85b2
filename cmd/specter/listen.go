package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/specter/analysis"
	"github.com/AltairaLabs/specter/audio"
	"github.com/AltairaLabs/specter/session"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Capture PCM audio from stdin, transcribe it and answer on interrupt",
	Long: `Reads signed 16-bit little-endian mono PCM from stdin (pipe in a
recorder such as arecord or sox), streams it to the transcription
backend and, on interrupt, submits the accumulated transcript as a
question.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := a.overlay.StartCapture(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "listening; interrupt to ask")

		<-ctx.Done()
		elapsed := a.overlay.CaptureElapsed()
		a.overlay.StopCapture()
		fmt.Fprintf(cmd.ErrOrStderr(), "captured %s of audio\n", elapsed)

		done := make(chan error, 1)
		_, err = a.overlay.SubmitQuestion("", analysis.Events{
			OnDelta: func(ev analysis.StreamEvent) {
				if ev.Channel == analysis.ChannelAnswer && ev.Kind == analysis.KindDelta {
					fmt.Fprint(cmd.OutOrStdout(), ev.Text)
				}
			},
			OnDone: func(session.Turn) {
				fmt.Fprintln(cmd.OutOrStdout())
				done <- nil
			},
			OnError: func(err error) { done <- err },
		})
		if err != nil {
			if errors.Is(err, analysis.ErrEmptyQuestion) {
				fmt.Fprintln(cmd.ErrOrStderr(), "no speech transcribed")
				return nil
			}
			return err
		}

		return <-done
	},
}

func init() {
	listenCmd.Flags().IntVar(&stdinRate, "rate", audio.TargetSampleRate,
		"sample rate of PCM on stdin")
}
