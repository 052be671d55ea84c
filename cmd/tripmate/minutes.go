package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	minutesOut  string
	minutesEach bool
)

var minutesCmd = &cobra.Command{
	Use:   "minutes <audio>...",
	Short: "Transcribe meeting recordings and summarize them",
	Long: `Transcribes each recording with models.default_transcription (whisper-1),
appends the text to one transcript and summarizes it with the chat model in
agent.language. With --each a summary is added after every recording and the
final summary joins them. --out saves the transcript and the final summary.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		comps, err := setup(ctx)
		if err != nil {
			return err
		}
		defer comps.Close()

		rec, err := comps.MinutesRecorder()
		if err != nil {
			return err
		}

		for i, audio := range args {
			text, err := rec.Add(ctx, audio)
			if err != nil {
				return err
			}
			cmd.Printf("[%d] %s\n%s\n\n", i+1, audio, text)

			if minutesEach {
				summary, err := rec.Summarize(ctx)
				if err != nil {
					return err
				}
				cmd.Printf("Summary %d:\n%s\n\n", len(rec.Summaries()), summary)
			}
		}
		if !minutesEach {
			if _, err := rec.Summarize(ctx); err != nil {
				return err
			}
		}

		cmd.Printf("Final summary:\n%s\n", rec.FinalSummary())
		if minutesOut != "" {
			if err := os.WriteFile(minutesOut, []byte(rec.Document()), 0o644); err != nil {
				return fmt.Errorf("save minutes: %w", err)
			}
			cmd.Printf("Saved to %s\n", minutesOut)
		}
		return nil
	},
}

func init() {
	minutesCmd.Flags().StringVarP(&minutesOut, "out", "o", "", "save transcript and final summary to this file")
	minutesCmd.Flags().BoolVar(&minutesEach, "each", false, "summarize after every recording")
	rootCmd.AddCommand(minutesCmd)
}
