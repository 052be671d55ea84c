package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ilkoid/tripmate/pkg/agent"
	"github.com/ilkoid/tripmate/pkg/session"
)

var (
	askAnalyze bool
	askImages  []string
	askPreset  string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question and print the answer",
	Long: `Runs a single turn. With --analyze the question is answered from several
angles (culture, food, logistics) at once instead of by the agent.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		comps, err := setup(ctx)
		if err != nil {
			return err
		}
		defer comps.Close()

		question := strings.Join(args, " ")
		out := cmd.OutOrStdout()

		if askAnalyze {
			answers, err := comps.AnalyzeQuestion(ctx, question, nil)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(answers))
			for name := range answers {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "## %s\n%s\n\n", name, answers[name])
			}
			return nil
		}

		client, err := agent.NewWithComponents(ctx, comps, agent.Config{Preset: askPreset})
		if err != nil {
			return err
		}
		reply, err := client.Ask(ctx, session.Request{Query: question, Images: askImages})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply.Text)
		if reply.Partial {
			fmt.Fprintln(out, "(answer is incomplete: iteration limit reached)")
		}
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askAnalyze, "analyze", false, "answer from several angles in parallel")
	askCmd.Flags().StringSliceVar(&askImages, "image", nil, "image URL or data URI to attach")
	askCmd.Flags().StringVarP(&askPreset, "preset", "p", "", "agent preset (default: travel)")
	rootCmd.AddCommand(askCmd)
}
