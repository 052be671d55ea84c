package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ilkoid/tripmate/pkg/agent"
	"github.com/ilkoid/tripmate/pkg/app"
	"github.com/ilkoid/tripmate/pkg/events"
	"github.com/ilkoid/tripmate/pkg/tui"
)

var (
	presetName  string
	sessionID   string
	colorScheme string
	saveDir     string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Console conversation with the agent",
	Long: `Reads questions from stdin and prints answers. History is kept for the
whole conversation. Type "exit" or "quit" to leave.

Presets: ` + strings.Join(app.PresetNames(), ", "),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		comps, err := setup(ctx)
		if err != nil {
			return err
		}
		defer comps.Close()

		client, err := agent.NewWithComponents(ctx, comps, agent.Config{Preset: presetName, SessionID: sessionID})
		if err != nil {
			return err
		}
		cmd.Printf("%s (session %s)\n", client.Preset().Description, client.Session().ID())
		return app.RunREPL(ctx, client, os.Stdin, cmd.OutOrStdout(), "> ")
	},
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Terminal UI with live tool calls",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		comps, err := setup(ctx)
		if err != nil {
			return err
		}
		defer comps.Close()

		emitter := events.NewChanEmitter(64)
		sub := emitter.Subscribe()
		client, err := agent.NewWithComponents(ctx, comps, agent.Config{
			Preset:    presetName,
			SessionID: sessionID,
			Emitter:   emitter,
		})
		if err != nil {
			return err
		}

		if saveDir == "" {
			saveDir = comps.Config.App.LogDir
		}
		runErr := tui.Run(ctx, client, sub,
			tui.WithTitle(client.Preset().Title),
			tui.WithPlaceholder(client.Preset().Description+"... (Enter to send)"),
			tui.WithColorScheme(colorScheme),
			tui.WithSaveDir(saveDir),
		)

		// незавершённый ход ещё может писать события: читаем их до закрытия
		go func() {
			for range sub.Events() {
			}
		}()
		emitter.Close()
		return runErr
	},
}

func init() {
	for _, c := range []*cobra.Command{chatCmd, tuiCmd} {
		c.Flags().StringVarP(&presetName, "preset", "p", app.DefaultPreset, "agent preset")
		c.Flags().StringVar(&sessionID, "session", "", "session id for saved routes (default: new id)")
		rootCmd.AddCommand(c)
	}
	tuiCmd.Flags().StringVar(&colorScheme, "colors", "default", "color scheme: default, light, dracula")
	tuiCmd.Flags().StringVar(&saveDir, "save-dir", "", "directory for Ctrl+S transcripts (default: app.log_dir)")
}
