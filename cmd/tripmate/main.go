// tripmate: туристический ассистент: чат с агентом, рекомендации мест,
// визитки и индексация путевых заметок.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// часовые пояса для get_time_from_city на системах без tzdata
	_ "time/tzdata"

	"github.com/ilkoid/tripmate/pkg/app"
	"github.com/ilkoid/tripmate/pkg/utils"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "tripmate",
	Short: "TripMate - travel assistant agent",
	Long: `TripMate answers travel questions with a tool-using agent:
nearby recommendations, place search, weather, local time, saved routes,
business card reading and answers from indexed travel notes.

Run "tripmate chat" for a console conversation or "tripmate tui" for the
terminal UI.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: $TRIPMATE_CONFIG, ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "duplicate logs to stderr at debug level")
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	cleanup := utils.SetupGracefulShutdown(cancel)

	err := rootCmd.ExecuteContext(ctx)
	cleanup()
	utils.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", app.HumanError(err))
		os.Exit(1)
	}
}

// setup загружает config.yaml, включает логгер и создаёт компоненты.
// Вызывающий закрывает компоненты через Close.
func setup(ctx context.Context) (*app.Components, error) {
	cfg, path, err := app.InitializeConfig(ctx, &app.DefaultConfigPathFinder{ConfigFlag: configPath})
	if err != nil {
		return nil, err
	}

	opts := utils.LogOptions{Level: cfg.App.LogLevel, Dir: cfg.App.LogDir}
	if verbose {
		opts.Level = "debug"
		opts.Stderr = true
	}
	if err := utils.InitLogger(opts); err != nil {
		return nil, err
	}
	utils.Info("Config loaded", "path", path, "default_model", cfg.Models.DefaultChat)

	return app.Initialize(ctx, cfg)
}
