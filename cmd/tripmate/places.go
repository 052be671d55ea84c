package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ilkoid/tripmate/pkg/maps"
	"github.com/ilkoid/tripmate/pkg/places"
	"github.com/ilkoid/tripmate/pkg/state"
)

var (
	recLat, recLng float64
	recExclude     []string
	routesSession  string
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [request]",
	Short: "Recommend places near a location",
	Example: `  tripmate recommend --lat 35.0979 --lng 129.0306 "quiet cafe with a view"
  tripmate recommend --lat 35.0979 --lng 129.0306 --exclude ChIJ... "seafood"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lng") {
			return fmt.Errorf("--lat and --lng are required")
		}
		ctx := cmd.Context()
		comps, err := setup(ctx)
		if err != nil {
			return err
		}
		defer comps.Close()

		rec, err := comps.Recommender()
		if err != nil {
			return err
		}
		res, err := rec.Recommend(ctx, state.NewSession("", nil), places.Request{
			Query:    strings.Join(args, " "),
			Location: &maps.LatLng{Lat: recLat, Lng: recLng},
			Exclude:  recExclude,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var keywordsCmd = &cobra.Command{
	Use:   "keywords <text>",
	Short: "Extract keywords from a phrase and search places with them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		comps, err := setup(ctx)
		if err != nil {
			return err
		}
		defer comps.Close()

		finder, err := comps.PlaceFinder()
		if err != nil {
			return err
		}
		res, err := finder.Find(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Keywords: %s\n\n", strings.Join(res.Keywords, ", "))
		for i, p := range res.Places {
			open := "hours unknown"
			if p.OpenNow != nil && *p.OpenNow {
				open = "open now"
			} else if p.OpenNow != nil {
				open = "closed now"
			}
			fmt.Fprintf(out, "%d. %s\n   %s\n   rating %.1f, %s\n", i+1, p.Name, p.Address, p.Rating, open)
		}
		return nil
	},
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List routes saved in a session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		comps, err := setup(ctx)
		if err != nil {
			return err
		}
		defer comps.Close()

		list, err := comps.Routes.List(ctx, routesSession)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			cmd.Println("No routes saved in this session.")
			return nil
		}
		return printJSON(cmd.OutOrStdout(), list)
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func init() {
	recommendCmd.Flags().Float64Var(&recLat, "lat", 0, "latitude")
	recommendCmd.Flags().Float64Var(&recLng, "lng", 0, "longitude")
	recommendCmd.Flags().StringSliceVar(&recExclude, "exclude", nil, "place ids to skip")

	routesCmd.Flags().StringVar(&routesSession, "session", "", "session id")
	_ = routesCmd.MarkFlagRequired("session")

	rootCmd.AddCommand(recommendCmd, keywordsCmd, routesCmd)
}
