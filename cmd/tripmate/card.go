package main

import (
	"github.com/spf13/cobra"
)

var cardJSON bool

var cardCmd = &cobra.Command{
	Use:   "card <image>",
	Short: "Read a business card photo",
	Long: `Reads name, job, title, phone and email from a business card image.
The image is a local file, an http(s) URL or an s3://bucket/key link.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		comps, err := setup(ctx)
		if err != nil {
			return err
		}
		defer comps.Close()

		card, err := comps.CardReader().Read(ctx, args[0])
		if err != nil {
			return err
		}
		if cardJSON {
			return printJSON(cmd.OutOrStdout(), card)
		}
		cmd.Println(card.String())
		return nil
	},
}

func init() {
	cardCmd.Flags().BoolVar(&cardJSON, "json", false, "print the card as JSON")
	rootCmd.AddCommand(cardCmd)
}
