package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ilkoid/tripmate/pkg/app"
	"github.com/ilkoid/tripmate/pkg/utils"
)

var (
	indexCollection string
	indexReset      bool
	indexNotes      bool
)

var indexCmd = &cobra.Command{
	Use:   "index <path|s3://bucket/prefix>...",
	Short: "Index travel notes for the guide preset and txt_search",
	Long: `Splits .txt, .md and .csv documents into chunks, embeds them in batches and
stores the vectors in retrieval.db_path. Every CSV row becomes its own document.
Sources are files, directories or s3://bucket/prefix links.

Chunks follow embedding.chunk_size and embedding.chunk_overlap; --notes switches
to the smaller retrieval.chunk_size for short travel notes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		comps, err := setup(ctx)
		if err != nil {
			return err
		}
		defer comps.Close()

		collection := indexCollection
		if collection == "" {
			collection = comps.Config.Retrieval.Collection
		}

		docs, err := comps.LoadDocuments(ctx, args)
		if err != nil {
			return err
		}
		mode := app.SplitDataset
		if indexNotes {
			mode = app.SplitNotes
		}
		indexer, err := comps.Indexer(ctx, mode)
		if err != nil {
			return err
		}

		if indexReset {
			store, err := comps.Store()
			if err != nil {
				return err
			}
			removed, err := store.DeleteCollection(ctx, collection)
			if err != nil {
				return err
			}
			utils.Info("Collection reset", "collection", collection, "removed", removed)
		}

		stats, err := indexer.Index(ctx, collection, docs)
		if err != nil {
			return err
		}
		cmd.Printf("Indexed %d documents into %q: %d chunks, %d batches, %d retries in %s\n",
			stats.Documents, collection, stats.Chunks, stats.Batches, stats.Retries, stats.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexCollection, "collection", "", "collection name (default: retrieval.collection)")
	indexCmd.Flags().BoolVar(&indexReset, "reset", false, "delete the collection before indexing")
	indexCmd.Flags().BoolVar(&indexNotes, "notes", false, "split with retrieval.chunk_size instead of embedding.chunk_size")
	rootCmd.AddCommand(indexCmd)
}
