package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var ingestJSON bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Rebuild the corpus from the configured documents",
	Long: `Extracts, chunks and embeds the configured documents and replaces the
corpus. Only useful with the postgres store, the memory store is rebuilt by
every process.`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	h, err := loadHandbot(cmd.Context(), logger)
	if err != nil {
		return err
	}
	defer h.Close()

	if h.Config.Retrieval.Store == "memory" {
		logger.Warn("The memory store is discarded when this command exits")
	}

	result, err := h.Ingest(cmd.Context())
	if err != nil {
		return err
	}

	if ingestJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Ingested %d documents into %d chunks\n", result.Documents, result.Chunks)
	for _, failed := range result.Failed {
		cmd.Printf("  not extracted: %s\n", failed)
	}
	return nil
}
