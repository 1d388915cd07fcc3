package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/siherrmann/handbot/core/vision"
	"github.com/spf13/cobra"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze-ad [image]",
	Short: "Score an advertising image",
	Long: `Classifies a JPEG or PNG advertising image with the configured CLIP model
and asks the model backend for a score from 0 to 100 and a recommendation, like
POST /analyze-ad.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output the analysis as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	img, err := vision.DecodeImage(file)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	h, err := loadHandbot(cmd.Context(), newLogger())
	if err != nil {
		return err
	}
	defer h.Close()

	analysis, err := h.AnalyzeAd(cmd.Context(), img)
	if err != nil {
		return err
	}

	if analyzeJSON {
		data, err := json.MarshalIndent(analysis, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Print(analysis.String())
	cmd.Println()
	cmd.Println(analysis.Analysis)
	return nil
}
