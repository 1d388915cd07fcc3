package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var (
	askSender   string
	askChat     bool
	askCategory bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question",
	Long: `Answers one question like POST /ask. Sessions live in memory, so the
sender has to verify in the same message stream, use --chat for the document
QA chatbot instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askSender, "sender", "s", "cli", "sender id of the question")
	askCmd.Flags().BoolVar(&askChat, "chat", false, "use the document QA chatbot")
	askCmd.Flags().BoolVar(&askCategory, "category", false, "print the answer category")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	h, err := loadHandbot(cmd.Context(), newLogger())
	if err != nil {
		return err
	}
	defer h.Close()

	if err := ensureCorpus(cmd.Context(), h); err != nil {
		return err
	}

	if askChat {
		answer, err := h.Chat(cmd.Context(), askSender, question)
		if err != nil {
			return err
		}
		cmd.Println(answer.Response)
		for _, source := range answer.Sources {
			cmd.Printf("  [%s p.%d] %.3f\n", source.Source, source.Page, source.Distance)
		}
		return nil
	}

	reply := h.Ask(cmd.Context(), askSender, question)
	if askCategory {
		cmd.Printf("[%s] ", reply.Category)
	}
	cmd.Println(reply.Answer)
	return nil
}
