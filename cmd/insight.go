package cmd

import (
	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/spf13/cobra"
)

var (
	insightMode     string
	insightModel    string
	insightProvider string
)

var insightCmd = &cobra.Command{
	Use:   "insight",
	Short: "Generate or list narrative insights for a visualization",
}

var insightGenerateCmd = &cobra.Command{
	Use:   "generate <vizId>",
	Short: "Describe a visualization with the configured narrative provider",
	Args:  cobra.ExactArgs(1),
	Example: `  dataglimpse insight generate 9e2d... --mode stats
  dataglimpse insight generate 9e2d... --provider ollama --model llama3.1:8b`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		svc, err := a.insights(insightProvider, insightModel)
		if err != nil {
			return err
		}
		in, err := svc.Generate(cmd.Context(), args[0], insightMode)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), in)
	},
}

var insightHistoryCmd = &cobra.Command{
	Use:   "history <vizId>",
	Short: "List the insights generated for a visualization, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		svc, err := a.insights("", "")
		if err != nil {
			return err
		}
		list, err := svc.History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), list)
	},
}

func init() {
	rootCmd.AddCommand(insightCmd)
	insightCmd.AddCommand(insightGenerateCmd, insightHistoryCmd)
	insightGenerateCmd.Flags().StringVar(&insightMode, "mode", model.InsightSummary, "summary|stats|recommendation")
	insightGenerateCmd.Flags().StringVar(&insightModel, "model", "", "model name (overrides narrative_model)")
	insightGenerateCmd.Flags().StringVar(&insightProvider, "provider", "", "openrouter|ollama (overrides narrative_provider)")
}
