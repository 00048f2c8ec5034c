package cmd

import (
	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/spf13/cobra"
)

var (
	vizCreateWho   identityFlags
	vizCreateChart chartFlags
	vizUpdateWho   identityFlags
	vizUpdateChart chartFlags
	vizStatusWho   identityFlags
	vizDraft       bool
)

var vizCmd = &cobra.Command{
	Use:   "viz",
	Short: "Create, update and inspect saved visualizations",
}

var vizCreateCmd = &cobra.Command{
	Use:   "create <datasetId>",
	Short: "Save a visualization from the dataset's pending config plus flags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		who, err := vizCreateWho.identity()
		if err != nil {
			return err
		}
		over, err := vizCreateChart.config()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		chartType := over.ChartType()
		if chartType == "" {
			ds, err := a.datasets.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			chartType = ds.PendingConfig.ChartType()
		}
		delete(over, model.KeyChartType)
		v, err := a.vizs.Create(cmd.Context(), args[0], chartType, over, who.Owner())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), v)
	},
}

var vizUpdateCmd = &cobra.Command{
	Use:   "update <vizId>",
	Short: "Patch a visualization's config and reproject its preview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		who, err := vizUpdateWho.identity()
		if err != nil {
			return err
		}
		patch, err := vizUpdateChart.config()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		v, err := a.vizs.Update(cmd.Context(), args[0], patch, who)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), v)
	},
}

var vizShowCmd = &cobra.Command{
	Use:   "show <vizId>",
	Short: "Print a visualization",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		v, err := a.vizs.Fetch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), v)
	},
}

var vizListCmd = &cobra.Command{
	Use:   "list <datasetId>",
	Short: "List the visualizations built from a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		list, err := a.vizs.ListForDataset(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), list)
	},
}

var vizFinalizeCmd = &cobra.Command{
	Use:   "finalize <vizId>",
	Short: "Mark a visualization final (or back to draft with --draft)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		who, err := vizStatusWho.identity()
		if err != nil {
			return err
		}
		status := model.StatusFinal
		if vizDraft {
			status = model.StatusDraft
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		v, err := a.vizs.SetStatus(cmd.Context(), args[0], status, who)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), v)
	},
}

func init() {
	rootCmd.AddCommand(vizCmd)
	vizCmd.AddCommand(vizCreateCmd, vizUpdateCmd, vizShowCmd, vizListCmd, vizFinalizeCmd)
	vizCreateWho.register(vizCreateCmd)
	vizCreateChart.register(vizCreateCmd)
	vizUpdateWho.register(vizUpdateCmd)
	vizUpdateChart.register(vizUpdateCmd)
	vizStatusWho.register(vizFinalizeCmd)
	vizFinalizeCmd.Flags().BoolVar(&vizDraft, "draft", false, "return the visualization to draft")
}
