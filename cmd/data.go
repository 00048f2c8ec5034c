package cmd

import (
	"fmt"

	"github.com/KaramelBytes/dataglimpse/internal/dataset"
	"github.com/spf13/cobra"
)

var (
	uploadWho   identityFlags
	datasetsWho identityFlags
	configWho   identityFlags
	configChart chartFlags
	previewOpts chartFlags
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Ingest a CSV or XLSX file as a new dataset",
	Args:  cobra.ExactArgs(1),
	Example: `  dataglimpse upload sales.csv --account alice
  dataglimpse upload report.xlsx --guest guest_7f3a`,
	RunE: func(cmd *cobra.Command, args []string) error {
		who, err := uploadWho.identity()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		ds, err := a.ingestor.IngestFile(cmd.Context(), args[0], who.Owner())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"datasetId":     ds.ID,
			"fileName":      ds.FileName,
			"rows":          ds.RowCount,
			"columns":       ds.Columns,
			"columnTypes":   ds.ColumnTypes,
			"checksum":      ds.Checksum,
			"samplePreview": ds.SamplePreview,
		})
	},
}

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the datasets owned by an account or guest session",
	RunE: func(cmd *cobra.Command, args []string) error {
		who, err := datasetsWho.identity()
		if err != nil {
			return err
		}
		if who.IsAnonymous() {
			return fmt.Errorf("--account or --guest is required")
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		list, err := a.datasets.List(cmd.Context(), who.Owner())
		if err != nil {
			return err
		}
		out := make([]map[string]any, 0, len(list))
		for _, ds := range list {
			out = append(out, map[string]any{
				"id":             ds.ID,
				"fileName":       ds.FileName,
				"rows":           ds.RowCount,
				"columns":        ds.Columns,
				"visualizations": ds.Visualizations,
				"createdAt":      ds.CreatedAt,
			})
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

var configureCmd = &cobra.Command{
	Use:   "configure <datasetId>",
	Short: "Save the pending chart configuration of a dataset",
	Args:  cobra.ExactArgs(1),
	Example: `  dataglimpse configure 3b1c... --chart bar --start 1 --end 10 --role x=Category --role y=Revenue`,
	RunE: func(cmd *cobra.Command, args []string) error {
		roles, err := parseRoles(configChart.roles)
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := checkLocalAccess(cmd, a, args[0], configWho); err != nil {
			return err
		}
		saved, err := a.datasets.SetPendingConfig(cmd.Context(), args[0], configChart.chart, configChart.start, configChart.end, roles)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), saved)
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <datasetId>",
	Short: "Project a dataset with its saved config and optional overrides",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		over, err := previewOpts.config()
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		p, err := a.datasets.Preview(cmd.Context(), args[0], over)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

// checkLocalAccess applies the ownership rule when an identity was given.
// Without one the local operator acts unrestricted.
func checkLocalAccess(cmd *cobra.Command, a *app, datasetID string, f identityFlags) error {
	who, err := f.identity()
	if err != nil {
		return err
	}
	if who.IsAnonymous() {
		return nil
	}
	ds, err := a.datasets.Get(cmd.Context(), datasetID)
	if err != nil {
		return err
	}
	if !ds.Owner.IsZero() && !dataset.CanAccess(ds, who) {
		return fmt.Errorf("%s may not configure dataset %s", who.Owner(), datasetID)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(uploadCmd, datasetsCmd, configureCmd, previewCmd)
	uploadWho.register(uploadCmd)
	datasetsWho.register(datasetsCmd)
	configWho.register(configureCmd)
	configChart.register(configureCmd)
	previewOpts.register(previewCmd)
}
