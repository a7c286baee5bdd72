package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"vein-detect/internal/domain/entity"
)

// historyRecord строка экспорта истории
type historyRecord struct {
	ID          string `json:"id" yaml:"id" parquet:"id"`
	Name        string `json:"name" yaml:"name" parquet:"name"`
	ResultURL   string `json:"resultUrl" yaml:"result_url" parquet:"result_url"`
	CreatedAt   string `json:"createdAt" yaml:"created_at" parquet:"created_at"`
	CreatedAtMS int64  `json:"createdAtMs" yaml:"created_at_ms" parquet:"created_at_ms"`
}

func toRecords(entries []entity.HistoryEntry) []historyRecord {
	records := make([]historyRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, historyRecord{
			ID:          e.ID,
			Name:        e.Name,
			ResultURL:   e.ResultURL,
			CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
			CreatedAtMS: e.CreatedAt.UnixMilli(),
		})
	}
	return records
}

func newHistoryCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the session history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			return writeTable(cmd.OutOrStdout(), c.Cache.History())
		},
	}

	cmd.AddCommand(newHistoryShowCmd(opts), newHistoryExportCmd(opts), newHistoryClearCmd(opts))
	return cmd
}

func newHistoryExportCmd(opts *options) *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the history as json, yaml or parquet",
		Example: `  vein-detect history export --format yaml
  vein-detect history export --format parquet --out history.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			records := toRecords(c.Cache.History())
			return exportHistory(cmd.OutOrStdout(), records, format, out)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json, yaml or parquet")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (required for parquet)")
	return cmd
}

func newHistoryShowCmd(opts *options) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "show <id|N>",
		Short: "Save a past result by entry id or list position (1 is newest)",
		Example: `  vein-detect history show 2
  vein-detect history show 2 --out previous.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			artifact, err := c.Workspace.ShowHistory(ctx, args[0])
			if err != nil {
				return err
			}
			name, data, err := c.Workspace.Download(ctx)
			if err != nil {
				return err
			}
			if out == "" {
				out = name
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes, %s)\n", out, artifact.Size, artifact.Handle)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Where to save the result (default vein-detection.jpg)")
	return cmd
}

func newHistoryClearCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all history entries and release their results",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Cache.ClearHistory(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
			return nil
		},
	}
}

func writeTable(w io.Writer, entries []entity.HistoryEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No detections yet.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tCREATED\tRESULT")
	for i, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, e.Name, e.CreatedAt.Format("2006-01-02 15:04:05"), e.ResultURL)
	}
	return tw.Flush()
}

func exportHistory(stdout io.Writer, records []historyRecord, format, out string) error {
	switch strings.ToLower(format) {
	case "parquet":
		if out == "" {
			return errors.New("--out is required for parquet")
		}
		if err := parquet.WriteFile(out, records); err != nil {
			return fmt.Errorf("write parquet: %w", err)
		}
		return nil
	case "json", "yaml", "yml":
	default:
		return fmt.Errorf("unsupported format: %s (supported: json, yaml, parquet)", format)
	}

	var (
		data []byte
		err  error
	)
	if strings.ToLower(format) == "json" {
		data, err = json.MarshalIndent(records, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(records)
	}
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	if out == "" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(out, data, 0o644)
}
