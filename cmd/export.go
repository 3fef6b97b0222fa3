package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nutetra/doser/config"
	"github.com/nutetra/doser/core/history"
	"github.com/nutetra/doser/core/model"
	"github.com/nutetra/doser/infra/logger"
	"github.com/nutetra/doser/pkg/export"
)

var (
	exportFormat string
	exportOutput string
	exportStart  string
	exportEnd    string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export persisted dosing history",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "output format: json or csv")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
	exportCmd.Flags().StringVar(&exportStart, "start", "", "earliest snapshot time (RFC3339)")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "latest snapshot time (RFC3339)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum snapshots to read")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := cfg.History.NewStore()
	if err != nil {
		return fmt.Errorf("history store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.New("export-command").Errorf("store close: %v", err)
		}
	}()

	q := history.Query{Limit: exportLimit}
	if exportStart != "" {
		if q.Start, err = time.Parse(time.RFC3339, exportStart); err != nil {
			return fmt.Errorf("parse start: %w", err)
		}
	}
	if exportEnd != "" {
		if q.End, err = time.Parse(time.RFC3339, exportEnd); err != nil {
			return fmt.Errorf("parse end: %w", err)
		}
	}
	snaps, err := store.Query(context.Background(), q)
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}

	var records []model.DosingRecord
	for _, s := range snaps {
		records = append(records, s.DosingHistory...)
	}

	var out io.Writer = os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	switch exportFormat {
	case "json":
		return export.WriteJSON(out, records)
	case "csv":
		return export.WriteCSV(out, records)
	default:
		return fmt.Errorf("unknown format %q", exportFormat)
	}
}
