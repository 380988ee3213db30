package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hed1ad/synguard/pkg/config"
	"github.com/hed1ad/synguard/pkg/flow"
	flowio "github.com/hed1ad/synguard/pkg/io"
	"github.com/hed1ad/synguard/pkg/io/csv"
	"github.com/hed1ad/synguard/pkg/logging"
	"github.com/hed1ad/synguard/pkg/pipeline"
	"github.com/hed1ad/synguard/pkg/report"
)

func newAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <input>",
		Short: "Analyse a flow dump or pcap file",
		Long: `Analyse a whitespace-delimited flow dump (or a .pcap capture): window the
records, flag novel windows with a one-class detector and rank SYN packet
concentrations by (window, destination, port).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			return analyze(cmd, cfg, logger, args[0])
		},
	}
	addOverrideFlags(cmd.Flags())
	return cmd
}

func analyze(cmd *cobra.Command, cfg *config.Config, logger *log.Logger, input string) error {
	records, err := flowio.ReadAll(input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}
	logger.WithFields(log.Fields{
		"component": "reader",
		"input":     input,
		"records":   len(records),
	}).Info("read flow records")

	p, err := pipeline.FromConfig(cfg, logger)
	if err != nil {
		return err
	}
	res, err := p.Run(records)
	if err != nil {
		return err
	}

	if err := report.Write(cmd.OutOrStdout(), cfg.Output.Format, res); err != nil {
		return err
	}

	if cfg.Output.DisableExport {
		return nil
	}
	return export(cfg.Output, res, logger.WithField("run_id", res.RunID))
}

// export writes the CSV files and the chart of a completed run.
func export(out config.OutputConfig, res *pipeline.Result, logger log.FieldLogger) error {
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	records := make([]flow.Record, len(res.Anomalies))
	windows := make([]int, len(res.Anomalies))
	for i, a := range res.Anomalies {
		records[i] = a.Record
		windows[i] = a.Window
	}

	files := []struct {
		name  string
		write func(*csv.Writer) error
	}{
		{out.Anomalies, func(w *csv.Writer) error { return w.WriteAnomalies(records, windows) }},
		{out.SynGroups, func(w *csv.Writer) error { return w.WriteGroups(res.SynGroups) }},
		{out.Series, func(w *csv.Writer) error { return w.WriteSeries(res.PerMinute, res.PerFiveMinutes) }},
	}
	for _, f := range files {
		if f.name == "" {
			continue
		}
		path := filepath.Join(out.Dir, f.name)
		if err := writeCSV(path, f.write); err != nil {
			return fmt.Errorf("failed to export %s: %w", path, err)
		}
		logger.WithField("path", path).Info("exported")
	}

	if out.Plot == "" {
		return nil
	}
	path := filepath.Join(out.Dir, out.Plot)
	err := report.SaveChart(path, res.PerMinute, res.PerFiveMinutes)
	switch {
	case errors.Is(err, report.ErrEmptySeries):
		logger.Warn("no SYN traffic, chart skipped")
	case err != nil:
		return err
	default:
		logger.WithField("path", path).Info("saved chart")
	}
	return nil
}

func writeCSV(path string, write func(*csv.Writer) error) error {
	w, err := csv.NewWriter(path)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
