package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hed1ad/synguard/pkg/config"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	addOverrideFlags(cmd.Flags())
	return cmd
}

func addOverrideFlags(fs *pflag.FlagSet) {
	fs.Duration("window", 0, "window size (e.g. 5m)")
	fs.String("features", "", "per-window feature set: destination-sum or volume")
	fs.Bool("fill-empty", false, "feed zero vectors for empty windows to the detector")
	fs.String("detector", "", "novelty detector: ocsvm or iforest")
	fs.Float64("nu", 0, "tolerated outlier fraction")
	fs.String("kernel", "", "ocsvm kernel: rbf or linear")
	fs.String("gamma", "", "rbf bandwidth: scale, auto or a positive number")
	fs.Int("top", 0, "number of ranked SYN groups to report (0 = all)")
	fs.String("out-dir", "", "directory for CSV exports and the chart")
	fs.String("plot", "", "chart file name inside out-dir, empty to skip")
	fs.Bool("no-export", false, "skip CSV exports and the chart")
	fs.String("format", "", "report format: text, table or json")
	fs.String("log-level", "", "log level: debug, info, warn or error")
}

// loadConfig reads the --config file over the defaults, applies every flag
// the user set explicitly and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	// flag types are fixed by addOverrideFlags, so the getters cannot fail
	fs := cmd.Flags()
	if fs.Changed("window") {
		cfg.Window.Size, _ = fs.GetDuration("window")
	}
	if fs.Changed("features") {
		cfg.Window.Features, _ = fs.GetString("features")
	}
	if fs.Changed("fill-empty") {
		cfg.Window.FillEmpty, _ = fs.GetBool("fill-empty")
	}
	if fs.Changed("detector") {
		cfg.Detector.Algorithm, _ = fs.GetString("detector")
	}
	if fs.Changed("nu") {
		cfg.Detector.Nu, _ = fs.GetFloat64("nu")
	}
	if fs.Changed("kernel") {
		cfg.Detector.Kernel, _ = fs.GetString("kernel")
	}
	if fs.Changed("gamma") {
		cfg.Detector.Gamma, _ = fs.GetString("gamma")
	}
	if fs.Changed("top") {
		cfg.Syn.TopK, _ = fs.GetInt("top")
	}
	if fs.Changed("out-dir") {
		cfg.Output.Dir, _ = fs.GetString("out-dir")
	}
	if fs.Changed("plot") {
		cfg.Output.Plot, _ = fs.GetString("plot")
	}
	if fs.Changed("no-export") {
		cfg.Output.DisableExport, _ = fs.GetBool("no-export")
	}
	if fs.Changed("format") {
		cfg.Output.Format, _ = fs.GetString("format")
	}
	if fs.Changed("log-level") {
		cfg.Log.Level, _ = fs.GetString("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
