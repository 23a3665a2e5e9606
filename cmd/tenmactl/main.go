package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CK6170/tenmadc-go/models"
	"github.com/CK6170/tenmadc-go/modern"
	"github.com/CK6170/tenmadc-go/ui"
)

var (
	// Global flags
	portFlag     string
	modelFlag    string
	fallbackFlag string
	configFlag   string
	baudFlag     int
	timeoutFlag  time.Duration
	retriesFlag  int
	debugFlag    bool
	verboseFlag  bool

	cfg    *modern.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "tenmactl",
	Short: "Control Tenma 72-xxxx bench power supplies",
	Long: `tenmactl drives Tenma 72-xxxx (and Korad) DC power supplies over their
serial port: set voltage and current, switch the output, save and recall
memory presets and read the status.

The model is identified automatically unless --model is given.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verboseFlag {
			if logger, err = zap.NewDevelopment(); err != nil {
				return err
			}
		}
		cfg, err = modern.Load(configFlag)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("port") {
			cfg.Serial.Port = portFlag
		}
		if flags.Changed("model") {
			cfg.Model = modelFlag
		}
		if flags.Changed("fallback") {
			cfg.Fallback = fallbackFlag
		}
		if flags.Changed("baud") {
			cfg.Serial.Baudrate = baudFlag
		}
		if flags.Changed("timeout") {
			cfg.Serial.Timeout = timeoutFlag
		}
		if flags.Changed("retries") {
			cfg.Retries = retriesFlag
		}
		if flags.Changed("debug") {
			cfg.Debug = debugFlag
		}
		return nil
	},
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&portFlag, "port", "p", "", "Serial port device path (auto-detected when empty)")
	known := strings.Join(models.Names(), ", ")
	pf.StringVarP(&modelFlag, "model", "m", "", "Model name, skips identification. One of: "+known)
	pf.StringVar(&fallbackFlag, "fallback", "", "Model to use when the identification is not recognised. One of: "+known)
	pf.StringVar(&configFlag, "config", "", "Config file (yaml or json)")
	pf.IntVar(&baudFlag, "baud", 9600, "Baud rate")
	pf.DurationVar(&timeoutFlag, "timeout", time.Second, "Reply timeout")
	pf.IntVar(&retriesFlag, "retries", 1, "Attempts for the first exchange after connecting")
	pf.BoolVar(&debugFlag, "debug", false, "Print raw serial traffic")
	pf.BoolVarP(&verboseFlag, "verbose", "v", false, "Log exchanges")

	_ = rootCmd.RegisterFlagCompletionFunc("model", completeModels)
	_ = rootCmd.RegisterFlagCompletionFunc("fallback", completeModels)
}

func completeModels(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, name := range models.Names() {
		if strings.HasPrefix(name, toComplete) {
			out = append(out, name)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func main() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		ui.ErrorPrintf("Error: %v\n", err)
		os.Exit(1)
	}
}

func observer() modern.Observer {
	obs := modern.MultiObserver{modern.NewZapObserver(logger)}
	if cfg.Debug {
		obs = append(obs, ui.DebugObserver{})
	}
	return obs
}

// connect opens the session described by the config and flags. The port is
// auto-detected, and persisted to the config file, when none is configured.
func connect(ctx context.Context) (*modern.Session, error) {
	changed, err := modern.EnsureSerialPort(cfg, cfg.Path() != "")
	if err != nil {
		return nil, err
	}
	if changed {
		logger.Info("serial port detected", zap.String("port", cfg.Serial.Port))
	}
	opts := []modern.Option{
		modern.WithTimeout(cfg.Serial.Timeout),
		modern.WithObserver(observer()),
	}
	var s *modern.Session
	err = modern.Retry(ctx, cfg.Retries, func() error {
		var err error
		if cfg.Model != "" {
			s, err = modern.Open(cfg.Factory(), cfg.Serial.Port, cfg.Model, opts...)
			return err
		}
		detectOpts := []modern.DetectOption{modern.WithSessionOptions(opts...)}
		if cfg.Fallback != "" {
			detectOpts = append(detectOpts, modern.WithFallback(cfg.Fallback))
		}
		s, err = modern.Detect(cfg.Factory(), cfg.Serial.Port, detectOpts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("connected", zap.String("port", cfg.Serial.Port), zap.String("model", s.Profile().Name))
	return s, nil
}

// withSession runs fn against a freshly connected session and closes it.
// Timeouts are retried up to the configured number of attempts.
func withSession(cmd *cobra.Command, fn func(s *modern.Session) error) error {
	s, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()
	return modern.Retry(cmd.Context(), cfg.Retries, func() error { return fn(s) })
}

func formatMillis(v int) string {
	return fmt.Sprintf("%d.%03d", v/1000, v%1000)
}
