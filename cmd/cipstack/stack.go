package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tturner/cipstack/internal/capture"
	"github.com/tturner/cipstack/internal/cip/connection"
	"github.com/tturner/cipstack/internal/config"
	"github.com/tturner/cipstack/internal/enip"
	cipErrors "github.com/tturner/cipstack/internal/errors"
	"github.com/tturner/cipstack/internal/logging"
	"github.com/tturner/cipstack/internal/metrics"
)

// globalFlags override the configuration file for one run.
type globalFlags struct {
	configPath string
	ip         string
	port       int
	connected  bool
	timeoutMs  int
	routeHex   string
	logLevel   string
	logFormat  string
	logFile    string
	capture    string
	metrics    string
}

func (f *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "YAML or TOML configuration file")
	pf.StringVar(&f.ip, "ip", "", "Target IP address")
	pf.IntVar(&f.port, "port", 0, "Target TCP port (default 44818)")
	pf.BoolVar(&f.connected, "connected", false, "Send requests over a CIP connection (Forward Open)")
	pf.IntVar(&f.timeoutMs, "timeout-ms", 0, "Per-operation timeout in milliseconds")
	pf.StringVar(&f.routeHex, "route", "", "Padded port-segment route to the target as hex (e.g. 0100 for backplane slot 0)")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: silent, error, info, verbose, debug")
	pf.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&f.logFile, "log-file", "", "Also write log lines to this file")
	pf.StringVar(&f.capture, "capture", "", "Record the session to this pcap file")
	pf.StringVar(&f.metrics, "metrics-file", "", "Write per-request metrics to this CSV (or .jsonl) file and print a summary")
}

// resolve loads the configuration file, if any, and applies flag overrides.
func (f *globalFlags) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.CreateDefaultConfig()
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath, false)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	changed := func(name string) bool { return cmd.Flags().Changed(name) }
	if changed("ip") {
		cfg.Target.IP = f.ip
	}
	if changed("port") {
		cfg.Target.Port = f.port
	}
	if changed("connected") {
		cfg.Target.Connected = f.connected
	}
	if changed("timeout-ms") {
		cfg.Target.TimeoutMs = f.timeoutMs
	}
	if changed("route") {
		cfg.Connection.RouteHex = f.routeHex
	}
	if changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
	if changed("log-file") {
		cfg.Logging.File = f.logFile
	}
	if changed("capture") {
		cfg.Capture.File = f.capture
	}
	if changed("metrics-file") {
		cfg.Metrics.File = f.metrics
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// stack is a registered session with a connection layer on top. Commands
// bind their own upper layer to conn.
type stack struct {
	cfg      *config.Config
	log      *logging.Logger
	recorder *capture.Recorder
	metrics  *metrics.Sink
	writer   *metrics.Writer
	session  *enip.Session
	conn     *connection.Connection
}

func openStack(ctx context.Context, cmd *cobra.Command, flags *globalFlags) (*stack, error) {
	cfg, err := flags.resolve(cmd)
	if err != nil {
		return nil, err
	}
	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger, err := logging.NewLoggerWithOptions(level, cfg.Logging.File, cfg.Logging.Format, 1)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	s := &stack{cfg: cfg, log: logger}
	logger.LogSession(cfg.Target.IP, cfg.Target.Port, cfg.Target.Connected, flags.configPath)

	var opts enip.Options
	opts.DialTimeout = cfg.Timeout()
	if cfg.Capture.File != "" {
		if s.recorder, err = capture.Create(cfg.Capture.File); err != nil {
			s.close(ctx)
			return nil, err
		}
		opts.Recorder = s.recorder
	}

	if cfg.Metrics.File != "" {
		if s.writer, err = metrics.NewWriter(cfg.Metrics.File); err != nil {
			s.close(ctx)
			return nil, err
		}
		s.metrics = metrics.NewSink(s.writer)
	}

	if s.session, err = enip.Dial(ctx, cfg.Address(), opts, logger); err != nil {
		s.close(ctx)
		return nil, err
	}
	if s.conn, err = connection.New(s.session, cfg.ToConnectionOptions(), logger); err != nil {
		s.close(ctx)
		return nil, err
	}
	return s, nil
}

// close disconnects an established connection and releases everything the
// stack opened.
func (s *stack) close(ctx context.Context) {
	if s.conn != nil {
		if s.conn.State() == connection.StateEstablished {
			if err := s.conn.Disconnect(ctx); err != nil {
				s.log.Info("Forward Close failed: %v", err)
			}
		}
		s.conn.Destroy()
	}
	if s.session != nil {
		s.session.Close()
	}
	if s.recorder != nil {
		s.log.Verbose("Captured %d packets to %s", s.recorder.Packets(), s.cfg.Capture.File)
		s.recorder.Close()
	}
	if s.writer != nil {
		s.writer.Close()
	}
	s.log.Close()
}

// printMetrics writes the metrics summary when metrics are enabled.
func (s *stack) printMetrics(w io.Writer) {
	if s.metrics == nil {
		return
	}
	renderSection(w, "Metrics")
	fmt.Fprint(w, metrics.FormatSummary(s.metrics.Summary()))
}

// operationContext bounds one command by the configured timeout.
func operationContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	if cfg.Timeout() <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), cfg.Timeout())
}

// wrapOperationError adds a hint to device and protocol failures. Errors that
// already carry one pass through.
func wrapOperationError(op string, err error) error {
	if err == nil {
		return nil
	}
	var friendly cipErrors.UserFriendlyError
	if cipErrors.As(err, &friendly) {
		return err
	}
	return cipErrors.WrapCIPError(err, op)
}

func parseUint(input string, bits int) (uint64, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(input), 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value '%s'", input)
	}
	return value, nil
}
