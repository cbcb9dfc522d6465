package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dmagro/eth-block-locator/internal/chain"
	"github.com/dmagro/eth-block-locator/internal/config"
	"github.com/dmagro/eth-block-locator/internal/metrics"
	"github.com/dmagro/eth-block-locator/internal/output"
	"github.com/dmagro/eth-block-locator/internal/provider"
	"github.com/dmagro/eth-block-locator/internal/rpc"
)

// session is the state of one command run: the chosen provider's reader, the
// printer and the metrics collected along the way.
type session struct {
	flags    *globalFlags
	cfg      *config.Config
	metrics  *metrics.Collector
	pool     *rpc.ClientPool
	provider string
	reader   *chain.Reader
	out      *output.Printer
	errOut   *output.Printer
}

func newLogger(cmd *cobra.Command, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		if l, err := zerolog.ParseLevel(env); err == nil {
			level = l
		}
	}
	w := zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// openSession loads configuration, picks a provider and returns a context
// carrying the logger.
func openSession(cmd *cobra.Command, g *globalFlags) (context.Context, *session, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, nil, err
	}
	log := newLogger(cmd, g.verbose)
	ctx := log.WithContext(cmd.Context())

	if g.jsonOut {
		output.DisableColors()
	}

	// An explicit --rpc-url or an untouched --config tolerates a missing file.
	optional := g.rpcURL != "" || !cmd.Flags().Changed("config")
	cfg, err := config.Load(g.configPath, optional, log)
	if err != nil {
		return nil, nil, err
	}

	s := &session{
		flags:   g,
		cfg:     cfg,
		metrics: metrics.NewCollector(),
		pool:    rpc.NewClientPool(),
		out:     output.New(cmd.OutOrStdout(), g.jsonOut),
		errOut:  output.New(cmd.ErrOrStderr(), g.jsonOut),
	}
	if g.reportDir != "" {
		s.out.SaveReports(g.reportDir, cmd.ErrOrStderr())
	}
	if err := s.connect(ctx); err != nil {
		s.pool.Close()
		return nil, nil, err
	}
	return ctx, s, nil
}

func (s *session) dial(ctx context.Context, p config.Provider) (chain.Client, error) {
	return s.pool.GetOrDial(ctx, s.cfg.ClientConfig(p, s.metrics))
}

func (s *session) connect(ctx context.Context) error {
	var (
		p   config.Provider
		err error
	)
	switch {
	case s.flags.providerName != "":
		var ok bool
		if p, ok = s.cfg.Find(s.flags.providerName); !ok {
			return fmt.Errorf("provider %q not found in %s", s.flags.providerName, s.flags.configPath)
		}
	case s.flags.rpcURL != "":
		if p, err = s.cfg.AdHoc(s.flags.rpcURL); err != nil {
			return fmt.Errorf("--rpc-url: %w", err)
		}
	case len(s.cfg.Providers) == 0:
		return fmt.Errorf("no providers configured: pass --rpc-url or add providers to %s", s.flags.configPath)
	case len(s.cfg.Providers) == 1:
		p = s.cfg.Providers[0]
	default:
		best, err := provider.Select(ctx, s.cfg.Providers, s.dial, provider.DefaultMaxLag)
		if err != nil {
			return err
		}
		s.provider = best.Provider.Name
		s.reader = chain.NewReader(best.Client)
		return nil
	}

	client, err := s.dial(ctx, p)
	if err != nil {
		return err
	}
	s.provider = p.Name
	s.reader = chain.NewReader(client)
	zerolog.Ctx(ctx).Debug().Str("provider", p.Name).Str("transport", p.Transport).Msg("using provider")
	return nil
}

// close releases connections and emits the statistics and metrics requested
// on the command line.
func (s *session) close() error {
	s.pool.Close()

	var errs []error
	if s.flags.stats {
		errs = append(errs, s.errOut.Stats(s.metrics.Summary()))
	}
	if s.flags.metricsOut != "" {
		if err := s.metrics.WriteTextfile(s.flags.metricsOut); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}

// withSession runs fn inside an open session and folds the close error into
// the result.
func withSession(cmd *cobra.Command, g *globalFlags, fn func(ctx context.Context, s *session) error) (err error) {
	ctx, s, err := openSession(cmd, g)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.close())
	}()
	return fn(ctx, s)
}
