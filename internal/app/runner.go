package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Dvl-es/tradevault/internal/cache"
	"github.com/Dvl-es/tradevault/internal/chain"
	"github.com/Dvl-es/tradevault/internal/chain/signer"
	"github.com/Dvl-es/tradevault/internal/config"
	clierr "github.com/Dvl-es/tradevault/internal/errors"
	"github.com/Dvl-es/tradevault/internal/httpx"
	applog "github.com/Dvl-es/tradevault/internal/log"
	"github.com/Dvl-es/tradevault/internal/metrics"
	"github.com/Dvl-es/tradevault/internal/quote"
	"github.com/Dvl-es/tradevault/internal/version"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{stdout: stdout, stderr: stderr}
}

type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings
	logger   *zap.Logger

	store      *chain.Store
	interactor *chain.Interactor
	quoteCache *cache.Store
	quotes     *quote.Client
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r, logger: applog.NewNop()}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	state.shutdown()
	if err == nil {
		return 0
	}
	fmt.Fprintf(r.stderr, "error: %v\n", err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Orchestration client for the Trade vault contract",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings

			logger, err := applog.New(settings.LogLevel, settings.LogEncoding)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "configure logging", err)
			}
			s.logger = logger

			if settings.MetricsAddr != "" {
				go func() {
					if err := metrics.Serve(settings.MetricsAddr); err != nil {
						logger.Warn("metrics server stopped", zap.Error(err))
					}
				}()
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&s.flags.ConfigPath, "config", "", "path to config yaml")
	flags.Int64Var(&s.flags.Chain, "chain", 0, "chain id to operate on")
	flags.BoolVar(&s.flags.JSON, "json", false, "render results as JSON")
	flags.StringVar(&s.flags.Timeout, "timeout", "", "confirmation timeout (e.g. 30s)")
	flags.BoolVar(&s.flags.NoStore, "no-store", false, "disable the submission journal")

	cmd.AddCommand(
		s.newSwapCommand(),
		s.newMultiSwapCommand(),
		s.newQuoteCommand(),
		s.newAaveCommand(),
		s.newBalancesCommand(),
		s.newGmxCommand(),
		s.newManagerCommand(),
		s.newSubmissionsCommand(),
		s.newVersionCommand(),
	)
	return cmd
}

// ensureInteractor dials the configured chains on first use so read-only
// commands (submissions, version) never touch the network.
func (s *runtimeState) ensureInteractor(cmd *cobra.Command) (*chain.Interactor, error) {
	if s.interactor != nil {
		return s.interactor, nil
	}
	if len(s.settings.Chains) == 0 {
		return nil, clierr.New(clierr.CodeUsage, "no chains configured")
	}
	txSigner, err := signer.NewLocalSignerFromEnv()
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "load transaction signer", err)
	}
	trigger, err := chain.NewTriggerSignerFromEnv()
	if err != nil {
		// Lending and margin commands work without a trigger key; swap
		// commands check for it explicitly.
		trigger = nil
		s.logger.Debug("trigger signer unavailable", zap.Error(err))
	}
	store, err := s.ensureStore()
	if err != nil {
		return nil, err
	}
	interactor, err := chain.NewInteractor(cmd.Context(), s.settings, txSigner, trigger, store, s.logger)
	if err != nil {
		return nil, err
	}
	s.interactor = interactor
	return interactor, nil
}

func (s *runtimeState) ensureStore() (*chain.Store, error) {
	if !s.settings.StoreEnabled {
		return nil, nil
	}
	if s.store != nil {
		return s.store, nil
	}
	store, err := chain.OpenStore(s.settings.StorePath, s.settings.StoreLockPath)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open submission store", err)
	}
	s.store = store
	return store, nil
}

// ensureQuotes builds the aggregator client on first use. The estimate
// cache is skipped under --no-store so nothing is written to disk.
func (s *runtimeState) ensureQuotes() *quote.Client {
	if s.quotes != nil {
		return s.quotes
	}
	if s.settings.StoreEnabled && s.quoteCache == nil {
		store, err := cache.Open(
			filepath.Join(s.settings.QuoteCacheDir, "quotes.db"),
			filepath.Join(s.settings.QuoteCacheDir, "quotes.lock"),
		)
		if err != nil {
			s.logger.Warn("quote cache unavailable", zap.Error(err))
		} else {
			s.quoteCache = store
		}
	}
	s.quotes = quote.New(
		httpx.New(10*time.Second, 2),
		s.settings.QuoteBaseURL,
		os.Getenv(quote.EnvAPIKey),
		s.quoteCache,
	)
	return s.quotes
}

func (s *runtimeState) chainID() int64 {
	if s.flags.Chain != 0 {
		return s.flags.Chain
	}
	return s.settings.DefaultChain
}

func (s *runtimeState) shutdown() {
	if s.interactor != nil {
		s.interactor.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.quoteCache != nil {
		_ = s.quoteCache.Close()
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
}

func (s *runtimeState) render(v interface{}) error {
	enc := json.NewEncoder(s.runner.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (s *runtimeState) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(s.runner.stdout, version.Long())
			return nil
		},
	}
}
