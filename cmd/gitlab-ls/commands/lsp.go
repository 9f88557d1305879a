package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/gitlab-ls/config"
	"github.com/teranos/gitlab-ls/errors"
	"github.com/teranos/gitlab-ls/gitlab"
	"github.com/teranos/gitlab-ls/logger"
	"github.com/teranos/gitlab-ls/metrics"
	"github.com/teranos/gitlab-ls/resource"
	"github.com/teranos/gitlab-ls/server"
)

const shutdownTimeout = 5 * time.Second

// LspCmd runs the language server.
var LspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Run the language server",
	Long: `Run the language server.

By default the server speaks LSP over stdin/stdout, which is what editors
expect when they launch it. With --websocket it instead listens for WebSocket
connections, one session per connection, each message carrying one JSON-RPC
object.

Logs are written to stderr. Configuration files are watched and the cache TTL
and candidate limit are applied to running sessions when they change.`,
	Args: cobra.NoArgs,
	RunE: runLSP,
}

var (
	lspWebSocketAddr string
	lspMetricsAddr   string
)

func init() {
	LspCmd.Flags().StringVar(&lspWebSocketAddr, "websocket", "", "Listen for WebSocket connections on this address instead of using stdio")
	LspCmd.Flags().StringVar(&lspMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metrics.addr)")
}

func runLSP(cmd *cobra.Command, args []string) error {
	cfg, files, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Log.JSON && !cmd.Flags().Changed("log-json") {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if err := logger.Initialize(logger.Options{JSON: true, Verbosity: verbosity, Output: os.Stderr}); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
	}
	log := logger.ComponentLogger("lsp")

	fetcher, err := gitlab.FromConfig(cfg.GitLab, logger.ComponentLogger("gitlab"))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	sessions := &sessionSet{
		cfg:     cfg,
		fetcher: fetcher,
		metrics: metrics.New(reg),
		logger:  log,
	}

	if len(files) > 0 {
		watcher, err := config.NewWatcher(files, logger.ComponentLogger("config"))
		if err != nil {
			log.Warnw("Config hot reload disabled", logger.FieldError, err)
		} else {
			watcher.OnReload(func(next *config.Config) error {
				sessions.apply(next)
				return nil
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	metricsAddr := lspMetricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		g.Go(func() error {
			log.Infow("Serving metrics", logger.FieldAddress, metricsAddr)
			return serveHTTP(gctx, &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second})
		})
	}

	exitCode := 0
	if lspWebSocketAddr != "" {
		handler := server.WebSocketHandler(gctx, sessions.newSession, log)
		g.Go(func() error {
			log.Infow("Listening for WebSocket connections", logger.FieldAddress, lspWebSocketAddr)
			return serveHTTP(gctx, &http.Server{Addr: lspWebSocketAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second})
		})
	} else {
		session := sessions.newSession()
		g.Go(func() error {
			// metrics stop with the stdio session
			defer cancel()
			log.Infow("Serving on stdio", logger.FieldSession, session.ID())
			server.ServeStream(gctx, session, server.StdioReadWriteCloser{ReadCloser: os.Stdin, WriteCloser: os.Stdout}, log)
			exitCode = session.ExitCode()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if exitCode != 0 {
		return &ExitError{Code: exitCode}
	}
	return nil
}

// serveHTTP runs srv until ctx is cancelled, then shuts it down.
func serveHTTP(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrapf(err, "failed to serve on %s", srv.Addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrapf(err, "failed to shut down %s", srv.Addr)
		}
		return nil
	}
}

// sessionSet creates sessions and pushes reloaded settings to the live ones.
type sessionSet struct {
	mu       sync.Mutex
	cfg      *config.Config
	sessions []*server.Session

	fetcher resource.Fetcher
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger
}

func (s *sessionSet) newSession() *server.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := server.NewSession(server.Options{
		Config:  s.cfg,
		Fetcher: s.fetcher,
		Logger:  s.logger,
		Metrics: s.metrics,
	})
	s.prune()
	s.sessions = append(s.sessions, session)
	return session
}

// apply updates the settings that take effect without a restart. Fetcher
// settings (URL, token, rate limit) only apply to new processes.
func (s *sessionSet) apply(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.prune()
	for _, session := range s.sessions {
		session.SetCacheTTL(cfg.Cache.TTL())
		session.SetMaxCandidates(cfg.Completion.MaxCandidates)
	}
	s.logger.Infow("Configuration reloaded",
		"sessions", len(s.sessions),
		"ttl", cfg.Cache.TTL(),
		"max_candidates", cfg.Completion.MaxCandidates)
}

func (s *sessionSet) prune() {
	live := s.sessions[:0]
	for _, session := range s.sessions {
		if session.State() != server.StateStopped {
			live = append(live, session)
		}
	}
	s.sessions = live
}

func (s *sessionSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
