package internal

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/starford/vssflow/internal/api"
	"github.com/starford/vssflow/internal/drafts"
	"github.com/starford/vssflow/internal/editor"
	"github.com/starford/vssflow/internal/metrics"
	"github.com/starford/vssflow/internal/scriptstore"
	"github.com/starford/vssflow/internal/sse"
	"github.com/starford/vssflow/internal/storage"
	"github.com/starford/vssflow/internal/vssapi"
)

// services holds the components shared by the HTTP and MCP front ends.
type services struct {
	metrics  *metrics.Metrics
	broker   *sse.Broker
	client   *vssapi.Client
	sessions *editor.Manager
	draftFS  storage.Provider
	drafts   *drafts.Service
	mockDB   *scriptstore.DB
}

// draftStore returns the drafts service as an api.DraftStore, or a nil
// interface when drafts are disabled.
func (s *services) draftStore() api.DraftStore {
	if s.drafts == nil {
		return nil
	}
	return s.drafts
}

func (s *services) close() {
	s.broker.Close()
	if s.mockDB != nil {
		_ = s.mockDB.Close()
	}
}

// backendURL resolves the scripts API base URL. With the mock backend
// enabled and no explicit URL, the server calls its own /mock-api mount.
func backendURL(cfg *Config) string {
	if cfg.Backend.BaseURL == "" && cfg.MockBackend.Enabled {
		return fmt.Sprintf("http://127.0.0.1:%d/mock-api", cfg.App.HTTP.Port)
	}
	return cfg.Backend.BaseURL
}

func newServices(cfg *Config, logger *slog.Logger) (*services, error) {
	s := &services{}
	if cfg.Metrics.Enabled {
		s.metrics = metrics.New()
	}
	s.broker = sse.NewBroker(cfg.Sessions.GraphThrottle)

	if cfg.MockBackend.Enabled {
		db, err := scriptstore.Open(cfg.MockBackend.SQLitePath)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("init mock backend: %w", err)
		}
		s.mockDB = db
	}

	clientOpts := []vssapi.Option{
		vssapi.WithLogger(logger),
		vssapi.WithToken(cfg.Backend.Token),
	}
	if cfg.Backend.Timeout > 0 {
		clientOpts = append(clientOpts, vssapi.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}))
	}
	s.client = vssapi.New(backendURL(cfg), clientOpts...)

	managerOpts := []editor.Option{
		editor.WithIdleTTL(cfg.Sessions.IdleTTL),
		editor.WithEvents(s.broker),
		editor.WithMetrics(s.metrics),
		editor.WithLogger(logger),
	}

	if cfg.Drafts.Enabled() {
		if err := os.MkdirAll(cfg.Drafts.Path, 0o755); err != nil {
			s.close()
			return nil, fmt.Errorf("create drafts dir: %w", err)
		}
		fs, err := storage.NewFS(cfg.Drafts.Path)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("init drafts storage: %w", err)
		}
		s.draftFS = fs
		s.drafts = drafts.New(fs, logger)
		managerOpts = append(managerOpts, editor.WithDrafts(s.drafts))
	}

	s.sessions = editor.NewManager(s.client, managerOpts...)

	logger.Info("Services initialised",
		slog.String("backend_url", backendURL(cfg)),
		slog.Bool("mock_backend", cfg.MockBackend.Enabled),
		slog.String("drafts_path", cfg.Drafts.Path),
		slog.Duration("session_idle_ttl", cfg.Sessions.IdleTTL),
		slog.Time("started_at", time.Now()))
	return s, nil
}
