package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/sqlscript/internal/logging"
	"github.com/google/uuid"
)

// LoadFunc parses a tabular source into a Table. Implementations return a
// *SourceReadError for anything they cannot parse.
type LoadFunc func(r io.Reader, fileName string) (*Table, error)

// ScriptStore persists generated scripts.
type ScriptStore interface {
	// Save stores body under a.Name, replacing any previous script with that
	// name, and returns a with Size filled in.
	Save(ctx context.Context, a Artifact, body string) (Artifact, error)
	// Open returns the stored body. Returns ErrArtifactNotFound for unknown names.
	Open(ctx context.Context, name string) (io.ReadCloser, Artifact, error)
	// List returns up to limit artifacts, newest first.
	List(ctx context.Context, limit int) ([]Artifact, error)
}

// ServiceConfig holds conversion defaults.
type ServiceConfig struct {
	BatchSize    int  // rows per generator batch
	PreviewLimit int  // statements returned in Result.Preview
	DefaultMode  Mode // used when a request leaves Mode unset
}

// Service runs conversions: load, project, generate, persist.
type Service struct {
	store   ScriptStore
	load    LoadFunc
	limiter *Limiter
	cfg     ServiceConfig
}

// NewService wires a service. A nil limiter means conversions are unbounded.
func NewService(store ScriptStore, load LoadFunc, limiter *Limiter, cfg ServiceConfig) *Service {
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = DefaultPreviewLimit
	}
	return &Service{
		store:   store,
		load:    load,
		limiter: limiter,
		cfg:     cfg,
	}
}

// Request describes one conversion.
type Request struct {
	FileName   string
	Source     io.Reader
	TableName  string
	Columns    []string
	Mode       Mode   // ModeUnset uses ServiceConfig.DefaultMode
	BatchSize  int    // 0 uses ServiceConfig.BatchSize
	OutputName string // empty uses DefaultArtifactName(TableName)
}

// Result is what the caller shows after a conversion.
type Result struct {
	Artifact Artifact      `json:"artifact"`
	Total    int           `json:"total_statements"`
	Preview  []string      `json:"preview"`
	Duration time.Duration `json:"-"`
}

// Convert runs the full pipeline for req. Nothing is stored unless every
// step succeeds.
func (s *Service) Convert(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	log := logging.WithFields(ctx, "file", req.FileName, "table", req.TableName)

	opts, err := s.options(req)
	if err != nil {
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			log.Warn("conversion slot unavailable", "error", err)
			return nil, err
		}
		defer s.limiter.Release()
	}

	table, err := s.load(req.Source, req.FileName)
	if err != nil {
		log.Info("source rejected", "error", err)
		return nil, err
	}
	log.Debug("source loaded", "rows", table.Len(), "columns", len(table.Columns))

	projected, err := Project(table, opts.Columns)
	if err != nil {
		log.Info("column validation failed", "error", err)
		return nil, err
	}

	script, err := GenerateContext(ctx, projected, opts)
	if err != nil {
		return nil, fmt.Errorf("generate statements: %w", err)
	}

	name := req.OutputName
	if name == "" {
		name = DefaultArtifactName(opts.TableName)
	}

	artifact, err := s.store.Save(ctx, Artifact{
		ID:         uuid.New().String(),
		Name:       name,
		TableName:  opts.TableName,
		Mode:       opts.Mode,
		Statements: script.Count(),
		CreatedAt:  time.Now().UTC(),
	}, script.Text())
	if err != nil {
		return nil, fmt.Errorf("save script: %w", err)
	}

	result := &Result{
		Artifact: artifact,
		Total:    script.Count(),
		Preview:  script.Preview(s.cfg.PreviewLimit),
		Duration: time.Since(start),
	}

	log.Info("script generated",
		"artifact", artifact.Name,
		"mode", opts.Mode,
		"statements", result.Total,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// options resolves request fields against the service defaults and checks
// them before any input is read.
func (s *Service) options(req Request) (Options, error) {
	mode := req.Mode
	if mode == ModeUnset {
		mode = s.cfg.DefaultMode
	}
	batch := req.BatchSize
	if batch == 0 {
		batch = s.cfg.BatchSize
	}

	opts := Options{
		TableName: req.TableName,
		Columns:   req.Columns,
		BatchSize: batch,
		Mode:      mode,
	}
	if _, err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Open returns a stored script by name.
func (s *Service) Open(ctx context.Context, name string) (io.ReadCloser, Artifact, error) {
	return s.store.Open(ctx, name)
}

// Recent lists the newest stored scripts.
func (s *Service) Recent(ctx context.Context, limit int) ([]Artifact, error) {
	return s.store.List(ctx, limit)
}

// LimiterStatus reports conversion slot usage. Zero when unbounded.
func (s *Service) LimiterStatus() LimiterStatus {
	if s.limiter == nil {
		return LimiterStatus{}
	}
	return s.limiter.Status()
}

// WaitForConversions blocks until in-flight conversions finish or ctx ends.
func (s *Service) WaitForConversions(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.WaitForDrain(ctx)
}
