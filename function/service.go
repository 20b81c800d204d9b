// Package function orchestrates the lifecycle of user-defined functions:
// validation on the way in, immutable version history, sandboxed execution,
// and the append-only execution ledger.
package function

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fnbox/fault"
	"fnbox/safety"
	"fnbox/sandbox"
	"fnbox/schema"
	"fnbox/store"
)

// Repository is the persistence capability the orchestrator needs. The
// concrete storage technology behind it is irrelevant here.
type Repository interface {
	CreateDefinition(ctx context.Context, def *store.FunctionDefinition, code string) (*store.FunctionVersion, error)
	ActiveByName(ctx context.Context, name string) (*store.FunctionDefinition, error)
	ByName(ctx context.Context, name string) (*store.FunctionDefinition, error)
	ListActive(ctx context.Context) ([]store.FunctionDefinition, error)
	SaveDefinition(ctx context.Context, def *store.FunctionDefinition) error
	AppendVersion(ctx context.Context, definitionID uint, code string) (*store.FunctionVersion, error)
	LatestVersion(ctx context.Context, definitionID uint) (*store.FunctionVersion, error)
	Versions(ctx context.Context, definitionID uint) ([]store.FunctionVersion, error)
	AppendExecution(ctx context.Context, exec *store.FunctionExecution) error
	Executions(ctx context.Context, definitionID uint) ([]store.FunctionExecution, error)
}

// Executor runs validated code under time and memory budgets.
type Executor interface {
	Run(ctx context.Context, code string, params map[string]any) sandbox.Result
}

// Service is the version and execution orchestrator.
type Service struct {
	repo   Repository
	runner Executor
	log    *zap.Logger
}

// NewService wires the orchestrator. A nil logger disables logging.
func NewService(repo Repository, runner Executor, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, runner: runner, log: log}
}

// UpdateRequest carries the optional fields of an update. Nil fields are
// left unchanged; a new code snapshot appends a version.
type UpdateRequest struct {
	Code        *string
	Description *string
	Schema      map[string]any
}

// Register validates code and schema, then atomically creates the
// definition with version 1. Nothing is persisted for rejected code.
func (s *Service) Register(ctx context.Context, name, code, description string, paramSchema map[string]any) (*store.FunctionDefinition, error) {
	if name == "" {
		return nil, fault.New(fault.ParameterValidationFailed, "function name is required")
	}
	if err := safety.Validate(code); err != nil {
		return nil, err
	}
	if paramSchema != nil {
		if err := schema.Validate(paramSchema); err != nil {
			return nil, err
		}
	}

	def := &store.FunctionDefinition{
		Name:        name,
		Description: description,
		Schema:      paramSchema,
	}
	if _, err := s.repo.CreateDefinition(ctx, def, code); err != nil {
		return nil, err
	}

	s.log.Info("function registered", zap.String("name", name), zap.Uint("id", def.ID))
	return def, nil
}

// Update applies edits to an active definition. New code is validated
// exactly as in Register and appended as the next version; description and
// schema edits apply independently of a code change.
func (s *Service) Update(ctx context.Context, name string, req UpdateRequest) (*store.FunctionDefinition, error) {
	def, err := s.repo.ActiveByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if req.Code != nil {
		if err := safety.Validate(*req.Code); err != nil {
			return nil, err
		}
	}
	if req.Schema != nil {
		if err := schema.Validate(req.Schema); err != nil {
			return nil, err
		}
	}

	if req.Code != nil {
		version, err := s.repo.AppendVersion(ctx, def.ID, *req.Code)
		if err != nil {
			return nil, err
		}
		s.log.Info("version appended",
			zap.String("name", name),
			zap.Int("version", version.VersionNumber))
	}

	changed := false
	if req.Description != nil {
		def.Description = *req.Description
		changed = true
	}
	if req.Schema != nil {
		def.Schema = req.Schema
		changed = true
	}
	if changed {
		if err := s.repo.SaveDefinition(ctx, def); err != nil {
			return nil, err
		}
	}

	return def, nil
}

// Deactivate flips the definition to disabled. One-way for execution:
// versions and executions stay queryable, Execute reports not-found.
func (s *Service) Deactivate(ctx context.Context, name string) error {
	def, err := s.repo.ActiveByName(ctx, name)
	if err != nil {
		return err
	}
	def.Status = store.StatusDisabled
	if err := s.repo.SaveDefinition(ctx, def); err != nil {
		return err
	}
	s.log.Info("function deactivated", zap.String("name", name))
	return nil
}

// MarkError sets the administrative error status on an active definition.
func (s *Service) MarkError(ctx context.Context, name string) error {
	def, err := s.repo.ActiveByName(ctx, name)
	if err != nil {
		return err
	}
	def.Status = store.StatusError
	return s.repo.SaveDefinition(ctx, def)
}

// Execute runs the latest version of an active function against the given
// parameters. The version number is snapshotted before the run and recorded
// in the ledger, so a concurrent publish cannot skew the record. Every
// sandbox invocation appends exactly one ledger row, whatever its outcome;
// parameter rejections happen before the sandbox and leave no row.
func (s *Service) Execute(ctx context.Context, name string, params map[string]any) (*store.FunctionExecution, error) {
	def, err := s.repo.ActiveByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if def.Status != store.StatusActive {
		return nil, fault.New(fault.NotFound, "function %q not found", name)
	}

	version, err := s.repo.LatestVersion(ctx, def.ID)
	if err != nil {
		return nil, err
	}

	if err := schema.ValidateParams(def.Schema, params); err != nil {
		return nil, err
	}

	started := time.Now().UTC()
	res := s.runner.Run(ctx, version.Code, params)

	exec := &store.FunctionExecution{
		ID:            uuid.New().String(),
		DefinitionID:  def.ID,
		VersionNumber: version.VersionNumber,
		Parameters:    params,
		Status:        string(res.Status),
		DurationMs:    res.Duration.Milliseconds(),
		PeakMemory:    res.PeakMemory,
		StartedAt:     started,
		FinishedAt:    started.Add(res.Duration),
	}
	if res.Status == sandbox.StatusSuccess {
		encoded, merr := json.Marshal(res.Value)
		if merr != nil {
			exec.Status = store.ExecError
			exec.ErrorKind = string(fault.ExecutionError)
			exec.ErrorMessage = "result not serializable: " + merr.Error()
		} else {
			text := string(encoded)
			exec.Result = &text
		}
	} else {
		exec.ErrorKind = string(res.ErrorKind)
		exec.ErrorMessage = res.ErrorMsg
	}

	if err := s.repo.AppendExecution(ctx, exec); err != nil {
		// The outcome still reaches the caller; the gap is loud, not silent.
		s.log.Error("execution ledger append failed",
			zap.String("name", name),
			zap.String("execution_id", exec.ID),
			zap.Error(err))
	}

	s.log.Info("function executed",
		zap.String("name", name),
		zap.Int("version", version.VersionNumber),
		zap.String("status", exec.Status),
		zap.Int64("duration_ms", exec.DurationMs),
		zap.Int64("peak_memory", exec.PeakMemory))

	return exec, nil
}

// Get returns the active definition for a name.
func (s *Service) Get(ctx context.Context, name string) (*store.FunctionDefinition, error) {
	return s.repo.ActiveByName(ctx, name)
}

// List returns all active definitions.
func (s *Service) List(ctx context.Context) ([]store.FunctionDefinition, error) {
	return s.repo.ListActive(ctx)
}

// ListVersions returns a function's versions, newest first. Works for
// deactivated definitions too.
func (s *Service) ListVersions(ctx context.Context, name string) ([]store.FunctionVersion, error) {
	def, err := s.repo.ByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.repo.Versions(ctx, def.ID)
}

// ListExecutions returns a function's execution ledger, newest first.
// Works for deactivated definitions too.
func (s *Service) ListExecutions(ctx context.Context, name string) ([]store.FunctionExecution, error) {
	def, err := s.repo.ByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.repo.Executions(ctx, def.ID)
}
