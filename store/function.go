package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"fnbox/fault"
)

// CreateDefinition atomically creates a definition and its first version as
// one unit. Fails with Conflict if the name already belongs to an active
// definition; no definition ever exists without at least one version. The
// unique index on ActiveName enforces the rule for concurrent registrations
// that both pass the read; the duplicate-key error maps to the same
// Conflict the read reports.
func (s *Store) CreateDefinition(ctx context.Context, def *FunctionDefinition, code string) (*FunctionVersion, error) {
	var version *FunctionVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&FunctionDefinition{}).
			Where("name = ? AND status = ?", def.Name, StatusActive).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fault.New(fault.Conflict, "function %q already exists", def.Name)
		}

		def.Status = StatusActive
		def.ActiveName = &def.Name
		if err := tx.Create(def).Error; err != nil {
			return err
		}

		version = &FunctionVersion{
			DefinitionID:  def.ID,
			VersionNumber: 1,
			Code:          code,
		}
		return tx.Create(version).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fault.New(fault.Conflict, "function %q already exists", def.Name)
	}
	if err != nil {
		return nil, err
	}
	return version, nil
}

// ActiveByName resolves the definition holding a name, skipping disabled
// ones. Error-status definitions still resolve; the orchestrator decides
// whether they may run.
func (s *Store) ActiveByName(ctx context.Context, name string) (*FunctionDefinition, error) {
	var def FunctionDefinition
	err := s.db.WithContext(ctx).
		Where("name = ? AND status <> ?", name, StatusDisabled).
		Order("updated_at DESC").
		First(&def).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.New(fault.NotFound, "function %q not found", name)
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// ByName resolves a definition regardless of status, preferring an active
// one so deactivated histories stay queryable.
func (s *Store) ByName(ctx context.Context, name string) (*FunctionDefinition, error) {
	var def FunctionDefinition
	err := s.db.WithContext(ctx).
		Where("name = ?", name).
		Order("CASE WHEN status = 'active' THEN 0 ELSE 1 END, updated_at DESC").
		First(&def).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.New(fault.NotFound, "function %q not found", name)
	}
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// ListActive returns all active definitions, newest first.
func (s *Store) ListActive(ctx context.Context) ([]FunctionDefinition, error) {
	var defs []FunctionDefinition
	err := s.db.WithContext(ctx).
		Where("status <> ?", StatusDisabled).
		Order("created_at DESC").
		Find(&defs).Error
	return defs, err
}

// SaveDefinition persists description/schema/status edits, keeping the
// ActiveName mirror in step with the status. Versions are never touched
// here.
func (s *Store) SaveDefinition(ctx context.Context, def *FunctionDefinition) error {
	if def.Status == StatusActive {
		def.ActiveName = &def.Name
	} else {
		def.ActiveName = nil
	}
	return s.db.WithContext(ctx).Save(def).Error
}

// AppendVersion creates the next version for a definition. The number is
// max(existing)+1 computed inside the transaction; the unique index on
// (definition_id, version_number) backstops concurrent appends.
func (s *Store) AppendVersion(ctx context.Context, definitionID uint, code string) (*FunctionVersion, error) {
	var version *FunctionVersion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var highest int64
		if err := tx.Model(&FunctionVersion{}).
			Where("definition_id = ?", definitionID).
			Select("COALESCE(MAX(version_number), 0)").
			Scan(&highest).Error; err != nil {
			return err
		}

		version = &FunctionVersion{
			DefinitionID:  definitionID,
			VersionNumber: int(highest) + 1,
			Code:          code,
		}
		return tx.Create(version).Error
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// LatestVersion resolves "latest" by scanning for the greatest version
// number at the moment of the call.
func (s *Store) LatestVersion(ctx context.Context, definitionID uint) (*FunctionVersion, error) {
	var version FunctionVersion
	err := s.db.WithContext(ctx).
		Where("definition_id = ?", definitionID).
		Order("version_number DESC").
		First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fault.New(fault.NotFound, "definition %d has no versions", definitionID)
	}
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// Versions returns all versions of a definition, newest first.
func (s *Store) Versions(ctx context.Context, definitionID uint) ([]FunctionVersion, error) {
	var versions []FunctionVersion
	err := s.db.WithContext(ctx).
		Where("definition_id = ?", definitionID).
		Order("version_number DESC").
		Find(&versions).Error
	return versions, err
}

// AppendExecution writes one ledger row. Rows are inserted fully populated
// and never modified afterwards.
func (s *Store) AppendExecution(ctx context.Context, exec *FunctionExecution) error {
	return s.db.WithContext(ctx).Create(exec).Error
}

// Executions returns the execution ledger for a definition, newest first.
func (s *Store) Executions(ctx context.Context, definitionID uint) ([]FunctionExecution, error) {
	var execs []FunctionExecution
	err := s.db.WithContext(ctx).
		Where("definition_id = ?", definitionID).
		Order("started_at DESC").
		Find(&execs).Error
	return execs, err
}
