package dispatchrepo

import (
	"context"

	"gorm.io/gorm"

	"dispatch-server/services/dispatch-api/internal/domain/dispatch"
	"dispatch-server/services/dispatch-api/internal/infrastructure/database/dbschema"
	"dispatch-server/services/dispatch-api/internal/utils/platformerrors"
)

type Repository struct {
	db *gorm.DB
}

func NewDispatchRepository(db *gorm.DB) dispatch.HistoryRepository {
	return &Repository{db: db}
}

func (r *Repository) Save(ctx context.Context, record *dispatch.Record) error {
	model := dbschema.FromDomain(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to save dispatch record")
	}
	return nil
}

func (r *Repository) FindByPublicID(ctx context.Context, publicID string) (*dispatch.Record, error) {
	var model dbschema.DispatchRecord
	if err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to fetch dispatch record")
	}
	return model.EtoD(), nil
}

func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*dispatch.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	var models []dbschema.DispatchRecord
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to list dispatch records")
	}
	records := make([]*dispatch.Record, 0, len(models))
	for i := range models {
		records = append(records, models[i].EtoD())
	}
	return records, nil
}
