package repository

import (
	"context"
	"database/sql"

	"clip-ingest/entities"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ClipRepository interface {
	Transaction(ctx context.Context, callback func(ctx context.Context, tx *gorm.DB) error, opts ...*sql.TxOptions) error
	GetDB() *gorm.DB
	FindByOriginID(ctx context.Context, originID string) ([]*entities.Clip, error)
	DeleteByOriginID(ctx context.Context, originID string) error
	InsertClips(ctx context.Context, clips []*entities.Clip) error
	List(ctx context.Context, limit, offset int) ([]*entities.Clip, error)
	Count(ctx context.Context) (int64, error)
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) ClipRepository {
	gormDB, _ := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	return &repo{
		db: gormDB,
	}
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) Transaction(ctx context.Context, callback func(ctx context.Context, tx *gorm.DB) error, opts ...*sql.TxOptions) error {
	return r.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return callback(ctx, tx)
	}, opts...)
}

func (r *repo) FindByOriginID(ctx context.Context, originID string) ([]*entities.Clip, error) {
	var clips []*entities.Clip
	err := r.GetDB().WithContext(ctx).Where("origin_id = ?", originID).Order("start_frame ASC").Find(&clips).Error
	if err != nil {
		return nil, err
	}
	return clips, nil
}

func (r *repo) DeleteByOriginID(ctx context.Context, originID string) error {
	return r.GetDB().WithContext(ctx).Where("origin_id = ?", originID).Delete(&entities.Clip{}).Error
}

// InsertClips writes all rows in one transaction; any failure rolls the whole
// batch back and zero rows land.
func (r *repo) InsertClips(ctx context.Context, clips []*entities.Clip) error {
	return r.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		for _, clip := range clips {
			if err := tx.Create(clip).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repo) List(ctx context.Context, limit, offset int) ([]*entities.Clip, error) {
	var clips []*entities.Clip
	err := r.GetDB().WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&clips).Error
	if err != nil {
		return nil, err
	}
	return clips, nil
}

func (r *repo) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.GetDB().WithContext(ctx).Model(&entities.Clip{}).Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
