package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"printshop/internal/domain"
	"printshop/internal/sqlinline"
)

// AssetRepositoryPG implements domain.AssetRepository using PostgreSQL.
type AssetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAssetRepository constructs a new asset repository instance.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepositoryPG {
	return &AssetRepositoryPG{pool: pool}
}

// Create persists a stored-file record. Pipeline artifacts use deterministic
// ids, so a redelivered attempt upserts its own previous row instead of
// failing on the primary key.
func (r *AssetRepositoryPG) Create(ctx context.Context, asset *domain.Asset) error {
	_, err := r.pool.Exec(ctx, sqlinline.QUpsertAsset,
		asset.ID,
		asset.OwnerType,
		asset.OwnerID,
		asset.FileURL,
		asset.FileType,
		asset.FileSize,
		asset.OriginalName,
		asset.Kind,
		asset.JobID,
	)
	return err
}

// ListByJobID returns all assets produced for the job, oldest first.
func (r *AssetRepositoryPG) ListByJobID(ctx context.Context, jobID string) ([]domain.Asset, error) {
	rows, err := r.pool.Query(ctx, sqlinline.QSelectAssetsByJob, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		var asset domain.Asset
		if err := rows.Scan(
			&asset.ID,
			&asset.OwnerType,
			&asset.OwnerID,
			&asset.FileURL,
			&asset.FileType,
			&asset.FileSize,
			&asset.OriginalName,
			&asset.Kind,
			&asset.JobID,
			&asset.CreatedAt,
		); err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}
