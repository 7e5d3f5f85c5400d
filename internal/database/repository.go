package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/creativeops/thumbselect/pkg/models"
)

// ErrAssetNotFound is returned when an asset id does not exist.
var ErrAssetNotFound = errors.New("asset not found")

// Repository provides asset persistence
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// CreateAsset creates a new asset record
func (r *Repository) CreateAsset(ctx context.Context, asset *models.VideoAsset) error {
	if asset.ID == "" {
		asset.ID = uuid.New().String()
	}

	query := `
		INSERT INTO assets (id, parent_id, name, media_type, source_url, thumbnail_url, thumbnail_timestamp, duration, size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		asset.ID, asset.ParentID, asset.Name, asset.MediaType, asset.SourceURL,
		asset.ThumbnailURL, asset.ThumbnailTimestamp, asset.Duration, asset.Size,
	).Scan(&asset.CreatedAt, &asset.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}

	return nil
}

// GetAsset retrieves an asset by ID
func (r *Repository) GetAsset(ctx context.Context, id string) (*models.VideoAsset, error) {
	var asset models.VideoAsset

	query := `
		SELECT id, parent_id, name, media_type, source_url, thumbnail_url,
		       thumbnail_timestamp, duration, size, created_at, updated_at
		FROM assets
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&asset.ID, &asset.ParentID, &asset.Name, &asset.MediaType, &asset.SourceURL,
		&asset.ThumbnailURL, &asset.ThumbnailTimestamp, &asset.Duration, &asset.Size,
		&asset.CreatedAt, &asset.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	return &asset, nil
}

// GetAssetsByParent retrieves all assets for a parent entity
func (r *Repository) GetAssetsByParent(ctx context.Context, parentID string) ([]*models.VideoAsset, error) {
	query := `
		SELECT id, parent_id, name, media_type, source_url, thumbnail_url,
		       thumbnail_timestamp, duration, size, created_at, updated_at
		FROM assets
		WHERE parent_id = $1
		ORDER BY name
	`

	rows, err := r.db.Pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []*models.VideoAsset
	for rows.Next() {
		var asset models.VideoAsset
		err := rows.Scan(
			&asset.ID, &asset.ParentID, &asset.Name, &asset.MediaType, &asset.SourceURL,
			&asset.ThumbnailURL, &asset.ThumbnailTimestamp, &asset.Duration, &asset.Size,
			&asset.CreatedAt, &asset.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, &asset)
	}

	return assets, nil
}

// UpdateAssetThumbnail persists a thumbnail result for one asset. Both
// fields are written in a single statement so readers never observe a
// partial update. A nil timestamp marks the thumbnail as manually uploaded.
func (r *Repository) UpdateAssetThumbnail(ctx context.Context, assetID string, thumbnailURL string, timestamp *float64) error {
	query := `
		UPDATE assets
		SET thumbnail_url = $2, thumbnail_timestamp = $3, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, assetID, thumbnailURL, timestamp)
	if err != nil {
		return fmt.Errorf("failed to update asset thumbnail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssetNotFound
	}

	return nil
}

// DeleteAsset removes an asset record
func (r *Repository) DeleteAsset(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssetNotFound
	}

	return nil
}

// Health checks the underlying connection
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}
