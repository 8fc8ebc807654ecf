package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"paylive-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	GetBySlug(ctx context.Context, slug string) (*Store, error)
	GetByID(ctx context.Context, id int64) (*Store, error)
	SearchStock(ctx context.Context, storeID int64, query string, limit int) ([]StockItem, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const storeColumns = `
	SELECT
		id,
		slug,
		name,
		COALESCE(description, ''),
		COALESCE(theme, ''),
		owner_email,
		address,
		is_verified
	FROM stores`

func (r *repository) GetBySlug(ctx context.Context, slug string) (*Store, error) {
	return r.getOne(ctx, storeColumns+` WHERE lower(slug) = lower($1)`, slug)
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Store, error) {
	return r.getOne(ctx, storeColumns+` WHERE id = $1`, id)
}

func (r *repository) getOne(ctx context.Context, query string, arg any) (*Store, error) {
	var (
		s       Store
		address []byte
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&s.ID,
		&s.Slug,
		&s.Name,
		&s.Description,
		&s.Theme,
		&s.OwnerEmail,
		&address,
		&s.IsVerified,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStoreNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to load store", zap.Error(err))
		return nil, ErrFailedGetStore
	}

	if len(address) > 0 && string(address) != "null" {
		s.Address = &Address{}
		if err := json.Unmarshal(address, s.Address); err != nil {
			logger.FromCtx(ctx).Warn("store address is not valid json",
				zap.Int64("store_id", s.ID),
				zap.Error(err),
			)
			s.Address = nil
		}
	}

	return &s, nil
}

func (r *repository) SearchStock(
	ctx context.Context,
	storeID int64,
	query string,
	limit int,
) ([]StockItem, error) {

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "SearchStock"),
		zap.Int64("store_id", storeID),
		zap.String("query", query),
	)

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_reference, COALESCE(title, ''), quantity, price
		FROM stock_items
		WHERE store_id = $1 AND product_reference ILIKE $2
		ORDER BY lower(product_reference) = lower($4) DESC, product_reference
		LIMIT $3
	`, storeID, likePrefix(query), limit, strings.TrimSpace(query))
	if err != nil {
		log.Error("query failed", zap.Error(err))
		return nil, ErrFailedGetStock
	}
	defer rows.Close()

	items := make([]StockItem, 0)
	for rows.Next() {
		var it StockItem
		if err := rows.Scan(&it.Reference, &it.Title, &it.Quantity, &it.Price); err != nil {
			log.Error("row scan failed", zap.Error(err))
			return nil, ErrFailedGetStock
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		log.Error("rows iteration failed", zap.Error(err))
		return nil, ErrFailedGetStock
	}

	log.Debug("stock search done", zap.Int("rows", len(items)))
	return items, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePrefix(q string) string {
	return likeEscaper.Replace(strings.TrimSpace(q)) + "%"
}
