package store

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	"github.com/jmoiron/sqlx"

	"sjsage522/pricewatch/internal/catalog"
	"sjsage522/pricewatch/logger"
	"sjsage522/pricewatch/pkg/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id                 TEXT PRIMARY KEY,
		gtin               TEXT NOT NULL DEFAULT '',
		name               TEXT NOT NULL,
		quantity           INTEGER,
		revenue_net        DOUBLE PRECISION,
		idealo_link        TEXT NOT NULL DEFAULT '',
		price_gross        DOUBLE PRECISION,
		price_net          DOUBLE PRECISION,
		purchase_price_net DOUBLE PRECISION,
		uvp                DOUBLE PRECISION,
		tax_rate           INTEGER NOT NULL DEFAULT 19,
		clicks_30_days     INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS scrape_snapshots (
		id               BIGSERIAL PRIMARY KEY,
		product_id       TEXT NOT NULL REFERENCES products (id),
		taken_at         TIMESTAMPTZ NOT NULL,
		rank1_shop       TEXT,
		rank1_price      DOUBLE PRECISION CHECK (rank1_price >= 0),
		rank1_link       TEXT,
		rank2_shop       TEXT,
		rank2_price      DOUBLE PRECISION,
		rank2_link       TEXT,
		own_rank         INTEGER CHECK (own_rank >= 1),
		own_price        DOUBLE PRECISION,
		own_link         TEXT,
		competitor_count INTEGER NOT NULL DEFAULT 0,
		lowest_price     DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS scrape_snapshots_product_taken_idx
		ON scrape_snapshots (product_id, taken_at DESC, id DESC)`,
}

const snapshotColumns = `id, product_id, taken_at,
	rank1_shop, rank1_price, rank1_link,
	rank2_shop, rank2_price, rank2_link,
	own_rank, own_price, own_link,
	competitor_count, lowest_price`

// snapshotRow is the flat column layout of scrape_snapshots
type snapshotRow struct {
	ID              int64     `db:"id"`
	ProductID       string    `db:"product_id"`
	TakenAt         time.Time `db:"taken_at"`
	Rank1Shop       *string   `db:"rank1_shop"`
	Rank1Price      *float64  `db:"rank1_price"`
	Rank1Link       *string   `db:"rank1_link"`
	Rank2Shop       *string   `db:"rank2_shop"`
	Rank2Price      *float64  `db:"rank2_price"`
	Rank2Link       *string   `db:"rank2_link"`
	OwnRank         *int      `db:"own_rank"`
	OwnPrice        *float64  `db:"own_price"`
	OwnLink         *string   `db:"own_link"`
	CompetitorCount int       `db:"competitor_count"`
	LowestPrice     *float64  `db:"lowest_price"`
}

// PostgresStore persists the catalog and snapshots with sqlx over pgx
type PostgresStore struct {
	db *sqlx.DB
}

// Ensure PostgresStore implements Store
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and applies the schema
func NewPostgresStore(ctx context.Context, dsn string, maxOpen, maxIdle int) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, errors.NewConfiguration("failed to connect to postgres", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &PostgresStore{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.ForStore().Info().Msg("postgres connected")
	return s, nil
}

// Migrate creates tables and indexes that do not exist yet
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.NewPersistence("", "apply schema", err)
		}
	}
	return nil
}

// withTx runs fn in a transaction
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.NewPersistence("", "begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.NewPersistence("", "transaction failed", fmt.Errorf("%w; rollback: %v", err, rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewPersistence("", "commit", err)
	}
	return nil
}

// ListProducts returns all products ordered by id
func (s *PostgresStore) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	var products []catalog.Product
	err := s.db.SelectContext(ctx, &products, `
		SELECT id, gtin, name, quantity, revenue_net, idealo_link, price_gross,
		       price_net, purchase_price_net, uvp, tax_rate, clicks_30_days
		FROM products
		ORDER BY id`)
	if err != nil {
		return nil, errors.NewPersistence("", "list products", err)
	}
	return products, nil
}

// UpsertProducts inserts or replaces products by id
func (s *PostgresStore) UpsertProducts(ctx context.Context, products []catalog.Product) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, p := range products {
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO products (id, gtin, name, quantity, revenue_net, idealo_link, price_gross,
				                      price_net, purchase_price_net, uvp, tax_rate, clicks_30_days)
				VALUES (:id, :gtin, :name, :quantity, :revenue_net, :idealo_link, :price_gross,
				        :price_net, :purchase_price_net, :uvp, :tax_rate, :clicks_30_days)
				ON CONFLICT (id) DO UPDATE SET
					gtin = EXCLUDED.gtin, name = EXCLUDED.name, quantity = EXCLUDED.quantity,
					revenue_net = EXCLUDED.revenue_net, idealo_link = EXCLUDED.idealo_link,
					price_gross = EXCLUDED.price_gross, price_net = EXCLUDED.price_net,
					purchase_price_net = EXCLUDED.purchase_price_net, uvp = EXCLUDED.uvp,
					tax_rate = EXCLUDED.tax_rate, clicks_30_days = EXCLUDED.clicks_30_days`, p)
			if err != nil {
				return errors.NewPersistence(p.ID, "upsert product", err)
			}
		}
		return nil
	})
}

// AppendSnapshot inserts snap and assigns its ID
func (s *PostgresStore) AppendSnapshot(ctx context.Context, snap *catalog.Snapshot) error {
	row := toRow(snap)
	rows, err := s.db.NamedQueryContext(ctx, `
		INSERT INTO scrape_snapshots (product_id, taken_at,
			rank1_shop, rank1_price, rank1_link,
			rank2_shop, rank2_price, rank2_link,
			own_rank, own_price, own_link,
			competitor_count, lowest_price)
		VALUES (:product_id, :taken_at,
			:rank1_shop, :rank1_price, :rank1_link,
			:rank2_shop, :rank2_price, :rank2_link,
			:own_rank, :own_price, :own_link,
			:competitor_count, :lowest_price)
		RETURNING id`, row)
	if err != nil {
		return errors.NewPersistence(snap.ProductID, "insert snapshot", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&snap.ID); err != nil {
			return errors.NewPersistence(snap.ProductID, "read snapshot id", err)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.NewPersistence(snap.ProductID, "insert snapshot", err)
	}
	return nil
}

// LatestSnapshots returns up to n snapshots for productID, newest first
func (s *PostgresStore) LatestSnapshots(ctx context.Context, productID string, n int) ([]catalog.Snapshot, error) {
	var rows []snapshotRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+snapshotColumns+`
		FROM scrape_snapshots
		WHERE product_id = $1
		ORDER BY taken_at DESC, id DESC
		LIMIT $2`, productID, n)
	if err != nil {
		return nil, errors.NewPersistence(productID, "select snapshots", err)
	}

	snapshots := make([]catalog.Snapshot, 0, len(rows))
	for _, r := range rows {
		snapshots = append(snapshots, r.toSnapshot())
	}
	return snapshots, nil
}

// RecentSnapshots returns up to n snapshots per product, newest first
func (s *PostgresStore) RecentSnapshots(ctx context.Context, n int) (map[string][]catalog.Snapshot, error) {
	var rows []snapshotRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+snapshotColumns+`
		FROM (
			SELECT s.*, ROW_NUMBER() OVER (
				PARTITION BY product_id ORDER BY taken_at DESC, id DESC
			) AS rn
			FROM scrape_snapshots s
		) ranked
		WHERE rn <= $1
		ORDER BY product_id, taken_at DESC, id DESC`, n)
	if err != nil {
		return nil, errors.NewPersistence("", "select recent snapshots", err)
	}

	recent := make(map[string][]catalog.Snapshot)
	for _, r := range rows {
		recent[r.ProductID] = append(recent[r.ProductID], r.toSnapshot())
	}
	return recent, nil
}

// Close closes the database handle
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func toRow(snap *catalog.Snapshot) snapshotRow {
	row := snapshotRow{
		ProductID:       snap.ProductID,
		TakenAt:         snap.TakenAt,
		OwnRank:         snap.OwnRank,
		OwnPrice:        snap.OwnPrice,
		CompetitorCount: snap.CompetitorCount,
		LowestPrice:     snap.LowestPrice,
	}
	if snap.Rank1 != nil {
		row.Rank1Shop, row.Rank1Price, row.Rank1Link = &snap.Rank1.Shop, snap.Rank1.Price, &snap.Rank1.Link
	}
	if snap.Rank2 != nil {
		row.Rank2Shop, row.Rank2Price, row.Rank2Link = &snap.Rank2.Shop, snap.Rank2.Price, &snap.Rank2.Link
	}
	if snap.OwnRank != nil {
		row.OwnLink = &snap.OwnLink
	}
	return row
}

func (r snapshotRow) toSnapshot() catalog.Snapshot {
	snap := catalog.Snapshot{
		ID:              r.ID,
		ProductID:       r.ProductID,
		TakenAt:         r.TakenAt,
		OwnRank:         r.OwnRank,
		OwnPrice:        r.OwnPrice,
		OwnLink:         deref(r.OwnLink),
		CompetitorCount: r.CompetitorCount,
		LowestPrice:     r.LowestPrice,
	}
	if r.Rank1Shop != nil {
		snap.Rank1 = &catalog.RankedOffer{Shop: *r.Rank1Shop, Price: r.Rank1Price, Link: deref(r.Rank1Link)}
	}
	if r.Rank2Shop != nil {
		snap.Rank2 = &catalog.RankedOffer{Shop: *r.Rank2Shop, Price: r.Rank2Price, Link: deref(r.Rank2Link)}
	}
	return snap
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
