package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hashforward/trading-engine/internal/model"
)

// PostgresSource reads the event indexer's tables. All monetary values
// are stored as NUMERIC for exact decimal precision and scanned as text.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a PostgreSQL-backed source.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

var _ Source = (*PostgresSource)(nil)

func (s *PostgresSource) MintRecords(ctx context.Context, address string) ([]model.MintRecord, []model.MintRecord, error) {
	long, err := s.mintsForSide(ctx, address, model.SideLong)
	if err != nil {
		return nil, nil, err
	}
	short, err := s.mintsForSide(ctx, address, model.SideShort)
	if err != nil {
		return nil, nil, err
	}
	return long, short, nil
}

func (s *PostgresSource) mintsForSide(ctx context.Context, address string, side model.Side) ([]model.MintRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_id, qty_to_mint::TEXT, transaction_id
		 FROM position_mints
		 WHERE address = $1 AND side = $2
		 ORDER BY block_number, log_index`,
		address, string(side))
	if err != nil {
		return nil, fmt.Errorf("query mints for %s/%s: %w", address, side, err)
	}
	defer rows.Close()

	var records []model.MintRecord
	for rows.Next() {
		var rec model.MintRecord
		var qty string
		if err := rows.Scan(&rec.MarketID, &qty, &rec.TransactionID); err != nil {
			return nil, fmt.Errorf("scan mint record: %w", err)
		}
		rec.QtyToMint, err = decimal.NewFromString(qty)
		if err != nil {
			return nil, fmt.Errorf("parse qty %q: %w", qty, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		fills, err := s.fillsForTransaction(ctx, records[i].TransactionID)
		if err != nil {
			return nil, err
		}
		records[i].Fills = fills
	}
	return records, nil
}

func (s *PostgresSource) fillsForTransaction(ctx context.Context, txID string) ([]model.Fill, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT order_hash, maker, taker,
		        maker_asset_filled::TEXT, taker_asset_filled::TEXT
		 FROM fills
		 WHERE transaction_id = $1
		 ORDER BY log_index`,
		txID)
	if err != nil {
		return nil, fmt.Errorf("query fills for tx %s: %w", txID, err)
	}
	defer rows.Close()

	var fills []model.Fill
	for rows.Next() {
		var f model.Fill
		var makerFilled, takerFilled string
		if err := rows.Scan(&f.OrderHash, &f.Maker, &f.Taker, &makerFilled, &takerFilled); err != nil {
			return nil, fmt.Errorf("scan fill: %w", err)
		}
		f.TransactionID = txID
		if f.MakerAssetFilled, err = decimal.NewFromString(makerFilled); err != nil {
			return nil, fmt.Errorf("parse maker filled %q: %w", makerFilled, err)
		}
		if f.TakerAssetFilled, err = decimal.NewFromString(takerFilled); err != nil {
			return nil, fmt.Errorf("parse taker filled %q: %w", takerFilled, err)
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

func (s *PostgresSource) Contracts(ctx context.Context) ([]model.MarketContract, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT index, symbol,
		        collateral_per_unit::TEXT, current_mri::TEXT,
		        long_token_address, short_token_address,
		        revenue_per_unit::TEXT, settled_at
		 FROM contracts
		 ORDER BY index`)
	if err != nil {
		return nil, fmt.Errorf("query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []model.MarketContract
	for rows.Next() {
		var c model.MarketContract
		var collateral, mri string
		var revenue *string
		var settledAt *time.Time

		if err := rows.Scan(&c.Index, &c.Symbol, &collateral, &mri,
			&c.LongTokenAddress, &c.ShortTokenAddress, &revenue, &settledAt); err != nil {
			if err == pgx.ErrNoRows {
				break
			}
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		if c.CollateralPerUnit, err = decimal.NewFromString(collateral); err != nil {
			return nil, fmt.Errorf("parse collateral %q: %w", collateral, err)
		}
		if c.CurrentMRI, err = decimal.NewFromString(mri); err != nil {
			return nil, fmt.Errorf("parse mri %q: %w", mri, err)
		}
		if revenue != nil && settledAt != nil {
			rev, err := decimal.NewFromString(*revenue)
			if err != nil {
				return nil, fmt.Errorf("parse revenue %q: %w", *revenue, err)
			}
			c.Settlement = &model.Settlement{RevenuePerUnit: rev, SettledAt: *settledAt}
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}
