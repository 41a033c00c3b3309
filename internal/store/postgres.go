package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"quantbot-go/internal/trade"
)

// Postgres persists records through gorm. The optimistic state predicate on
// Close gives the same open-exactly-once guarantee the memory store enforces
// under its mutex.
type Postgres struct {
	db *gorm.DB
}

type recordRow struct {
	ID             string `gorm:"primaryKey"`
	Pair           string `gorm:"index"`
	Direction      string
	Timeframe      string
	Strategy       string `gorm:"index"`
	Indicators     string
	EntryPrice     float64
	ExitPrice      float64
	Quantity       float64
	FundingRate    float64
	TechScore      float64
	Quality        float64
	Reasons        string
	TPPercent      float64
	SLPercent      float64
	Leverage       float64
	CombinationKey string `gorm:"index"`
	State          string `gorm:"index"`
	Result         string
	PnLPercent     float64
	OpenedAt       time.Time
	ClosedAt       time.Time
	CreatedAt      time.Time
}

func (recordRow) TableName() string { return "trade_records" }

type rejectionRow struct {
	ID         uint `gorm:"primaryKey;autoIncrement"`
	Timestamp  time.Time
	Strategy   string
	Pair       string
	Timeframe  string
	Direction  string
	Score      float64
	Indicators string
	Reason     string
}

func (rejectionRow) TableName() string { return "trade_rejections" }

// NewPostgres connects and migrates the schema.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&recordRow{}, &rejectionRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

// AppendSignal implements Store.
func (p *Postgres) AppendSignal(ctx context.Context, rec trade.Record) error {
	row := toRow(rec)
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append signal: %w", err)
	}
	return nil
}

// Close implements Store. The state predicate makes the terminal transition
// atomic: a concurrent or repeated close updates zero rows.
func (p *Postgres) Close(ctx context.Context, id string, c trade.Close) error {
	res := p.db.WithContext(ctx).Model(&recordRow{}).
		Where("id = ? AND state = ?", id, string(trade.StateOpen)).
		Updates(map[string]any{
			"state":       string(trade.StateClosed),
			"result":      string(c.Result),
			"exit_price":  c.ExitPrice,
			"pn_l_percent": c.PnLPercent,
			"closed_at":   c.ClosedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("close record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var row recordRow
		err := p.db.WithContext(ctx).First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return ErrAlreadyClosed
	}
	return nil
}

// Query implements Store.
func (p *Postgres) Query(ctx context.Context, f Filter) ([]trade.Record, error) {
	q := p.db.WithContext(ctx).Model(&recordRow{}).Order("created_at")
	if f.State != "" {
		q = q.Where("state = ?", string(f.State))
	}
	if f.Strategy != "" {
		q = q.Where("strategy = ?", f.Strategy)
	}
	if f.Pair != "" {
		q = q.Where("pair = ?", f.Pair)
	}
	if f.Direction != "" {
		q = q.Where("direction = ?", string(f.Direction))
	}
	var rows []recordRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	out := make([]trade.Record, len(rows))
	for i, row := range rows {
		out[i] = fromRow(row)
	}
	return out, nil
}

// AppendRejection implements Store.
func (p *Postgres) AppendRejection(ctx context.Context, rej trade.Rejection) error {
	row := rejectionRow{
		Timestamp:  rej.Timestamp,
		Strategy:   rej.Strategy,
		Pair:       rej.Pair,
		Timeframe:  string(rej.Timeframe),
		Direction:  string(rej.Direction),
		Score:      rej.Score,
		Indicators: strings.Join(rej.Indicators, ","),
		Reason:     rej.Reason,
	}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append rejection: %w", err)
	}
	return nil
}

func toRow(rec trade.Record) recordRow {
	return recordRow{
		ID:             rec.ID,
		Pair:           rec.Pair,
		Direction:      string(rec.Direction),
		Timeframe:      string(rec.Timeframe),
		Strategy:       rec.Strategy,
		Indicators:     strings.Join(rec.Indicators, ","),
		EntryPrice:     rec.EntryPrice,
		ExitPrice:      rec.ExitPrice,
		Quantity:       rec.Quantity,
		FundingRate:    rec.FundingRate,
		TechScore:      rec.TechScore,
		Quality:        rec.Quality,
		Reasons:        strings.Join(rec.Reasons, "; "),
		TPPercent:      rec.Params.TPPercent,
		SLPercent:      rec.Params.SLPercent,
		Leverage:       rec.Params.Leverage,
		CombinationKey: rec.CombinationKey,
		State:          string(rec.State),
		Result:         string(rec.Result),
		PnLPercent:     rec.PnLPercent,
		OpenedAt:       rec.OpenedAt,
		ClosedAt:       rec.ClosedAt,
	}
}

func fromRow(row recordRow) trade.Record {
	rec := trade.Record{
		ID:             row.ID,
		Pair:           row.Pair,
		Direction:      trade.Direction(row.Direction),
		Timeframe:      trade.Timeframe(row.Timeframe),
		Strategy:       row.Strategy,
		EntryPrice:     row.EntryPrice,
		ExitPrice:      row.ExitPrice,
		Quantity:       row.Quantity,
		FundingRate:    row.FundingRate,
		TechScore:      row.TechScore,
		Quality:        row.Quality,
		Params:         trade.Params{TPPercent: row.TPPercent, SLPercent: row.SLPercent, Leverage: row.Leverage},
		CombinationKey: row.CombinationKey,
		State:          trade.State(row.State),
		Result:         trade.Result(row.Result),
		PnLPercent:     row.PnLPercent,
		OpenedAt:       row.OpenedAt,
		ClosedAt:       row.ClosedAt,
	}
	if row.Indicators != "" {
		rec.Indicators = strings.Split(row.Indicators, ",")
	}
	if row.Reasons != "" {
		rec.Reasons = strings.Split(row.Reasons, "; ")
	}
	return rec
}
