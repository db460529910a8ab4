package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"nftstake/core/events"
	"nftstake/core/runtime"
	"nftstake/observability/logging"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// ErrUnsupportedDriver is returned by Open for unknown SQL drivers.
var ErrUnsupportedDriver = errors.New("indexer: unsupported driver")

// Open connects to the configured SQL backend and migrates the schema.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return db, nil
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type         string `json:"type,omitempty"`
	Pool         string `json:"pool,omitempty"`
	Owner        string `json:"owner,omitempty"`
	Mint         string `json:"mint,omitempty"`
	FromSequence uint64 `json:"fromSequence,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// Indexer persists committed ledger events for historical queries.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New wraps an open database.
func New(db *gorm.DB, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Indexer{db: db, logger: logging.Component(logger, "indexer")}
}

// Record stores evt. Recording the same event twice is a no-op.
func (i *Indexer) Record(ctx context.Context, evt runtime.CommittedEvent) error {
	attrs, err := json.Marshal(evt.Payload.Attributes)
	if err != nil {
		return err
	}
	record := EventRecord{
		Signature:  evt.Signature.String(),
		Position:   evt.Index,
		Sequence:   evt.Sequence,
		Type:       evt.Payload.Type,
		Pool:       evt.Payload.Attributes["pool"],
		Owner:      evt.Payload.Attributes["owner"],
		Mint:       evt.Payload.Attributes["mint"],
		Attributes: string(attrs),
		ExecutedAt: time.Unix(evt.ExecutedAt, 0).UTC(),
	}
	return i.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error
}

// List returns matching events ordered by ledger position.
func (i *Indexer) List(ctx context.Context, filter Filter) ([]EventRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	query := i.db.WithContext(ctx).Model(&EventRecord{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Pool != "" {
		query = query.Where("pool = ?", filter.Pool)
	}
	if filter.Owner != "" {
		query = query.Where("owner = ?", filter.Owner)
	}
	if filter.Mint != "" {
		query = query.Where("mint = ?", filter.Mint)
	}
	if filter.FromSequence > 0 {
		query = query.Where("sequence >= ?", filter.FromSequence)
	}
	var records []EventRecord
	if err := query.Order("sequence asc").Order("position asc").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// DecodeAttributes returns the attribute map stored with rec.
func DecodeAttributes(rec EventRecord) (map[string]string, error) {
	attrs := map[string]string{}
	if rec.Attributes == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(rec.Attributes), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// Run records every committed event received on feed until ctx is done or
// feed is closed. Storage errors are logged and do not stop the loop.
func (i *Indexer) Run(ctx context.Context, feed <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-feed:
			if !ok {
				return nil
			}
			committed, ok := evt.(runtime.CommittedEvent)
			if !ok {
				continue
			}
			if err := i.Record(ctx, committed); err != nil {
				i.logger.Error("record event failed",
					"signature", committed.Signature.String(),
					"type", committed.Payload.Type,
					"error", err)
			}
		}
	}
}
