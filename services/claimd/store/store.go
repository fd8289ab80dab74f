package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"claimdrop/core/events"
)

var (
	// ErrDSNRequired is returned when no settlement store DSN is configured.
	ErrDSNRequired = errors.New("settlement store DSN must be configured")
	// ErrNotFound is returned when a settlement lookup matches nothing.
	ErrNotFound = errors.New("settlement not found")
)

// MaxPageSize bounds list queries.
const MaxPageSize = 500

// Settlement is the indexed copy of a committed claim. Amounts are stored as
// decimal strings so both backends keep full precision.
type Settlement struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Instance          string    `gorm:"index:idx_settlement_instance_beneficiary,priority:1;not null" json:"instance"`
	Beneficiary       string    `gorm:"index:idx_settlement_instance_beneficiary,priority:2;not null" json:"beneficiary"`
	Caller            string    `gorm:"index" json:"caller"`
	Nonce             string    `gorm:"uniqueIndex:idx_settlement_nonce;not null" json:"nonce"`
	OptionID          uint64    `json:"optionId"`
	TotalAllocation   string    `json:"totalAllocation"`
	AmountClaimed     string    `json:"amountClaimed"`
	AmountStaked      string    `json:"amountStaked"`
	Bonus             string    `json:"bonus"`
	ProtocolShare     string    `json:"protocolShare"`
	Multiplier        uint64    `json:"multiplier"`
	PercentageToClaim uint64    `json:"percentageToClaim"`
	PercentageToStake uint64    `json:"percentageToStake"`
	LockupPeriod      uint64    `json:"lockupPeriod"`
	FeeReceiver       string    `json:"feeReceiver,omitempty"`
	FeePaid           string    `json:"feePaid"`
	FeeUsdCents       uint64    `json:"feeUsdCents"`
	FeePostCap        bool      `json:"feePostCap"`
	OverflowMode      string    `json:"overflowMode"`
	CreatedAt         time.Time `gorm:"index" json:"createdAt"`
}

// Store persists settlements for query.
type Store struct {
	db *gorm.DB
}

// Open connects to the backend selected by dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	driver, target, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(target)
	default:
		dialector = sqlite.Open(target)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open settlement store: %w", err)
	}
	return New(db)
}

// New wraps an open gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("settlement store: nil database")
	}
	if err := db.AutoMigrate(&Settlement{}); err != nil {
		return nil, fmt.Errorf("migrate settlement store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func hexAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// FromEvent converts a committed settlement event into its indexed form.
func FromEvent(evt events.AirdropClaimSettled, at time.Time) *Settlement {
	record := &Settlement{
		ID:                uuid.New(),
		Instance:          hexAddress(evt.Instance),
		Beneficiary:       hexAddress(evt.Beneficiary),
		Caller:            hexAddress(evt.Caller),
		Nonce:             hexAddress(evt.Beneficiary) + ":" + hex.EncodeToString(evt.Nonce[:]),
		OptionID:          evt.OptionID,
		Multiplier:        evt.Multiplier,
		PercentageToClaim: evt.PercentageToClaim,
		PercentageToStake: evt.PercentageToStake,
		LockupPeriod:      evt.LockupPeriod,
		FeeUsdCents:       evt.FeeUsdCents,
		FeePostCap:        evt.FeePostCap,
		OverflowMode:      evt.OverflowMode,
		CreatedAt:         at.UTC(),
	}
	record.TotalAllocation = formatAmount(evt.TotalAllocation)
	record.AmountClaimed = formatAmount(evt.AmountClaimed)
	record.AmountStaked = formatAmount(evt.AmountStaked)
	record.Bonus = formatAmount(evt.Bonus)
	record.ProtocolShare = formatAmount(evt.ProtocolShare)
	record.FeePaid = formatAmount(evt.FeePaid)
	if evt.FeeReceiver != ([20]byte{}) {
		record.FeeReceiver = hexAddress(evt.FeeReceiver)
	}
	return record
}

// Record stores a settlement. Recording the same beneficiary nonce twice is a
// no-op.
func (s *Store) Record(ctx context.Context, record *Settlement) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("settlement store not configured")
	}
	if record == nil {
		return fmt.Errorf("settlement required")
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	var existing int64
	if err := s.db.WithContext(ctx).Model(&Settlement{}).Where("nonce = ?", record.Nonce).Count(&existing).Error; err != nil {
		return fmt.Errorf("lookup settlement: %w", err)
	}
	if existing > 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

// Query filters a settlement listing. Zero values match everything.
type Query struct {
	Instance    string
	Beneficiary string
	Limit       int
	Offset      int
}

// List returns settlements newest first.
func (s *Store) List(ctx context.Context, q Query) ([]Settlement, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("settlement store not configured")
	}
	limit := q.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	tx := s.db.WithContext(ctx).Model(&Settlement{})
	if instance := strings.ToLower(strings.TrimSpace(q.Instance)); instance != "" {
		tx = tx.Where("instance = ?", instance)
	}
	if beneficiary := strings.ToLower(strings.TrimSpace(q.Beneficiary)); beneficiary != "" {
		tx = tx.Where("beneficiary = ?", beneficiary)
	}
	var out []Settlement
	if err := tx.Order("created_at DESC").Limit(limit).Offset(q.Offset).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return out, nil
}

// ForBeneficiary returns the settlement of beneficiary on instance.
func (s *Store) ForBeneficiary(ctx context.Context, instance, beneficiary [20]byte) (*Settlement, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("settlement store not configured")
	}
	var out Settlement
	err := s.db.WithContext(ctx).
		Where("instance = ? AND beneficiary = ?", hexAddress(instance), hexAddress(beneficiary)).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load settlement: %w", err)
	}
	return &out, nil
}
