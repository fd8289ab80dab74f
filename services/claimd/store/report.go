package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// Window returns every settlement of instance created in [from, to), oldest
// first. A zero to leaves the window open-ended.
func (s *Store) Window(ctx context.Context, instance string, from, to time.Time) ([]Settlement, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("settlement store not configured")
	}
	tx := s.db.WithContext(ctx).Model(&Settlement{}).Where("created_at >= ?", from.UTC())
	if !to.IsZero() {
		tx = tx.Where("created_at < ?", to.UTC())
	}
	if instance = strings.ToLower(strings.TrimSpace(instance)); instance != "" {
		tx = tx.Where("instance = ?", instance)
	}
	var out []Settlement
	if err := tx.Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("settlement window: %w", err)
	}
	return out, nil
}

// Report names the files produced by WriteReport.
type Report struct {
	Rows        int    `json:"rows"`
	CSVPath     string `json:"csv,omitempty"`
	ParquetPath string `json:"parquet,omitempty"`
}

var reportHeader = []string{
	"id", "instance", "beneficiary", "caller", "nonce", "option_id", "total_allocation",
	"amount_claimed", "amount_staked", "bonus", "protocol_share", "multiplier",
	"percentage_to_claim", "percentage_to_stake", "lockup_period", "fee_receiver",
	"fee_paid", "fee_usd_cents", "fee_post_cap", "overflow_mode", "created_at",
}

// WriteReport writes rows to <dir>/<name>.csv and <dir>/<name>.parquet.
// Nothing is written for an empty window.
func WriteReport(dir, name string, rows []Settlement) (Report, error) {
	report := Report{Rows: len(rows)}
	if len(rows) == 0 {
		return report, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return report, fmt.Errorf("report: create dir: %w", err)
	}
	report.CSVPath = filepath.Join(dir, name+".csv")
	if err := writeCSV(report.CSVPath, rows); err != nil {
		return report, err
	}
	report.ParquetPath = filepath.Join(dir, name+".parquet")
	if err := writeParquet(report.ParquetPath, rows); err != nil {
		return report, err
	}
	return report, nil
}

func writeCSV(path string, rows []Settlement) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create csv: %w", err)
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if err := w.Write(reportHeader); err != nil {
		return fmt.Errorf("report: write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.ID.String(),
			row.Instance,
			row.Beneficiary,
			row.Caller,
			row.Nonce,
			strconv.FormatUint(row.OptionID, 10),
			row.TotalAllocation,
			row.AmountClaimed,
			row.AmountStaked,
			row.Bonus,
			row.ProtocolShare,
			strconv.FormatUint(row.Multiplier, 10),
			strconv.FormatUint(row.PercentageToClaim, 10),
			strconv.FormatUint(row.PercentageToStake, 10),
			strconv.FormatUint(row.LockupPeriod, 10),
			row.FeeReceiver,
			row.FeePaid,
			strconv.FormatUint(row.FeeUsdCents, 10),
			strconv.FormatBool(row.FeePostCap),
			row.OverflowMode,
			row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("report: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("report: flush csv: %w", err)
	}
	return nil
}

type parquetRow struct {
	ID                string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Instance          string `parquet:"name=instance, type=BYTE_ARRAY, convertedtype=UTF8"`
	Beneficiary       string `parquet:"name=beneficiary, type=BYTE_ARRAY, convertedtype=UTF8"`
	Caller            string `parquet:"name=caller, type=BYTE_ARRAY, convertedtype=UTF8"`
	Nonce             string `parquet:"name=nonce, type=BYTE_ARRAY, convertedtype=UTF8"`
	OptionID          int64  `parquet:"name=option_id, type=INT64"`
	TotalAllocation   string `parquet:"name=total_allocation, type=BYTE_ARRAY, convertedtype=UTF8"`
	AmountClaimed     string `parquet:"name=amount_claimed, type=BYTE_ARRAY, convertedtype=UTF8"`
	AmountStaked      string `parquet:"name=amount_staked, type=BYTE_ARRAY, convertedtype=UTF8"`
	Bonus             string `parquet:"name=bonus, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProtocolShare     string `parquet:"name=protocol_share, type=BYTE_ARRAY, convertedtype=UTF8"`
	Multiplier        int64  `parquet:"name=multiplier, type=INT64"`
	PercentageToClaim int64  `parquet:"name=percentage_to_claim, type=INT64"`
	PercentageToStake int64  `parquet:"name=percentage_to_stake, type=INT64"`
	LockupPeriod      int64  `parquet:"name=lockup_period, type=INT64"`
	FeeReceiver       string `parquet:"name=fee_receiver, type=BYTE_ARRAY, convertedtype=UTF8"`
	FeePaid           string `parquet:"name=fee_paid, type=BYTE_ARRAY, convertedtype=UTF8"`
	FeeUsdCents       int64  `parquet:"name=fee_usd_cents, type=INT64"`
	FeePostCap        bool   `parquet:"name=fee_post_cap, type=BOOLEAN"`
	OverflowMode      string `parquet:"name=overflow_mode, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt         string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func writeParquet(path string, rows []Settlement) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create parquet: %w", err)
	}
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(file), new(parquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("report: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		pr := &parquetRow{
			ID:                row.ID.String(),
			Instance:          row.Instance,
			Beneficiary:       row.Beneficiary,
			Caller:            row.Caller,
			Nonce:             row.Nonce,
			OptionID:          int64(row.OptionID),
			TotalAllocation:   row.TotalAllocation,
			AmountClaimed:     row.AmountClaimed,
			AmountStaked:      row.AmountStaked,
			Bonus:             row.Bonus,
			ProtocolShare:     row.ProtocolShare,
			Multiplier:        int64(row.Multiplier),
			PercentageToClaim: int64(row.PercentageToClaim),
			PercentageToStake: int64(row.PercentageToStake),
			LockupPeriod:      int64(row.LockupPeriod),
			FeeReceiver:       row.FeeReceiver,
			FeePaid:           row.FeePaid,
			FeeUsdCents:       int64(row.FeeUsdCents),
			FeePostCap:        row.FeePostCap,
			OverflowMode:      row.OverflowMode,
			CreatedAt:         row.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := pw.Write(pr); err != nil {
			_ = pw.WriteStop()
			file.Close()
			return fmt.Errorf("report: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("report: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("report: close parquet: %w", err)
	}
	return nil
}
