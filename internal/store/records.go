package store

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"masterplan/internal/model"
)

// InsertRecords 批量写入长表记录
func (s *Store) InsertRecords(runID string, records []model.Record) error {
	return s.withTx(func(tx *sql.Tx) error {
		return insertRecords(tx, runID, records)
	})
}

func insertRecords(tx *sql.Tx, runID string, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO plan_records (run_id, product_id, month, generation_month, kind, quantity)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var gen sql.NullString
		if r.GenerationMonth != nil {
			gen = sql.NullString{String: r.GenerationMonth.String(), Valid: true}
		}
		if _, err := stmt.Exec(runID, r.ProductID, r.Month.String(), gen, string(r.Kind), r.Quantity); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}
	return nil
}

// ListProducts 运行中出现的品名（升序）
func (s *Store) ListProducts(runID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT product_id FROM plan_records WHERE run_id = ? ORDER BY product_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query products failed: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan product failed: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products failed: %w", err)
	}
	return out, nil
}

// ListRecords 查询长表记录，product 为空时返回全部
func (s *Store) ListRecords(runID, product string) ([]model.Record, error) {
	query := `
		SELECT product_id, month, generation_month, kind, quantity
		FROM plan_records WHERE run_id = ?`
	args := []interface{}{runID}
	if product != "" {
		query += ` AND product_id = ?`
		args = append(args, product)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records failed: %w", err)
	}
	defer rows.Close()

	out := []model.Record{}
	for rows.Next() {
		var (
			r     model.Record
			month string
			gen   sql.NullString
			kind  string
			qty   decimal.Decimal
		)
		if err := rows.Scan(&r.ProductID, &month, &gen, &kind, &qty); err != nil {
			return nil, fmt.Errorf("scan record failed: %w", err)
		}
		m, err := model.ParseMonthKey(month)
		if err != nil {
			return nil, fmt.Errorf("invalid record month %q: %w", month, err)
		}
		r.Month = m
		if gen.Valid {
			g, err := model.ParseMonthKey(gen.String)
			if err != nil {
				return nil, fmt.Errorf("invalid generation month %q: %w", gen.String, err)
			}
			r.GenerationMonth = &g
		}
		r.Kind = model.RecordKind(kind)
		r.Quantity = qty
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records failed: %w", err)
	}
	return out, nil
}
