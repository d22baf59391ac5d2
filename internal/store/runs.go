package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"masterplan/internal/model"
	"masterplan/internal/parser"
)

// 运行状态
const (
	RunProcessing = "processing"
	RunCompleted  = "completed"
	RunFailed     = "failed"
)

// ErrRunNotFound 运行记录不存在
var ErrRunNotFound = errors.New("run not found")

// Run 运行记录
type Run struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"startedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	TotalFiles    int        `json:"totalFiles"`
	ImportedFiles int        `json:"importedFiles"`
	SkippedFiles  int        `json:"skippedFiles"`
	ErrorFiles    int        `json:"errorFiles"`
	TotalFacts    int        `json:"totalFacts"`
	Products      int        `json:"products"`
	Columns       int        `json:"columns"`
	FirstMonth    string     `json:"firstMonth,omitempty"`
	LastMonth     string     `json:"lastMonth,omitempty"`
	OutputPath    string     `json:"-"`
	ErrorMessage  string     `json:"errorMessage,omitempty"`
}

// Months 运行覆盖的连续月份
func (r *Run) Months() []model.MonthKey {
	from, err := model.ParseMonthKey(r.FirstMonth)
	if err != nil {
		return nil
	}
	to, err := model.ParseMonthKey(r.LastMonth)
	if err != nil {
		return nil
	}
	return model.MonthRange(from, to)
}

// CreateRun 创建运行记录
func (s *Store) CreateRun(runID string, startedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)
	`, runID, RunProcessing, startedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FailRun 标记运行失败
func (s *Store) FailRun(runID, message string) error {
	_, err := s.db.Exec(`
		UPDATE runs SET status = ?, error_message = ?, completed_at = ? WHERE id = ?
	`, RunFailed, message, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("failed to fail run: %w", err)
	}
	return nil
}

// FinishRun 写入汇总并标记完成
func (s *Store) FinishRun(runID string, report *parser.RunReport, records []model.Record) error {
	return s.withTx(func(tx *sql.Tx) error {
		return finishRun(tx, runID, report, records)
	})
}

// CompleteRun 单事务写入文件结果、长表记录与汇总
func (s *Store) CompleteRun(runID string, report *parser.RunReport, records []model.Record) error {
	return s.withTx(func(tx *sql.Tx) error {
		if err := insertRunFiles(tx, runID, report.Files); err != nil {
			return err
		}
		if err := insertRecords(tx, runID, records); err != nil {
			return err
		}
		return finishRun(tx, runID, report, records)
	})
}

// SetRunOutput 记录输出工作簿路径
func (s *Store) SetRunOutput(runID, path string) error {
	_, err := s.db.Exec(`UPDATE runs SET output_path = ? WHERE id = ?`, path, runID)
	if err != nil {
		return fmt.Errorf("failed to set run output: %w", err)
	}
	return nil
}

func finishRun(tx *sql.Tx, runID string, report *parser.RunReport, records []model.Record) error {
	var first, last string
	if len(records) > 0 {
		earliest := lo.MinBy(records, func(a, b model.Record) bool { return a.Month.Before(b.Month) })
		latest := lo.MaxBy(records, func(a, b model.Record) bool { return b.Month.Before(a.Month) })
		first, last = earliest.Month.String(), latest.Month.String()
	}
	res, err := tx.Exec(`
		UPDATE runs SET
			status = ?,
			completed_at = ?,
			total_files = ?,
			imported_files = ?,
			skipped_files = ?,
			error_files = ?,
			total_facts = ?,
			products = ?,
			columns = ?,
			first_month = ?,
			last_month = ?
		WHERE id = ?
	`, RunCompleted, time.Now(),
		report.TotalFiles, report.ImportedFiles, report.SkippedFiles, report.ErrorFiles,
		report.TotalFacts, report.Products, report.Columns,
		first, last, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// InsertRunFiles 写入单文件处理结果
func (s *Store) InsertRunFiles(runID string, files []parser.FileResult) error {
	return s.withTx(func(tx *sql.Tx) error {
		return insertRunFiles(tx, runID, files)
	})
}

func insertRunFiles(tx *sql.Tx, runID string, files []parser.FileResult) error {
	if len(files) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO run_files (run_id, file_name, kind, status, facts, warnings, errors, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, f := range files {
		warnings, err := json.Marshal(lo.Ternary(f.Warnings == nil, []string{}, f.Warnings))
		if err != nil {
			return fmt.Errorf("failed to encode warnings: %w", err)
		}
		errs, err := json.Marshal(lo.Ternary(f.Errors == nil, []string{}, f.Errors))
		if err != nil {
			return fmt.Errorf("failed to encode errors: %w", err)
		}
		if _, err := stmt.Exec(runID, f.FileName, string(f.Kind), f.Status, f.Facts,
			string(warnings), string(errs), f.Duration.Milliseconds()); err != nil {
			return fmt.Errorf("failed to insert run file: %w", err)
		}
	}
	return nil
}

// GetRun 查询单个运行
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(runSelect+` WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns 按开始时间倒序列出运行，limit <= 0 表示不限
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := runSelect + ` ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs failed: %w", err)
	}
	defer rows.Close()

	out := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run failed: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs failed: %w", err)
	}
	return out, nil
}

// CountRuns 运行总数
func (s *Store) CountRuns() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs failed: %w", err)
	}
	return n, nil
}

const runSelect = `
	SELECT id, status, started_at, completed_at,
		total_files, imported_files, skipped_files, error_files,
		total_facts, products, columns,
		first_month, last_month, output_path, error_message
	FROM runs`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var completed sql.NullTime
	if err := row.Scan(&r.ID, &r.Status, &r.StartedAt, &completed,
		&r.TotalFiles, &r.ImportedFiles, &r.SkippedFiles, &r.ErrorFiles,
		&r.TotalFacts, &r.Products, &r.Columns,
		&r.FirstMonth, &r.LastMonth, &r.OutputPath, &r.ErrorMessage); err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

// ListRunFiles 查询运行的单文件结果
func (s *Store) ListRunFiles(runID string) ([]parser.FileResult, error) {
	rows, err := s.db.Query(`
		SELECT file_name, kind, status, facts, warnings, errors, duration_ms
		FROM run_files WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run files failed: %w", err)
	}
	defer rows.Close()

	out := []parser.FileResult{}
	for rows.Next() {
		var f parser.FileResult
		var kind, warnings, errs string
		var ms int64
		if err := rows.Scan(&f.FileName, &kind, &f.Status, &f.Facts, &warnings, &errs, &ms); err != nil {
			return nil, fmt.Errorf("scan run file failed: %w", err)
		}
		f.Kind = parser.SourceKind(kind)
		f.Duration = time.Duration(ms) * time.Millisecond
		if err := json.Unmarshal([]byte(warnings), &f.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings failed: %w", err)
		}
		if err := json.Unmarshal([]byte(errs), &f.Errors); err != nil {
			return nil, fmt.Errorf("decode errors failed: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run files failed: %w", err)
	}
	return out, nil
}
