package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"strategy-lab/internal/backtest"
)

// RunRecord 为回测记录的摘要。
type RunRecord struct {
	ID           string
	SeriesID     string
	Label        string
	Result       backtest.Result
	FinalEquity  float64
	DegradedBars int
	Params       json.RawMessage
	CreatedAt    time.Time
}

// RunRepository 记录回测结果、交易与净值曲线。
type RunRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewRunRepository 创建回测记录仓储并初始化表结构。
func NewRunRepository(store *Store, logger *zap.Logger) (*RunRepository, error) {
	if store == nil {
		return nil, errors.New("store: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	err := store.exec(
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id TEXT PRIMARY KEY,
			series_id TEXT NOT NULL,
			label TEXT NOT NULL,
			total_return REAL NOT NULL,
			annualized_return REAL NOT NULL,
			sharpe_ratio REAL NOT NULL,
			max_drawdown REAL NOT NULL,
			win_rate REAL NOT NULL,
			total_trades INTEGER NOT NULL,
			profit_factor REAL,
			avg_win REAL NOT NULL,
			avg_loss REAL NOT NULL,
			final_equity REAL NOT NULL,
			degraded_bars INTEGER NOT NULL,
			params TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_trades (
			run_id TEXT NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			side TEXT NOT NULL,
			entry_index INTEGER NOT NULL,
			exit_index INTEGER NOT NULL,
			entry_time TEXT NOT NULL,
			exit_time TEXT NOT NULL,
			quantity REAL NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			commission REAL NOT NULL,
			pnl REAL NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_equity (
			run_id TEXT NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			equity REAL NOT NULL,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_runs_created ON backtest_runs(created_at);`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: 初始化回测记录表失败: %w", err)
	}

	return &RunRepository{
		db:     store.DB(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// SaveRun 在一个事务内写入回测摘要、交易与净值，返回记录ID。
// params 序列化为 JSON 与结果一同保存。
func (r *RunRepository) SaveRun(ctx context.Context, label string, params any, report backtest.Report) (id string, err error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("store: 序列化回测参数失败: %w", err)
	}

	id = uuid.NewString()
	res := report.Result

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO backtest_runs (id, series_id, label, total_return, annualized_return, sharpe_ratio,
			max_drawdown, win_rate, total_trades, profit_factor, avg_win, avg_loss, final_equity,
			degraded_bars, params, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, report.SeriesID, label, res.TotalReturn, res.AnnualizedReturn, res.SharpeRatio,
		res.MaxDrawdown, res.WinRate, res.TotalTrades, profitFactorValue(res.ProfitFactor), res.AvgWin, res.AvgLoss,
		report.FinalEquity, report.DegradedBars, string(raw), r.now().Format(time.RFC3339Nano),
	); err != nil {
		err = fmt.Errorf("store: 写入回测摘要失败: %w", err)
		return "", err
	}

	for i, t := range report.Trades {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO backtest_trades (run_id, seq, side, entry_index, exit_index, entry_time, exit_time,
				quantity, entry_price, exit_price, commission, pnl)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, string(t.Side), t.EntryIndex, t.ExitIndex,
			t.EntryTime.UTC().Format(time.RFC3339Nano), t.ExitTime.UTC().Format(time.RFC3339Nano),
			t.Quantity, t.EntryPrice, t.ExitPrice, t.Commission, t.PnL,
		); err != nil {
			err = fmt.Errorf("store: 写入交易记录失败: %w", err)
			return "", err
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO backtest_equity (run_id, idx, equity) VALUES (?, ?, ?)`)
	if err != nil {
		err = fmt.Errorf("store: 预编译净值写入失败: %w", err)
		return "", err
	}
	defer stmt.Close()
	for i, v := range report.Equity {
		if _, err = stmt.ExecContext(ctx, id, i, v); err != nil {
			err = fmt.Errorf("store: 写入净值失败: %w", err)
			return "", err
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("store: 提交事务失败: %w", err)
	}

	r.logger.Debug("回测记录已保存",
		zap.String("run_id", id),
		zap.String("label", label),
		zap.Int("trades", len(report.Trades)),
	)
	return id, nil
}

// ListRuns 按时间倒序返回最近的回测记录。
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, series_id, label, total_return, annualized_return, sharpe_ratio, max_drawdown,
			win_rate, total_trades, profit_factor, avg_win, avg_loss, final_equity, degraded_bars,
			params, created_at
		 FROM backtest_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: 查询回测记录失败: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			rec       RunRecord
			pf        sql.NullFloat64
			params    string
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.SeriesID, &rec.Label,
			&rec.Result.TotalReturn, &rec.Result.AnnualizedReturn, &rec.Result.SharpeRatio, &rec.Result.MaxDrawdown,
			&rec.Result.WinRate, &rec.Result.TotalTrades, &pf, &rec.Result.AvgWin, &rec.Result.AvgLoss,
			&rec.FinalEquity, &rec.DegradedBars, &params, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("store: 读取回测记录失败: %w", err)
		}
		rec.Result.ProfitFactor = math.Inf(1)
		if pf.Valid {
			rec.Result.ProfitFactor = pf.Float64
		}
		rec.Params = json.RawMessage(params)
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: 遍历回测记录失败: %w", err)
	}

	return records, nil
}

// Equity 读取某次回测的净值曲线。
func (r *RunRepository) Equity(ctx context.Context, runID string) ([]float64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT equity FROM backtest_equity WHERE run_id = ? ORDER BY idx ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("store: 查询净值失败: %w", err)
	}
	defer rows.Close()

	var equity []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("store: 读取净值失败: %w", err)
		}
		equity = append(equity, v)
	}
	return equity, rows.Err()
}

// profitFactorValue 把 +Inf 存为 NULL。
func profitFactorValue(pf float64) any {
	if math.IsInf(pf, 1) {
		return nil
	}
	return pf
}
