package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"strategy-lab/internal/domain"
)

// BarRepository 按序列保存与读取K线。
type BarRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBarRepository 创建K线仓储并初始化表结构。
func NewBarRepository(store *Store, logger *zap.Logger) (*BarRepository, error) {
	if store == nil {
		return nil, errors.New("store: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	err := store.exec(
		`CREATE TABLE IF NOT EXISTS bars (
			series_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			adj_close REAL NOT NULL,
			volume REAL NOT NULL,
			extra TEXT,
			PRIMARY KEY (series_id, ts)
		);`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: 初始化K线表失败: %w", err)
	}

	return &BarRepository{db: store.DB(), logger: logger}, nil
}

// SaveBars 写入或覆盖同一时间戳的K线。
func (r *BarRepository) SaveBars(ctx context.Context, seriesID string, bars []domain.Bar) (err error) {
	if seriesID == "" {
		return errors.New("store: seriesID 不能为空")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO bars (series_id, ts, open, high, low, close, adj_close, volume, extra)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: 预编译K线写入失败: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		var extra sql.NullString
		if len(bar.Extra) > 0 {
			raw, marshalErr := json.Marshal(bar.Extra)
			if marshalErr != nil {
				err = fmt.Errorf("store: 序列化附加字段失败: %w", marshalErr)
				return err
			}
			extra = sql.NullString{String: string(raw), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx,
			seriesID, bar.Timestamp.UnixNano(), bar.Open, bar.High, bar.Low, bar.Close, bar.AdjClose, bar.Volume, extra,
		); err != nil {
			err = fmt.Errorf("store: 写入K线失败: %w", err)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: 提交事务失败: %w", err)
	}

	r.logger.Debug("K线已保存", zap.String("series", seriesID), zap.Int("bars", len(bars)))
	return nil
}

// LoadSeries 按时间顺序读取整个序列。没有数据时返回 ErrInsufficientData。
func (r *BarRepository) LoadSeries(ctx context.Context, seriesID string) (domain.Series, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ts, open, high, low, close, adj_close, volume, extra
		 FROM bars WHERE series_id = ? ORDER BY ts ASC`, seriesID)
	if err != nil {
		return domain.Series{}, fmt.Errorf("store: 查询K线失败: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var (
			ts    int64
			bar   domain.Bar
			extra sql.NullString
		)
		if err := rows.Scan(&ts, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.AdjClose, &bar.Volume, &extra); err != nil {
			return domain.Series{}, fmt.Errorf("store: 读取K线失败: %w", err)
		}
		bar.Timestamp = time.Unix(0, ts).UTC()
		if extra.Valid {
			if err := json.Unmarshal([]byte(extra.String), &bar.Extra); err != nil {
				return domain.Series{}, fmt.Errorf("store: 解析附加字段失败: %w", err)
			}
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return domain.Series{}, fmt.Errorf("store: 遍历K线失败: %w", err)
	}

	if len(bars) == 0 {
		return domain.Series{}, fmt.Errorf("store: 序列 %q 没有K线数据: %w", seriesID, domain.ErrInsufficientData)
	}

	return domain.Series{ID: seriesID, Bars: bars}, nil
}
