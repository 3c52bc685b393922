package meta

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrNoHistory   = errors.New("no history for file")
	ErrRunNotFound = errors.New("run not found")
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// RecordRun 在一个事务里写入 Run 及其全部 Outcome
func (r *Repository) RecordRun(ctx context.Context, run *Run) error {
	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		return nil
	})
}

// RecentRuns 按开始时间倒序返回最近的运行 (含 Outcome)
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	err := r.db.GetConn().WithContext(ctx).
		Preload("Outcomes", func(db *gorm.DB) *gorm.DB { return db.Order("outcomes.id") }).
		Order("started_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// GetRun 按 ID 读取一次运行 (含 Outcome)
func (r *Repository) GetRun(ctx context.Context, id uint) (*Run, error) {
	var run Run
	err := r.db.GetConn().WithContext(ctx).
		Preload("Outcomes", func(db *gorm.DB) *gorm.DB { return db.Order("outcomes.id") }).
		First(&run, id).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// LastCommitted 返回某个文件最近一次成功提交的记录
func (r *Repository) LastCommitted(ctx context.Context, file string) (*Outcome, error) {
	var out Outcome
	err := r.db.GetConn().WithContext(ctx).
		Joins("JOIN runs ON runs.id = outcomes.run_id").
		Where("outcomes.file = ? AND outcomes.committed = ?", file, true).
		Order("runs.started_at DESC").
		Order("outcomes.id DESC").
		First(&out).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
