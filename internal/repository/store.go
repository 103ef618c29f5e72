package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicate 唯一约束冲突
var ErrDuplicate = errors.New("duplicate key")

// Store 聚合全部仓储；Transact 内拿到的 Store 绑定同一事务
type Store struct {
	db      *gorm.DB
	Players PlayerRepository
	Queue   QueueRepository
	Matches MatchRepository
	Events  EventRepository
}

// NewStore 创建 Store
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:      db,
		Players: NewPlayerRepository(db),
		Queue:   NewQueueRepository(db),
		Matches: NewMatchRepository(db),
		Events:  NewEventRepository(db),
	}
}

// Transact 在单个事务内执行 fn，fn 返回错误则整体回滚（错误原样返回）
func (s *Store) Transact(ctx context.Context, fn func(tx *Store) error) error {
	// 开启事务
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("开启事务失败: %w", tx.Error)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(NewStore(tx)); err != nil {
		tx.Rollback()
		return err
	}

	// 提交事务
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// Ping 健康检查
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("获取SQL DB失败: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// IsNotFound 记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// translate 把各驱动的唯一约束冲突统一为 ErrDuplicate
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	msg := err.Error()
	if strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}
