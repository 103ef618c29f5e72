package repository

import (
	"context"

	"SpyCanvas/internal/model"

	"gorm.io/gorm"
)

// QueueRepository 匹配队列持久化
type QueueRepository interface {
	// Create 入队，玩家已在队列中返回 ErrDuplicate
	Create(ctx context.Context, e *model.QueueEntry) error
	GetByPlayer(ctx context.Context, playerID string) (*model.QueueEntry, error)
	// DeleteByPlayer 出队，返回删除行数
	DeleteByPlayer(ctx context.Context, playerID string) (int64, error)
	// ListByTier 某段位全部排队者，按入队时间先后
	ListByTier(ctx context.Context, tier model.RankTier) ([]model.QueueEntry, error)
	// FindCandidates 同段位、积分在 [minRating, maxRating] 内的最早 limit 个排队者（排除 excludePlayer）
	FindCandidates(ctx context.Context, tier model.RankTier, excludePlayer string, minRating, maxRating, limit int) ([]model.QueueEntry, error)
	// LockEntries 锁定指定排队行，已不存在的行不会返回
	LockEntries(ctx context.Context, ids []uint64) ([]model.QueueEntry, error)
	// DeleteEntries 删除指定排队行，返回删除行数
	DeleteEntries(ctx context.Context, ids []uint64) (int64, error)
}

type queueRepository struct {
	db *gorm.DB
}

// NewQueueRepository 创建队列仓储
func NewQueueRepository(db *gorm.DB) QueueRepository {
	return &queueRepository{db: db}
}

func (r *queueRepository) Create(ctx context.Context, e *model.QueueEntry) error {
	return translate(r.db.WithContext(ctx).Create(e).Error)
}

func (r *queueRepository) GetByPlayer(ctx context.Context, playerID string) (*model.QueueEntry, error) {
	var e model.QueueEntry
	if err := r.db.WithContext(ctx).Where("player_id = ?", playerID).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *queueRepository) DeleteByPlayer(ctx context.Context, playerID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("player_id = ?", playerID).Delete(&model.QueueEntry{})
	return res.RowsAffected, res.Error
}

func (r *queueRepository) ListByTier(ctx context.Context, tier model.RankTier) ([]model.QueueEntry, error) {
	var list []model.QueueEntry
	if err := r.db.WithContext(ctx).Where("rank_tier = ?", tier).
		Order("enqueued_at ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *queueRepository) FindCandidates(ctx context.Context, tier model.RankTier, excludePlayer string, minRating, maxRating, limit int) ([]model.QueueEntry, error) {
	var list []model.QueueEntry
	if err := r.db.WithContext(ctx).
		Where("rank_tier = ? AND player_id <> ? AND rating BETWEEN ? AND ?", tier, excludePlayer, minRating, maxRating).
		Order("enqueued_at ASC, id ASC").Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *queueRepository) LockEntries(ctx context.Context, ids []uint64) ([]model.QueueEntry, error) {
	var list []model.QueueEntry
	if err := forUpdate(r.db.WithContext(ctx)).Where("id IN ?", ids).
		Order("enqueued_at ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *queueRepository) DeleteEntries(ctx context.Context, ids []uint64) (int64, error) {
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.QueueEntry{})
	return res.RowsAffected, res.Error
}
