package repository

import (
	"context"

	"SpyCanvas/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlayerRepository 玩家持久化
type PlayerRepository interface {
	// Ensure 首次见到的玩家以默认积分创建，已存在则原样返回
	Ensure(ctx context.Context, id, username string) (*model.Player, error)
	Get(ctx context.Context, id string) (*model.Player, error)
	// GetForUpdate 锁定玩家行（结算用）
	GetForUpdate(ctx context.Context, id string) (*model.Player, error)
	// ApplyRating 写入新积分与段位，并累加已结算对局数
	ApplyRating(ctx context.Context, id string, rating int, tier model.RankTier) error
}

type playerRepository struct {
	db *gorm.DB
}

// NewPlayerRepository 创建玩家仓储
func NewPlayerRepository(db *gorm.DB) PlayerRepository {
	return &playerRepository{db: db}
}

func (r *playerRepository) Ensure(ctx context.Context, id, username string) (*model.Player, error) {
	p := &model.Player{
		ID:       id,
		Username: username,
		Rating:   1000,
		RankTier: model.TierBronze,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(p).Error; err != nil {
		return nil, err
	}
	got, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if username != "" && got.Username != username {
		if err := r.db.WithContext(ctx).Model(&model.Player{}).Where("id = ?", id).
			Update("username", username).Error; err != nil {
			return nil, err
		}
		got.Username = username
	}
	return got, nil
}

func (r *playerRepository) Get(ctx context.Context, id string) (*model.Player, error) {
	var p model.Player
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *playerRepository) GetForUpdate(ctx context.Context, id string) (*model.Player, error) {
	var p model.Player
	if err := forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *playerRepository) ApplyRating(ctx context.Context, id string, rating int, tier model.RankTier) error {
	return r.db.WithContext(ctx).Model(&model.Player{}).Where("id = ?", id).Updates(map[string]interface{}{
		"rating":         rating,
		"rank_tier":      tier,
		"matches_played": gorm.Expr("matches_played + 1"),
	}).Error
}
