package service

import (
	"context"
	"fmt"

	"SpyCanvas/internal/model"
	"SpyCanvas/internal/repository"
)

// PlayerService 玩家资料
type PlayerService struct {
	store *repository.Store
}

// NewPlayerService 创建玩家服务
func NewPlayerService(store *repository.Store) *PlayerService {
	return &PlayerService{store: store}
}

// Profile 玩家资料
type Profile struct {
	ID            string         `json:"id"`
	Username      string         `json:"username"`
	Rating        int            `json:"rating"`
	RankTier      model.RankTier `json:"rank_tier"`
	MatchesPlayed int            `json:"matches_played"`
}

// Profile 返回玩家资料，首次访问时按默认积分创建
func (s *PlayerService) Profile(ctx context.Context, playerID, username string) (*Profile, error) {
	p, err := s.store.Players.Ensure(ctx, playerID, username)
	if err != nil {
		return nil, fmt.Errorf("查询玩家失败: %w", err)
	}
	return &Profile{
		ID:            p.ID,
		Username:      p.Username,
		Rating:        p.Rating,
		RankTier:      p.RankTier,
		MatchesPlayed: p.MatchesPlayed,
	}, nil
}
