package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"SpyCanvas/internal/game"
	"SpyCanvas/internal/interfaces"
	"SpyCanvas/internal/model"
	"SpyCanvas/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func newID() string { return uuid.NewString() }

// MatchmakingService 匹配调度：按段位分组、容差内凑满 4 人即原子地建局
type MatchmakingService struct {
	store     *repository.Store
	publisher interfaces.Publisher
	rules     game.Rules
	logger    *logrus.Logger
	now       func() time.Time
}

// NewMatchmakingService 创建匹配服务
func NewMatchmakingService(store *repository.Store, publisher interfaces.Publisher, rules game.Rules, logger *logrus.Logger) *MatchmakingService {
	return &MatchmakingService{
		store:     store,
		publisher: publisher,
		rules:     rules,
		logger:    logger,
		now:       time.Now,
	}
}

// QueueStatus 玩家的排队状态
type QueueStatus struct {
	InQueue    bool           `json:"in_queue"`
	RankTier   model.RankTier `json:"rank_tier,omitempty"`
	Rating     int            `json:"rating,omitempty"`
	EnqueuedAt *time.Time     `json:"enqueued_at,omitempty"`
	MatchID    string         `json:"match_id,omitempty"`
}

// TickReport 一次调度的结果
type TickReport struct {
	Scanned int      `json:"scanned"`
	Skipped int      `json:"skipped"`
	Matches []string `json:"matches"`
}

// Enqueue 入队：已在队列中幂等返回；已在进行中的对局返回 Conflict；入队后立即尝试快速成局
func (s *MatchmakingService) Enqueue(ctx context.Context, playerID, username string) (*QueueStatus, error) {
	player, err := s.store.Players.Ensure(ctx, playerID, username)
	if err != nil {
		return nil, fmt.Errorf("初始化玩家失败: %w", err)
	}
	activeID, err := s.store.Matches.ActiveMatchIDForPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("查询进行中对局失败: %w", err)
	}
	if activeID != "" {
		return nil, game.Conflict("you are already in an active match")
	}

	entry := &model.QueueEntry{
		PlayerID:   playerID,
		RankTier:   player.RankTier,
		Rating:     player.Rating,
		EnqueuedAt: s.now(),
	}
	if err := s.store.Queue.Create(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return s.Status(ctx, playerID)
		}
		return nil, fmt.Errorf("入队失败: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"player_id": playerID,
		"tier":      entry.RankTier,
		"rating":    entry.Rating,
	}).Info("玩家进入匹配队列")

	matchID, err := s.tryFastMatch(ctx, entry)
	if err != nil {
		// 快速成局失败不影响排队，留给下一次调度
		s.logger.WithError(err).WithField("player_id", playerID).Warn("快速成局失败")
	}
	if matchID != "" {
		return &QueueStatus{MatchID: matchID, RankTier: entry.RankTier, Rating: entry.Rating}, nil
	}
	return s.Status(ctx, playerID)
}

// LeaveQueue 出队，返回是否确实在队列中
func (s *MatchmakingService) LeaveQueue(ctx context.Context, playerID string) (bool, error) {
	n, err := s.store.Queue.DeleteByPlayer(ctx, playerID)
	if err != nil {
		return false, fmt.Errorf("出队失败: %w", err)
	}
	if n > 0 {
		s.logger.WithField("player_id", playerID).Info("玩家离开匹配队列")
	}
	return n > 0, nil
}

// Status 排队状态；不在队列时带出进行中的对局 ID
func (s *MatchmakingService) Status(ctx context.Context, playerID string) (*QueueStatus, error) {
	entry, err := s.store.Queue.GetByPlayer(ctx, playerID)
	if err == nil {
		at := entry.EnqueuedAt
		return &QueueStatus{InQueue: true, RankTier: entry.RankTier, Rating: entry.Rating, EnqueuedAt: &at}, nil
	}
	if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("查询排队状态失败: %w", err)
	}
	activeID, err := s.store.Matches.ActiveMatchIDForPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("查询进行中对局失败: %w", err)
	}
	return &QueueStatus{MatchID: activeID}, nil
}

// RunTick 扫描全部段位，各段位并发按入队先后每 4 人一组尝试建局；不满足容差的组原样留在队列
func (s *MatchmakingService) RunTick(ctx context.Context) (*TickReport, error) {
	report := &TickReport{Matches: []string{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, tier := range model.AllTiers {
		tier := tier
		g.Go(func() error {
			entries, err := s.store.Queue.ListByTier(gctx, tier)
			if err != nil {
				return fmt.Errorf("查询%s段位队列失败: %w", tier, err)
			}
			var created []string
			skipped := 0
			for i := 0; i+game.MatchSize <= len(entries); i += game.MatchSize {
				group := entries[i : i+game.MatchSize]
				if !game.WithinTolerance(ratingsOf(group), s.rules.Tolerance) {
					skipped++
					continue
				}
				matchID, err := s.createMatch(gctx, group)
				if err != nil {
					s.logger.WithError(err).WithField("tier", tier).Warn("建局失败，本组保留在队列")
					skipped++
					continue
				}
				created = append(created, matchID)
			}

			mu.Lock()
			report.Scanned += len(entries)
			report.Skipped += skipped
			report.Matches = append(report.Matches, created...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	if len(report.Matches) > 0 {
		s.logger.Infof("匹配调度：扫描 %d 人，新建 %d 局", report.Scanned, len(report.Matches))
	}
	return report, nil
}

// tryFastMatch 以新入队者为基准，找同段位 ±容差内最早的 3 人直接建局
func (s *MatchmakingService) tryFastMatch(ctx context.Context, entry *model.QueueEntry) (string, error) {
	tol := s.rules.Tolerance
	candidates, err := s.store.Queue.FindCandidates(ctx, entry.RankTier, entry.PlayerID,
		entry.Rating-tol, entry.Rating+tol, game.MatchSize-1)
	if err != nil {
		return "", fmt.Errorf("查询候选玩家失败: %w", err)
	}
	if len(candidates) < game.MatchSize-1 {
		return "", nil
	}
	group := append(candidates, *entry)
	if !game.WithinTolerance(ratingsOf(group), tol) {
		return "", nil
	}
	return s.createMatch(ctx, group)
}

// createMatch 单事务：锁定 4 个排队行、建局与参与者、删除排队行；任一行已不存在则整体回滚
func (s *MatchmakingService) createMatch(ctx context.Context, group []model.QueueEntry) (string, error) {
	ids := make([]uint64, 0, len(group))
	for _, e := range group {
		ids = append(ids, e.ID)
	}
	matchID := newID()
	var players []string

	err := s.store.Transact(ctx, func(tx *repository.Store) error {
		locked, err := tx.Queue.LockEntries(ctx, ids)
		if err != nil {
			return fmt.Errorf("锁定排队记录失败: %w", err)
		}
		if len(locked) != game.MatchSize {
			return game.Conflict("queue changed while forming the match")
		}
		sort.SliceStable(locked, func(i, j int) bool {
			if locked[i].EnqueuedAt.Equal(locked[j].EnqueuedAt) {
				return locked[i].ID < locked[j].ID
			}
			return locked[i].EnqueuedAt.Before(locked[j].EnqueuedAt)
		})

		now := s.now()
		match := &model.Match{
			ID:           matchID,
			Status:       model.MatchActive,
			Phase:        model.PhaseGuidelines,
			RoundsToPlay: s.rules.RoundsToPlay,
			StartedAt:    now,
		}
		parts := make([]model.Participant, 0, game.MatchSize)
		players = players[:0]
		for seat, e := range locked {
			role := game.SeatRole(seat)
			parts = append(parts, model.Participant{
				PlayerID:         e.PlayerID,
				Seat:             seat,
				Role:             role,
				StartingRole:     role,
				ConnectionStatus: model.ConnJoined,
				RatingSnapshot:   e.Rating,
			})
			players = append(players, e.PlayerID)
		}
		if err := tx.Matches.Create(ctx, match, parts); err != nil {
			return fmt.Errorf("创建对局失败: %w", err)
		}

		n, err := tx.Queue.DeleteEntries(ctx, ids)
		if err != nil {
			return fmt.Errorf("删除排队记录失败: %w", err)
		}
		if n != int64(game.MatchSize) {
			return game.Conflict("queue changed while forming the match")
		}
		return tx.Events.Append(ctx, matchID, interfaces.EventMatchFound, "", map[string]interface{}{
			"players": players,
		})
	})
	if err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"match_id": matchID,
		"players":  players,
	}).Info("匹配成功，对局已创建")
	for _, p := range players {
		s.publisher.Publish(ctx, interfaces.PlayerTopic(p), interfaces.Notification{
			Kind:    interfaces.EventMatchFound,
			MatchID: matchID,
			At:      s.now(),
		})
	}
	return matchID, nil
}

func ratingsOf(entries []model.QueueEntry) []int {
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Rating)
	}
	return out
}
