package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"SpyCanvas/internal/game"
	"SpyCanvas/internal/interfaces"
	"SpyCanvas/internal/model"
	"SpyCanvas/internal/repository"

	"github.com/sirupsen/logrus"
)

// unratedBatch 每轮重试最多处理的对局数
const unratedBatch = 50

// RatingService 积分结算：对已结束对局幂等地写入新积分，失败的由 Run 定期重试
type RatingService struct {
	store     *repository.Store
	publisher interfaces.Publisher
	delta     int
	logger    *logrus.Logger
	now       func() time.Time
}

// NewRatingService 创建积分结算服务
func NewRatingService(store *repository.Store, publisher interfaces.Publisher, rules game.Rules, logger *logrus.Logger) *RatingService {
	return &RatingService{
		store:     store,
		publisher: publisher,
		delta:     rules.RatingDelta,
		logger:    logger,
		now:       time.Now,
	}
}

// RatingReport 一次结算的结果
type RatingReport struct {
	MatchID      string              `json:"match_id"`
	AlreadyRated bool                `json:"already_rated"`
	NotFinished  bool                `json:"not_finished,omitempty"`
	Winner       model.Role          `json:"winner,omitempty"`
	TeamScores   map[model.Role]int  `json:"team_scores,omitempty"`
	Changes      []game.RatingChange `json:"changes,omitempty"`
}

// RateMatch 结算单个对局；对局未结束或 rated_at 非空时不做任何修改直接返回，重复调用与调用一次等价
func (s *RatingService) RateMatch(ctx context.Context, matchID string) (*RatingReport, error) {
	report := &RatingReport{MatchID: matchID}
	err := s.store.Transact(ctx, func(tx *repository.Store) error {
		match, err := tx.Matches.GetForUpdate(ctx, matchID)
		if err != nil {
			if repository.IsNotFound(err) {
				return game.NotFound("match not found")
			}
			return fmt.Errorf("锁定对局失败: %w", err)
		}
		if match.Status != model.MatchFinished {
			report.NotFinished = true
			return nil
		}
		if match.RatedAt != nil {
			report.AlreadyRated = true
			return nil
		}

		parts, err := tx.Matches.Participants(ctx, matchID)
		if err != nil {
			return fmt.Errorf("查询参与者失败: %w", err)
		}
		entries := make([]game.RatingEntry, 0, len(parts))
		for _, p := range parts {
			entries = append(entries, game.RatingEntry{
				PlayerID:  p.PlayerID,
				Team:      p.StartingRole,
				FinalRole: p.Role,
				Snapshot:  p.RatingSnapshot,
				Score:     p.Score,
			})
		}
		outcome := game.Rate(entries, s.delta)

		// 固定加锁顺序
		sort.Slice(outcome.Changes, func(i, j int) bool {
			return outcome.Changes[i].PlayerID < outcome.Changes[j].PlayerID
		})
		for _, c := range outcome.Changes {
			if _, err := tx.Players.GetForUpdate(ctx, c.PlayerID); err != nil {
				if !repository.IsNotFound(err) {
					return fmt.Errorf("锁定玩家失败: %w", err)
				}
				if _, err := tx.Players.Ensure(ctx, c.PlayerID, ""); err != nil {
					return fmt.Errorf("创建玩家失败: %w", err)
				}
			}
			if err := tx.Players.ApplyRating(ctx, c.PlayerID, c.New, c.Tier); err != nil {
				return fmt.Errorf("写入积分失败: %w, player_id: %s", err, c.PlayerID)
			}
		}

		if err := tx.Matches.Update(ctx, matchID, map[string]interface{}{"rated_at": s.now()}); err != nil {
			return fmt.Errorf("标记已结算失败: %w", err)
		}
		report.Winner = outcome.Winner
		report.TeamScores = outcome.TeamScores
		report.Changes = outcome.Changes
		return tx.Events.Append(ctx, matchID, interfaces.EventMatchRated, "", ratedPayload(outcome))
	})
	if err != nil {
		return nil, err
	}
	if report.AlreadyRated || report.NotFinished {
		return report, nil
	}

	payload := ratedPayload(game.RatingOutcome{Winner: report.Winner, TeamScores: report.TeamScores})
	s.logger.WithFields(logrus.Fields{
		"match_id": matchID,
		"winner":   payload["winner"],
	}).Info("对局积分结算完成")
	s.publisher.Publish(ctx, interfaces.MatchTopic(matchID), interfaces.Notification{
		Kind:    interfaces.EventMatchRated,
		MatchID: matchID,
		Data:    payload,
		At:      s.now(),
	})
	return report, nil
}

func ratedPayload(o game.RatingOutcome) map[string]interface{} {
	return map[string]interface{}{
		"winner":          o.Winner,
		"spy_score":       o.TeamScores[model.RoleSpy],
		"detective_score": o.TeamScores[model.RoleDetective],
	}
}

// Run 重试所有已结束但未结算的对局，返回本轮成功结算数
func (s *RatingService) Run(ctx context.Context) (int, error) {
	matches, err := s.store.Matches.ListUnrated(ctx, unratedBatch)
	if err != nil {
		return 0, fmt.Errorf("ListUnrated: %w", err)
	}
	rated := 0
	for _, m := range matches {
		report, err := s.RateMatch(ctx, m.ID)
		if err != nil {
			s.logger.WithError(err).WithField("match_id", m.ID).Warn("积分结算重试失败")
			continue
		}
		if !report.AlreadyRated && !report.NotFinished {
			rated++
		}
	}
	if rated > 0 {
		s.logger.Infof("积分结算重试：完成 %d 个对局", rated)
	}
	return rated, nil
}
