package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"SpyCanvas/internal/game"
	"SpyCanvas/internal/interfaces"
	"SpyCanvas/internal/model"
	"SpyCanvas/internal/repository"

	"github.com/sirupsen/logrus"
)

// historyLimit 事件流水单次返回上限
const historyLimit = 200

// MatchService 对局状态机：校验动作、在对局行锁内完成状态转移、提交后推送通知
type MatchService struct {
	store     *repository.Store
	rating    *RatingService
	publisher interfaces.Publisher
	rules     game.Rules
	logger    *logrus.Logger
	now       func() time.Time
}

// NewMatchService 创建对局服务
func NewMatchService(store *repository.Store, rating *RatingService, publisher interfaces.Publisher, rules game.Rules, logger *logrus.Logger) *MatchService {
	return &MatchService{
		store:     store,
		rating:    rating,
		publisher: publisher,
		rules:     rules,
		logger:    logger,
		now:       time.Now,
	}
}

// GuessResult 猜测或间谍暗号的结果
type GuessResult struct {
	Correct bool            `json:"correct"`
	Match   *game.MatchView `json:"match"`
}

// LeaveResult 离开对局的结果
type LeaveResult struct {
	Cancelled bool `json:"cancelled"`
}

// GetMatch 返回按查看者脱敏后的对局视图
func (s *MatchService) GetMatch(ctx context.Context, playerID, matchID string) (*game.MatchView, error) {
	match, parts, err := s.loadForParticipant(ctx, playerID, matchID)
	if err != nil {
		return nil, err
	}
	proposals, err := s.store.Matches.Proposals(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("查询暗号提案失败: %w", err)
	}
	var round *model.Round
	if match.CurrentRoundNumber > 0 {
		round, err = s.store.Matches.Round(ctx, matchID, match.CurrentRoundNumber)
		if err != nil && !repository.IsNotFound(err) {
			return nil, fmt.Errorf("查询回合失败: %w", err)
		}
	}
	view := game.Project(game.MatchState{
		Match:        *match,
		Participants: parts,
		Proposals:    proposals,
		Round:        round,
	}, playerID)
	return &view, nil
}

// EventView 对局事件流水的一条
type EventView struct {
	ID      uint64          `json:"id"`
	Kind    string          `json:"kind"`
	ActorID string          `json:"actor_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// History 对局事件流水（不含机密）
func (s *MatchService) History(ctx context.Context, playerID, matchID string) ([]EventView, error) {
	if _, _, err := s.loadForParticipant(ctx, playerID, matchID); err != nil {
		return nil, err
	}
	events, err := s.store.Events.List(ctx, matchID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("查询对局事件失败: %w", err)
	}
	out := make([]EventView, 0, len(events))
	for _, e := range events {
		out = append(out, EventView{
			ID:      e.ID,
			Kind:    e.Kind,
			ActorID: e.ActorID,
			Payload: json.RawMessage(e.Payload),
			At:      e.CreatedAt,
		})
	}
	return out, nil
}

// loadForParticipant 依次校验：对局存在、未取消、请求者是参与者
func (s *MatchService) loadForParticipant(ctx context.Context, playerID, matchID string) (*model.Match, []model.Participant, error) {
	if err := game.ValidateID(matchID, "match id"); err != nil {
		return nil, nil, err
	}
	match, err := s.store.Matches.Get(ctx, matchID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, game.NotFound("match not found")
		}
		return nil, nil, fmt.Errorf("查询对局失败: %w", err)
	}
	if match.Status == model.MatchCancelled {
		return nil, nil, game.Gone("this match was cancelled because a player left")
	}
	parts, err := s.store.Matches.Participants(ctx, matchID)
	if err != nil {
		return nil, nil, fmt.Errorf("查询参与者失败: %w", err)
	}
	if findParticipant(parts, playerID) == nil {
		return nil, nil, game.Forbidden("you are not a participant of this match")
	}
	return match, parts, nil
}

// act 所有对局动作的统一入口：先做无锁校验，再在事务内锁定对局行、复核阶段与回合后执行 apply。
// 锁内发现阶段或回合已变说明并发请求先提交，本次返回 Conflict 且不做任何修改。
func (s *MatchService) act(ctx context.Context, playerID, matchID string, action game.Action, apply func(ctx context.Context, mt *matchTx) error) (*matchTx, error) {
	seen, parts, err := s.loadForParticipant(ctx, playerID, matchID)
	if err != nil {
		return nil, err
	}
	if err := game.Authorize(seen.Phase, action, findParticipant(parts, playerID).Role); err != nil {
		return nil, err
	}

	var mt *matchTx
	err = s.store.Transact(ctx, func(tx *repository.Store) error {
		locked, err := tx.Matches.GetForUpdate(ctx, matchID)
		if err != nil {
			return fmt.Errorf("锁定对局失败: %w", err)
		}
		if locked.Status == model.MatchCancelled {
			return game.Gone("this match was cancelled because a player left")
		}
		if action != game.ActionLeave &&
			(locked.Phase != seen.Phase || locked.CurrentRoundNumber != seen.CurrentRoundNumber) {
			return game.Conflict("the match moved on before your action arrived, please refresh")
		}
		lockedParts, err := tx.Matches.Participants(ctx, matchID)
		if err != nil {
			return fmt.Errorf("查询参与者失败: %w", err)
		}
		actor := findParticipant(lockedParts, playerID)
		if actor == nil {
			return game.Forbidden("you are not a participant of this match")
		}
		mt = &matchTx{
			tx:           tx,
			action:       action,
			match:        locked,
			participants: lockedParts,
			actor:        actor,
			now:          s.now(),
		}
		return apply(ctx, mt)
	})
	if err != nil {
		if game.KindOf(err) == game.KindInternal {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"match_id":  matchID,
				"player_id": playerID,
				"action":    action,
			}).Error("对局动作执行失败")
		}
		return nil, err
	}

	s.publish(ctx, mt.pending)
	if mt.finished {
		s.logger.WithField("match_id", matchID).Info("对局结束，开始结算积分")
		if _, err := s.rating.RateMatch(ctx, matchID); err != nil {
			// 对局保持 FINISHED + rated_at 为空，由 RatingService.Run 重试
			s.logger.WithError(err).WithField("match_id", matchID).Warn("积分结算失败，等待重试")
		}
	}
	return mt, nil
}

func (s *MatchService) publish(ctx context.Context, pending []interfaces.Notification) {
	for _, n := range pending {
		s.publisher.Publish(ctx, interfaces.MatchTopic(n.MatchID), n)
	}
}

// MarkReady 准备：GUIDELINES 全员准备进入 KEY_SELECTION；HALFTIME 全员准备后开始换边后的回合
func (s *MatchService) MarkReady(ctx context.Context, playerID, matchID string) (*game.MatchView, error) {
	_, err := s.act(ctx, playerID, matchID, game.ActionReady, func(ctx context.Context, mt *matchTx) error {
		if mt.actor.Ready {
			return game.Conflict("you are already ready")
		}
		if err := mt.tx.Matches.UpdateParticipant(ctx, mt.match.ID, playerID, map[string]interface{}{"ready": true}); err != nil {
			return fmt.Errorf("更新准备状态失败: %w", err)
		}
		mt.actor.Ready = true
		if err := mt.emit(ctx, interfaces.EventReadyUpdate, map[string]interface{}{"player_id": playerID}); err != nil {
			return err
		}
		if !mt.allReady() {
			return nil
		}
		if err := mt.resetReady(ctx); err != nil {
			return err
		}
		switch mt.match.Phase {
		case model.PhaseGuidelines:
			return mt.setPhase(ctx, model.PhaseKeySelection, nil)
		case model.PhaseHalftime:
			if err := mt.setPhase(ctx, model.PhasePlaying, nil); err != nil {
				return err
			}
			return s.startRound(ctx, mt, mt.match.CurrentRoundNumber)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetMatch(ctx, playerID, matchID)
}

// ProposeKey 间谍提交暗号提案，每人一次
func (s *MatchService) ProposeKey(ctx context.Context, playerID, matchID, text string) (*game.MatchView, error) {
	key, err := s.rules.ValidateKey(text)
	if err != nil {
		return nil, err
	}
	_, err = s.act(ctx, playerID, matchID, game.ActionPropose, func(ctx context.Context, mt *matchTx) error {
		p := &model.KeyProposal{
			ID:         newID(),
			MatchID:    mt.match.ID,
			ProposerID: playerID,
			Text:       key,
		}
		if err := mt.tx.Matches.CreateProposal(ctx, p); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return game.Conflict("you have already proposed a key")
			}
			return fmt.Errorf("保存暗号提案失败: %w", err)
		}
		return mt.emit(ctx, interfaces.EventProposalUpdate, map[string]interface{}{
			"proposal_id": p.ID,
			"proposer_id": playerID,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.GetMatch(ctx, playerID, matchID)
}

// Vote 间谍为提案投票；票数达到阈值即定为最终暗号并开始第 1 回合
func (s *MatchService) Vote(ctx context.Context, playerID, matchID, proposalID string) (*game.MatchView, error) {
	if err := game.ValidateID(proposalID, "proposal id"); err != nil {
		return nil, err
	}
	_, err := s.act(ctx, playerID, matchID, game.ActionVote, func(ctx context.Context, mt *matchTx) error {
		proposal, err := mt.tx.Matches.GetProposal(ctx, mt.match.ID, proposalID)
		if err != nil {
			if repository.IsNotFound(err) {
				return game.NotFound("proposal not found in this match")
			}
			return fmt.Errorf("查询暗号提案失败: %w", err)
		}
		votes, err := mt.tx.Matches.CreateVote(ctx, &model.KeyVote{
			MatchID:    mt.match.ID,
			ProposalID: proposal.ID,
			VoterID:    playerID,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return game.Conflict("you have already voted for this proposal")
			}
			return fmt.Errorf("保存投票失败: %w", err)
		}
		if err := mt.emit(ctx, interfaces.EventVoteUpdate, map[string]interface{}{
			"proposal_id": proposal.ID,
			"votes":       votes,
		}); err != nil {
			return err
		}
		if votes < s.rules.VotesToFinal {
			return nil
		}

		key := proposal.Text
		mt.match.FinalKey = &key
		mt.match.CurrentRoundNumber = 1
		if err := mt.setPhase(ctx, model.PhasePlaying, map[string]interface{}{
			"final_key":            key,
			"current_round_number": 1,
		}); err != nil {
			return err
		}
		return s.startRound(ctx, mt, 1)
	})
	if err != nil {
		return nil, err
	}
	return s.GetMatch(ctx, playerID, matchID)
}

// Guess 侦探每回合一次猜测，猜中则侦探方得分并推进回合。
// expectedRound 为客户端看到的回合序号，非 0 且已不是当前回合时返回 Conflict
func (s *MatchService) Guess(ctx context.Context, playerID, matchID, text string, expectedRound int) (*GuessResult, error) {
	guess, err := s.rules.ValidateGuess(text)
	if err != nil {
		return nil, err
	}
	mt, err := s.act(ctx, playerID, matchID, game.ActionGuess, func(ctx context.Context, mt *matchTx) error {
		round, err := s.openRound(ctx, mt, expectedRound)
		if err != nil {
			return err
		}
		mt.correct = game.Matches(guess, round.TargetWord)
		if err := mt.tx.Matches.CreateGuess(ctx, &model.GuessAttempt{
			RoundID:       round.ID,
			ParticipantID: playerID,
			Text:          guess,
			IsCorrect:     mt.correct,
		}); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return game.Conflict("you have already guessed this round")
			}
			return fmt.Errorf("保存猜测失败: %w", err)
		}
		if !mt.correct {
			return mt.emit(ctx, interfaces.EventRoundUpdate, map[string]interface{}{
				"round":   round.RoundNumber,
				"guesser": playerID,
				"correct": false,
			})
		}
		return s.winRound(ctx, mt, round, model.RoleDetective)
	})
	if err != nil {
		return nil, err
	}
	return s.guessResult(ctx, playerID, matchID, mt.correct)
}

// SpySignal 非作画间谍报出暗号，正确则间谍方得分并推进回合；错误不产生任何状态变化
func (s *MatchService) SpySignal(ctx context.Context, playerID, matchID, text string, expectedRound int) (*GuessResult, error) {
	guess, err := s.rules.ValidateGuess(text)
	if err != nil {
		return nil, err
	}
	mt, err := s.act(ctx, playerID, matchID, game.ActionSpySignal, func(ctx context.Context, mt *matchTx) error {
		round, err := s.openRound(ctx, mt, expectedRound)
		if err != nil {
			return err
		}
		if round.DrawerID == playerID {
			return game.Forbidden("the drawing spy cannot send the signal")
		}
		mt.correct = game.Matches(guess, round.TargetWord)
		if !mt.correct {
			return nil
		}
		if err := mt.emit(ctx, interfaces.EventSpySignal, map[string]interface{}{
			"round": round.RoundNumber,
		}); err != nil {
			return err
		}
		return s.winRound(ctx, mt, round, model.RoleSpy)
	})
	if err != nil {
		return nil, err
	}
	return s.guessResult(ctx, playerID, matchID, mt.correct)
}

func (s *MatchService) guessResult(ctx context.Context, playerID, matchID string, correct bool) (*GuessResult, error) {
	view, err := s.GetMatch(ctx, playerID, matchID)
	if err != nil {
		return nil, err
	}
	return &GuessResult{Correct: correct, Match: view}, nil
}

// LeaveMatch 离开对局：在线人数不足 4 人时立即取消对局并释放全部参与者
func (s *MatchService) LeaveMatch(ctx context.Context, playerID, matchID string) (*LeaveResult, error) {
	mt, err := s.act(ctx, playerID, matchID, game.ActionLeave, func(ctx context.Context, mt *matchTx) error {
		if mt.actor.ConnectionStatus == model.ConnDisconnected {
			return nil
		}
		if err := mt.tx.Matches.UpdateParticipant(ctx, mt.match.ID, playerID, map[string]interface{}{
			"connection_status": model.ConnDisconnected,
			"ready":             false,
		}); err != nil {
			return fmt.Errorf("更新连接状态失败: %w", err)
		}
		mt.actor.ConnectionStatus = model.ConnDisconnected
		mt.actor.Ready = false
		if err := mt.emit(ctx, interfaces.EventPlayerLeft, map[string]interface{}{"player_id": playerID}); err != nil {
			return err
		}
		if mt.match.Status == model.MatchFinished || mt.activeCount() >= game.MatchSize {
			return nil
		}
		return s.cancel(ctx, mt)
	})
	if err != nil {
		return nil, err
	}
	if mt.cancelled {
		s.logger.WithFields(logrus.Fields{
			"match_id":  matchID,
			"player_id": playerID,
		}).Info("玩家离开，对局已取消")
	}
	return &LeaveResult{Cancelled: mt.cancelled}, nil
}

func (s *MatchService) cancel(ctx context.Context, mt *matchTx) error {
	if err := mt.setPhase(ctx, model.PhaseFinished, map[string]interface{}{
		"status":   model.MatchCancelled,
		"ended_at": mt.now,
	}); err != nil {
		return err
	}
	mt.match.Status = model.MatchCancelled
	if err := mt.tx.Matches.DeleteParticipants(ctx, mt.match.ID); err != nil {
		return fmt.Errorf("释放参与者失败: %w", err)
	}
	mt.cancelled = true
	return mt.emit(ctx, interfaces.EventMatchCancelled, map[string]interface{}{"reason": "player-left"})
}

// openRound 当前仍在进行的回合，expected 非 0 时必须与之一致
func (s *MatchService) openRound(ctx context.Context, mt *matchTx, expected int) (*model.Round, error) {
	if expected > 0 && expected != mt.match.CurrentRoundNumber {
		return nil, game.Conflict("round %d is already over", expected)
	}
	round, err := mt.tx.Matches.Round(ctx, mt.match.ID, mt.match.CurrentRoundNumber)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, game.Conflict("no round is in progress")
		}
		return nil, fmt.Errorf("查询回合失败: %w", err)
	}
	if round.EndedAt != nil {
		return nil, game.Conflict("this round is already over")
	}
	return round, nil
}

// startRound 创建第 number 回合，作画者按座位在当前间谍中轮换
func (s *MatchService) startRound(ctx context.Context, mt *matchTx, number int) error {
	spies := mt.spies()
	if len(spies) == 0 || mt.match.FinalKey == nil {
		return fmt.Errorf("无法开始第%d回合: spies=%d final_key_set=%v", number, len(spies), mt.match.FinalKey != nil)
	}
	drawer := spies[game.DrawerIndex(number, len(spies))]
	round := &model.Round{
		ID:          newID(),
		MatchID:     mt.match.ID,
		RoundNumber: number,
		DrawerID:    drawer.PlayerID,
		TargetWord:  *mt.match.FinalKey,
		StartedAt:   mt.now,
	}
	if err := mt.tx.Matches.CreateRound(ctx, round); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return game.Conflict("round %d already started", number)
		}
		return fmt.Errorf("创建回合失败: %w", err)
	}
	return mt.emit(ctx, interfaces.EventRoundUpdate, map[string]interface{}{
		"round":     number,
		"drawer_id": drawer.PlayerID,
	})
}

// winRound 两种得分路径共用：加分、关闭回合、推进
func (s *MatchService) winRound(ctx context.Context, mt *matchTx, round *model.Round, team model.Role) error {
	if err := mt.tx.Matches.AddScore(ctx, mt.match.ID, team); err != nil {
		return fmt.Errorf("更新得分失败: %w", err)
	}
	for i := range mt.participants {
		if mt.participants[i].Role == team {
			mt.participants[i].Score++
		}
	}
	if err := mt.tx.Matches.CloseRound(ctx, round.ID, mt.actor.PlayerID, team, mt.now); err != nil {
		return fmt.Errorf("关闭回合失败: %w", err)
	}
	if err := mt.emit(ctx, interfaces.EventRoundUpdate, map[string]interface{}{
		"round":       round.RoundNumber,
		"winner_id":   mt.actor.PlayerID,
		"winner_team": team,
	}); err != nil {
		return err
	}
	return s.advance(ctx, mt)
}

// advance 回合结束后推进：最后一回合结束进入 FINISHED，到达换边回合进入 HALFTIME，否则直接开始下一回合
func (s *MatchService) advance(ctx context.Context, mt *matchTx) error {
	step := s.rules.Advance(mt.match.CurrentRoundNumber)
	switch step.Kind {
	case game.StepFinish:
		mt.finished = true
		mt.match.Status = model.MatchFinished
		return mt.setPhase(ctx, model.PhaseFinished, map[string]interface{}{
			"status":   model.MatchFinished,
			"ended_at": mt.now,
		})

	case game.StepHalftime:
		mt.match.CurrentRoundNumber = step.Round
		if err := mt.setPhase(ctx, model.PhaseHalftime, map[string]interface{}{
			"current_round_number": step.Round,
		}); err != nil {
			return err
		}
		for i := range mt.participants {
			p := &mt.participants[i]
			p.Role = p.Role.Opposite()
			p.Ready = false
			if err := mt.tx.Matches.UpdateParticipant(ctx, mt.match.ID, p.PlayerID, map[string]interface{}{
				"role":  p.Role,
				"ready": false,
			}); err != nil {
				return fmt.Errorf("中场换边失败: %w", err)
			}
		}
		return nil

	default:
		mt.match.CurrentRoundNumber = step.Round
		if err := mt.tx.Matches.Update(ctx, mt.match.ID, map[string]interface{}{
			"current_round_number": step.Round,
		}); err != nil {
			return fmt.Errorf("更新回合序号失败: %w", err)
		}
		return s.startRound(ctx, mt, step.Round)
	}
}
