package service

import (
	"context"
	"fmt"
	"time"

	"SpyCanvas/internal/game"
	"SpyCanvas/internal/interfaces"
	"SpyCanvas/internal/model"
	"SpyCanvas/internal/repository"
)

// matchTx 持有对局行锁期间的全部状态，提交后统一推送通知
type matchTx struct {
	tx           *repository.Store
	action       game.Action
	match        *model.Match
	participants []model.Participant
	actor        *model.Participant
	now          time.Time
	pending      []interfaces.Notification

	finished  bool
	cancelled bool
	correct   bool
}

// emit 写事件流水并登记提交后的通知
func (m *matchTx) emit(ctx context.Context, kind string, data map[string]interface{}) error {
	actorID := ""
	if m.actor != nil {
		actorID = m.actor.PlayerID
	}
	if err := m.tx.Events.Append(ctx, m.match.ID, kind, actorID, data); err != nil {
		return err
	}
	m.pending = append(m.pending, interfaces.Notification{
		Kind:    kind,
		MatchID: m.match.ID,
		ActorID: actorID,
		Data:    data,
		At:      m.now,
	})
	return nil
}

// setPhase 按转移表切换阶段，extra 为同一次更新写入的其它字段
func (m *matchTx) setPhase(ctx context.Context, to model.Phase, extra map[string]interface{}) error {
	from := m.match.Phase
	if from != to && !game.CanTransition(from, m.action, to) {
		return fmt.Errorf("非法阶段转移: %s -(%s)-> %s", from, m.action, to)
	}
	fields := map[string]interface{}{"phase": to}
	for k, v := range extra {
		fields[k] = v
	}
	if err := m.tx.Matches.Update(ctx, m.match.ID, fields); err != nil {
		return fmt.Errorf("更新对局阶段失败: %w", err)
	}
	m.match.Phase = to
	if from == to {
		return nil
	}
	return m.emit(ctx, interfaces.EventPhaseChange, map[string]interface{}{
		"from":  from,
		"phase": to,
		"round": m.match.CurrentRoundNumber,
	})
}

// spies 当前为间谍的参与者，按座位排序
func (m *matchTx) spies() []model.Participant {
	var out []model.Participant
	for _, p := range m.participants {
		if p.Role == model.RoleSpy {
			out = append(out, p)
		}
	}
	return out
}

func (m *matchTx) activeCount() int {
	n := 0
	for _, p := range m.participants {
		if p.ConnectionStatus == model.ConnJoined {
			n++
		}
	}
	return n
}

// allReady 满员且全部在线参与者都已准备
func (m *matchTx) allReady() bool {
	if m.activeCount() != game.MatchSize {
		return false
	}
	for _, p := range m.participants {
		if p.ConnectionStatus == model.ConnJoined && !p.Ready {
			return false
		}
	}
	return true
}

func (m *matchTx) resetReady(ctx context.Context) error {
	if err := m.tx.Matches.ResetReady(ctx, m.match.ID); err != nil {
		return fmt.Errorf("重置准备状态失败: %w", err)
	}
	for i := range m.participants {
		m.participants[i].Ready = false
	}
	return nil
}

func findParticipant(parts []model.Participant, playerID string) *model.Participant {
	for i := range parts {
		if parts[i].PlayerID == playerID {
			return &parts[i]
		}
	}
	return nil
}
