package game

import "SpyCanvas/internal/model"

// Action 玩家可发起的对局动作
type Action string

const (
	ActionReady     Action = "ready"
	ActionPropose   Action = "propose"
	ActionVote      Action = "vote"
	ActionGuess     Action = "guess"
	ActionSpySignal Action = "spy-signal"
	ActionLeave     Action = "leave"
)

// actionRoles 动作对角色的要求，未列出表示任意角色
var actionRoles = map[Action]model.Role{
	ActionPropose:   model.RoleSpy,
	ActionVote:      model.RoleSpy,
	ActionGuess:     model.RoleDetective,
	ActionSpySignal: model.RoleSpy,
}

// transitions 阶段 × 动作 → 动作提交后可能到达的阶段
var transitions = map[model.Phase]map[Action][]model.Phase{
	model.PhaseGuidelines: {
		ActionReady: {model.PhaseGuidelines, model.PhaseKeySelection},
		ActionLeave: {model.PhaseGuidelines, model.PhaseFinished},
	},
	model.PhaseKeySelection: {
		ActionPropose: {model.PhaseKeySelection},
		ActionVote:    {model.PhaseKeySelection, model.PhasePlaying},
		ActionLeave:   {model.PhaseKeySelection, model.PhaseFinished},
	},
	model.PhasePlaying: {
		ActionGuess:     {model.PhasePlaying, model.PhaseHalftime, model.PhaseFinished},
		ActionSpySignal: {model.PhasePlaying, model.PhaseHalftime, model.PhaseFinished},
		ActionLeave:     {model.PhasePlaying, model.PhaseFinished},
	},
	model.PhaseHalftime: {
		ActionReady: {model.PhaseHalftime, model.PhasePlaying},
		ActionLeave: {model.PhaseHalftime, model.PhaseFinished},
	},
	model.PhaseFinished: {
		ActionLeave: {model.PhaseFinished},
	},
}

// Authorize 先校验角色再校验阶段
func Authorize(phase model.Phase, action Action, role model.Role) error {
	if want, ok := actionRoles[action]; ok && want != role {
		return Forbidden("only a %s can %s", roleName(want), action)
	}
	if _, ok := transitions[phase][action]; !ok {
		return InvalidPhase("cannot %s during %s", action, phase)
	}
	return nil
}

// CanTransition 判断 action 能否把对局从 from 推到 to
func CanTransition(from model.Phase, action Action, to model.Phase) bool {
	for _, p := range transitions[from][action] {
		if p == to {
			return true
		}
	}
	return false
}

func roleName(r model.Role) string {
	if r == model.RoleSpy {
		return "spy"
	}
	return "detective"
}
