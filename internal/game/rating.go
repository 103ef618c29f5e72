package game

import "SpyCanvas/internal/model"

// TierFor 按积分阈值计算段位
func TierFor(rating int) model.RankTier {
	switch {
	case rating >= 2000:
		return model.TierDiamond
	case rating >= 1500:
		return model.TierGold
	case rating >= 1200:
		return model.TierSilver
	default:
		return model.TierBronze
	}
}

// RatingEntry 参与结算的单个玩家，Team 为开局角色，FinalRole 为终局时角色
type RatingEntry struct {
	PlayerID  string
	Team      model.Role
	FinalRole model.Role
	Snapshot  int
	Score     int
}

// RatingChange 单个玩家的结算结果
type RatingChange struct {
	PlayerID string
	Old      int
	New      int
	Tier     model.RankTier
}

// RatingOutcome 整局结算结果，Winner 为胜方的开局角色
type RatingOutcome struct {
	Winner     model.Role
	TeamScores map[model.Role]int
	Changes    []RatingChange
}

// Rate 胜方每人快照积分 +delta，负方 -delta；结果与输入顺序无关。
// 比分相同时判终局持侦探身份的一方获胜（即终局间谍未能胜出）
func Rate(entries []RatingEntry, delta int) RatingOutcome {
	scores := map[model.Role]int{model.RoleSpy: 0, model.RoleDetective: 0}
	for _, e := range entries {
		// 同队成员分数相同，取最大值即队伍赢下的回合数
		if e.Score > scores[e.Team] {
			scores[e.Team] = e.Score
		}
	}

	out := RatingOutcome{TeamScores: scores}
	switch {
	case scores[model.RoleSpy] > scores[model.RoleDetective]:
		out.Winner = model.RoleSpy
	case scores[model.RoleDetective] > scores[model.RoleSpy]:
		out.Winner = model.RoleDetective
	default:
		out.Winner = finalDetectives(entries)
	}

	for _, e := range entries {
		next := e.Snapshot - delta
		if e.Team == out.Winner {
			next = e.Snapshot + delta
		}
		out.Changes = append(out.Changes, RatingChange{
			PlayerID: e.PlayerID,
			Old:      e.Snapshot,
			New:      next,
			Tier:     TierFor(next),
		})
	}
	return out
}

// finalDetectives 终局时为侦探的一方的开局角色；没有终局角色信息时按已换边处理
func finalDetectives(entries []RatingEntry) model.Role {
	for _, e := range entries {
		if e.FinalRole == model.RoleDetective {
			return e.Team
		}
	}
	return model.RoleSpy
}
