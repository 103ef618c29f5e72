package model

// Role 对局内角色
type Role string

const (
	RoleSpy       Role = "SPY"
	RoleDetective Role = "DETECTIVE"
)

// Opposite 返回中场换边后的角色
func (r Role) Opposite() Role {
	if r == RoleSpy {
		return RoleDetective
	}
	return RoleSpy
}

// Phase 对局阶段
type Phase string

const (
	PhaseGuidelines   Phase = "GUIDELINES"
	PhaseKeySelection Phase = "KEY_SELECTION"
	PhasePlaying      Phase = "PLAYING"
	PhaseHalftime     Phase = "HALFTIME"
	PhaseFinished     Phase = "FINISHED"
)

// MatchStatus 对局状态
type MatchStatus string

const (
	MatchActive    MatchStatus = "ACTIVE"
	MatchCancelled MatchStatus = "CANCELLED"
	MatchFinished  MatchStatus = "FINISHED"
)

// ConnectionStatus 参与者连接状态
type ConnectionStatus string

const (
	ConnJoined       ConnectionStatus = "JOINED"
	ConnDisconnected ConnectionStatus = "DISCONNECTED"
)

// RankTier 段位
type RankTier string

const (
	TierBronze  RankTier = "BRONZE"
	TierSilver  RankTier = "SILVER"
	TierGold    RankTier = "GOLD"
	TierDiamond RankTier = "DIAMOND"
)

// AllTiers 按从低到高排列的全部段位
var AllTiers = []RankTier{TierBronze, TierSilver, TierGold, TierDiamond}
