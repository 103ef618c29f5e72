package game

import (
	"fmt"
	"math"

	"SpyCanvas/internal/model"
)

// MatchSize 每局固定人数（2 间谍 + 2 侦探）
const MatchSize = 4

// 与表结构列宽一致：暗号相关列 varchar(32)，猜测列 varchar(64)
const (
	keyColumnWidth   = 32
	guessColumnWidth = 64
)

// Rules 对局与匹配规则
type Rules struct {
	RoundsToPlay   int
	HalftimeRound  int
	VotesToFinal   int
	MaxKeyLength   int
	MaxGuessLength int
	RatingDelta    int
	Tolerance      int
}

// DefaultRules 4 回合、第 3 回合前换边、±25 分、±100 容差
func DefaultRules() Rules {
	return Rules{
		RoundsToPlay:   4,
		HalftimeRound:  3,
		VotesToFinal:   2,
		MaxKeyLength:   20,
		MaxGuessLength: 50,
		RatingDelta:    25,
		Tolerance:      100,
	}
}

// Validate 拒绝会让对局无法进行或写不进表的规则
func (r Rules) Validate() error {
	if r.RoundsToPlay < 2 {
		return fmt.Errorf("rounds_to_play 至少为 2，当前 %d", r.RoundsToPlay)
	}
	if r.HalftimeRound < 2 || r.HalftimeRound > r.RoundsToPlay {
		return fmt.Errorf("halftime_round 须在 2..%d 之间，当前 %d", r.RoundsToPlay, r.HalftimeRound)
	}
	if r.VotesToFinal < 1 || r.VotesToFinal > MatchSize/2 {
		return fmt.Errorf("votes_to_final 须在 1..%d 之间（间谍人数），当前 %d", MatchSize/2, r.VotesToFinal)
	}
	if r.MaxKeyLength < 1 || r.MaxKeyLength > keyColumnWidth {
		return fmt.Errorf("max_key_length 须在 1..%d 之间，当前 %d", keyColumnWidth, r.MaxKeyLength)
	}
	if r.MaxGuessLength < 1 || r.MaxGuessLength > guessColumnWidth {
		return fmt.Errorf("max_guess_length 须在 1..%d 之间，当前 %d", guessColumnWidth, r.MaxGuessLength)
	}
	if r.RatingDelta < 0 || r.Tolerance < 0 {
		return fmt.Errorf("rating.delta 与 matchmaking.tolerance 不能为负数")
	}
	return nil
}

// StepKind 回合结束后的推进方式
type StepKind int

const (
	StepNextRound StepKind = iota
	StepHalftime
	StepFinish
)

// Step 回合结束后的下一步，Round 为推进后的回合序号
type Step struct {
	Kind  StepKind
	Round int
}

// Advance 根据刚结束的回合序号计算下一步
func (r Rules) Advance(current int) Step {
	if current >= r.RoundsToPlay {
		return Step{Kind: StepFinish, Round: current}
	}
	next := current + 1
	if next == r.HalftimeRound {
		return Step{Kind: StepHalftime, Round: next}
	}
	return Step{Kind: StepNextRound, Round: next}
}

// DrawerIndex 第 round 回合的作画间谍在按座位排序的间谍列表中的下标
func DrawerIndex(round, spyCount int) int {
	if spyCount <= 0 || round <= 0 {
		return 0
	}
	return (round - 1) % spyCount
}

// SeatRole 按入队顺序分配开局角色：前两位间谍，后两位侦探
func SeatRole(seat int) model.Role {
	if seat < MatchSize/2 {
		return model.RoleSpy
	}
	return model.RoleDetective
}

// WithinTolerance 组内每个积分与均值的偏差都不超过 tolerance
func WithinTolerance(ratings []int, tolerance int) bool {
	if len(ratings) == 0 {
		return false
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	mean := float64(sum) / float64(len(ratings))
	for _, r := range ratings {
		if math.Abs(float64(r)-mean) > float64(tolerance) {
			return false
		}
	}
	return true
}
