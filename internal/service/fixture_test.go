package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SpyCanvas/internal/game"
	"SpyCanvas/internal/interfaces"
	"SpyCanvas/internal/model"
	"SpyCanvas/internal/repository"
	"SpyCanvas/internal/testutil"
)

type published struct {
	topic string
	n     interfaces.Notification
}

type recorder struct {
	mu    sync.Mutex
	items []published
}

func (r *recorder) Publish(_ context.Context, topic string, n interfaces.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, published{topic: topic, n: n})
}

func (r *recorder) kinds(topic string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, it := range r.items {
		if it.topic == topic {
			out = append(out, it.n.Kind)
		}
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	store       *repository.Store
	pub         *recorder
	matchmaking *MatchmakingService
	matches     *MatchService
	rating      *RatingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewStore(testutil.NewDB(t))
	pub := &recorder{}
	logger := testutil.Logger()
	rules := game.DefaultRules()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}

	rating := NewRatingService(store, pub, rules, logger)
	matchmaking := NewMatchmakingService(store, pub, rules, logger)
	matches := NewMatchService(store, rating, pub, rules, logger)
	rating.now, matchmaking.now, matches.now = clock.Now, clock.Now, clock.Now

	return &fixture{
		store:       store,
		pub:         pub,
		matchmaking: matchmaking,
		matches:     matches,
		rating:      rating,
	}
}

// seedPlayer 以指定积分创建玩家
func (f *fixture) seedPlayer(t *testing.T, id string, rating int) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.store.Players.Ensure(ctx, id, id); err != nil {
		t.Fatal(err)
	}
	if rating == 1000 {
		return
	}
	if err := f.store.Players.ApplyRating(ctx, id, rating, game.TierFor(rating)); err != nil {
		t.Fatal(err)
	}
}

// startMatch 依次入队 a,b,c,d，最后一人入队时快速成局
func (f *fixture) startMatch(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	var status *QueueStatus
	for _, id := range []string{"a", "b", "c", "d"} {
		var err error
		status, err = f.matchmaking.Enqueue(ctx, id, id)
		if err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	if status.MatchID == "" {
		t.Fatal("fourth enqueue did not form a match")
	}
	return status.MatchID
}

func (f *fixture) readyAll(t *testing.T, matchID string) *game.MatchView {
	t.Helper()
	var view *game.MatchView
	for _, id := range []string{"a", "b", "c", "d"} {
		var err error
		view, err = f.matches.MarkReady(context.Background(), id, matchID)
		if err != nil {
			t.Fatalf("ready %s: %v", id, err)
		}
	}
	return view
}

// toPlaying 全员准备后选定暗号
func (f *fixture) toPlaying(t *testing.T, matchID string) *game.MatchView {
	t.Helper()
	f.readyAll(t, matchID)
	return f.selectKey(t, matchID)
}

// selectKey a 提 FIRE、b 提 WATER，两人都投 FIRE；对局须已在 KEY_SELECTION
func (f *fixture) selectKey(t *testing.T, matchID string) *game.MatchView {
	t.Helper()
	ctx := context.Background()
	view, err := f.matches.ProposeKey(ctx, "a", matchID, "fire")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.matches.ProposeKey(ctx, "b", matchID, " Water "); err != nil {
		t.Fatal(err)
	}
	fire := proposalID(t, view, "FIRE")
	if _, err := f.matches.Vote(ctx, "a", matchID, fire); err != nil {
		t.Fatal(err)
	}
	view, err = f.matches.Vote(ctx, "b", matchID, fire)
	if err != nil {
		t.Fatal(err)
	}
	return view
}

func proposalID(t *testing.T, view *game.MatchView, text string) string {
	t.Helper()
	for _, p := range view.Proposals {
		if p.Text == text {
			return p.ID
		}
	}
	t.Fatalf("proposal %s not visible", text)
	return ""
}

func participant(t *testing.T, view *game.MatchView, playerID string) game.ParticipantView {
	t.Helper()
	for _, p := range view.Participants {
		if p.PlayerID == playerID {
			return p
		}
	}
	t.Fatalf("participant %s missing", playerID)
	return game.ParticipantView{}
}

func assertKind(t *testing.T, err error, want game.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := game.KindOf(err); got != want {
		t.Fatalf("error kind = %s (%v), want %s", got, err, want)
	}
}

func assertRoles(t *testing.T, view *game.MatchView) {
	t.Helper()
	counts := map[model.Role]int{}
	for _, p := range view.Participants {
		counts[p.Role]++
	}
	if counts[model.RoleSpy] != 2 || counts[model.RoleDetective] != 2 {
		t.Fatalf("role split = %v, want 2/2", counts)
	}
}

func isAny(err error, kinds ...game.Kind) bool {
	var e *game.Error
	if !errors.As(err, &e) {
		return false
	}
	for _, k := range kinds {
		if e.Kind == k {
			return true
		}
	}
	return false
}
