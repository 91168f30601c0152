package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-xp-engine/internal/domain"
	"github.com/tbourn/go-xp-engine/internal/repo"
)

func seedMembers(t *testing.T, h *harness, xp map[string]uint64) {
	t.Helper()
	now := time.Now()
	for id, amount := range xp {
		if _, err := repo.ApplyAward(context.Background(), h.db, "t1", id, domain.ActivityMessage, amount, now); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
}

func TestLeaderboard_RanksAreContiguousAndOneBased(t *testing.T) {
	h := newHarness(t)
	seedMembers(t, h, map[string]uint64{"a": 10, "b": 300, "c": 300, "d": 50})

	got, err := h.board.Get(context.Background(), "t1", FilterAllTime, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := []string{"b", "c", "d", "a"}
	if len(got) != len(want) {
		t.Fatalf("entries = %+v", got)
	}
	for i, e := range got {
		if e.Rank != i+1 || e.MemberID != want[i] {
			t.Fatalf("entry %d = %+v; want rank %d member %s", i, e, i+1, want[i])
		}
	}
	if got[0].Level != 3 {
		t.Fatalf("level of 300 xp = %d", got[0].Level)
	}

	top, _ := h.board.Get(context.Background(), "t1", FilterAllTime, 2)
	if len(top) != 2 || top[1].MemberID != "c" {
		t.Fatalf("limit 2 = %+v", top)
	}
}

func TestLeaderboard_ServedFromCacheUntilInvalidated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedMembers(t, h, map[string]uint64{"a": 10})

	if _, err := h.board.Get(ctx, "t1", FilterAllTime, 10); err != nil {
		t.Fatalf("warm: %v", err)
	}
	// Written behind the engine's back: the snapshot must still be served.
	seedMembers(t, h, map[string]uint64{"z": 999})
	got, _ := h.board.Get(ctx, "t1", FilterAllTime, 10)
	if len(got) != 1 {
		t.Fatalf("expected cached snapshot, got %+v", got)
	}

	// An award through the engine invalidates every filter of the tenant.
	if _, err := h.engine.AwardXp(ctx, "t1", "b", domain.ActivityMessage); err != nil {
		t.Fatalf("award: %v", err)
	}
	got, _ = h.board.Get(ctx, "t1", FilterAllTime, 10)
	if len(got) != 3 || got[0].MemberID != "z" {
		t.Fatalf("expected rebuilt snapshot, got %+v", got)
	}
}

func TestLeaderboard_WeekUsesActivityWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seedMembers(t, h, map[string]uint64{"old": 500, "new": 5})

	// Only "new" has activity inside the window.
	row := &domain.ActivityLog{ID: 1, TenantID: "t1", MemberID: "new", ActivityType: domain.ActivityMessage, XPAwarded: 5, CreatedAt: time.Now().UTC()}
	if err := repo.InsertActivityLog(ctx, h.db, row); err != nil {
		t.Fatalf("insert log: %v", err)
	}
	row = &domain.ActivityLog{ID: 2, TenantID: "t1", MemberID: "old", ActivityType: domain.ActivityMessage, XPAwarded: 500, CreatedAt: time.Now().AddDate(0, 0, -20).UTC()}
	_ = repo.InsertActivityLog(ctx, h.db, row)

	week, err := h.board.Get(ctx, "t1", FilterWeek, 10)
	if err != nil || len(week) != 1 || week[0].MemberID != "new" || week[0].XP != 5 {
		t.Fatalf("week = %+v, %v", week, err)
	}
	month, _ := h.board.Get(ctx, "t1", FilterMonth, 10)
	if len(month) != 2 || month[0].MemberID != "old" {
		t.Fatalf("month = %+v", month)
	}
}

func TestLeaderboard_Validation(t *testing.T) {
	h := newHarness(t)
	if _, err := h.board.Get(context.Background(), "t1", "decade", 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad filter: %v", err)
	}
	if _, err := h.board.Get(context.Background(), "t1", FilterAllTime, 1001); !errors.Is(err, ErrValidation) {
		t.Fatalf("limit > 1000: %v", err)
	}
}

func TestLeaderboard_CacheOutageFallsBackToStore(t *testing.T) {
	h := newHarness(t)
	seedMembers(t, h, map[string]uint64{"a": 10})
	h.mr.Close()

	got, err := h.board.Get(context.Background(), "t1", FilterAllTime, 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("got %+v, %v", got, err)
	}
}
