package repo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-xp-engine/internal/domain"
)

func reward(member string, level uint32, status domain.RewardStatus) *domain.RewardRecord {
	return &domain.RewardRecord{
		MemberID:      member,
		TenantID:      "t1",
		LevelAchieved: level,
		RewardType:    domain.RewardFreeDays,
		RewardValue:   3,
		Status:        status,
	}
}

func TestCreateReward_DuplicateMilestone(t *testing.T) {
	db := newTestDB(t, &domain.RewardRecord{})
	ctx := context.Background()

	first := reward("u1", 5, domain.RewardDelivered)
	if err := CreateReward(ctx, db, first); err != nil {
		t.Fatalf("CreateReward: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("ID/CreatedAt not filled: %+v", first)
	}

	if err := CreateReward(ctx, db, reward("u1", 5, domain.RewardFailed)); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	ok, err := RewardExists(ctx, db, "u1", "t1", 5)
	if err != nil || !ok {
		t.Fatalf("RewardExists = %v, %v", ok, err)
	}
	ok, err = RewardExists(ctx, db, "u1", "t1", 10)
	if err != nil || ok {
		t.Fatalf("RewardExists(level 10) = %v, %v", ok, err)
	}
}

func TestCreateReward_ConcurrentDuplicatesStoreOne(t *testing.T) {
	db := newTestDB(t, &domain.RewardRecord{})
	ctx := context.Background()

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := CreateReward(ctx, db, reward("u1", 5, domain.RewardDelivered))
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, ErrDuplicate) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one insert to win, got %d", wins)
	}
}

func TestListMemberRewards_And_Undelivered(t *testing.T) {
	db := newTestDB(t, &domain.RewardRecord{})
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	recs := []*domain.RewardRecord{
		reward("u1", 5, domain.RewardDelivered),
		reward("u1", 10, domain.RewardFailed),
		reward("u2", 5, domain.RewardFailed),
		reward("u3", 5, domain.RewardSkipped),
	}
	for i, r := range recs {
		r.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := CreateReward(ctx, db, r); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	mine, err := ListMemberRewards(ctx, db, "t1", "u1")
	if err != nil {
		t.Fatalf("ListMemberRewards: %v", err)
	}
	if len(mine) != 2 || mine[0].LevelAchieved != 10 || mine[1].LevelAchieved != 5 {
		t.Fatalf("unexpected member rewards: %+v", mine)
	}

	total, err := CountUndeliveredRewards(ctx, db, "t1")
	if err != nil || total != 2 {
		t.Fatalf("CountUndeliveredRewards = %d, %v", total, err)
	}
	page, err := ListUndeliveredRewardsPage(ctx, db, "t1", 0, 1)
	if err != nil {
		t.Fatalf("ListUndeliveredRewardsPage: %v", err)
	}
	if len(page) != 1 || page[0].MemberID != "u1" || page[0].Status != domain.RewardFailed {
		t.Fatalf("unexpected first page: %+v", page)
	}
	page, _ = ListUndeliveredRewardsPage(ctx, db, "t1", 1, 1)
	if len(page) != 1 || page[0].MemberID != "u2" {
		t.Fatalf("unexpected second page: %+v", page)
	}
}
