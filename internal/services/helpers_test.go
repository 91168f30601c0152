package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	sqlite "github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-xp-engine/internal/cache"
	"github.com/tbourn/go-xp-engine/internal/domain"
	"github.com/tbourn/go-xp-engine/internal/upstream"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", "=", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(domain.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rds.Close() })
	return mr, rds
}

// ----- Fake partner -----

type fakePartner struct {
	mu sync.Mutex

	membership *upstream.Membership
	findErr    error
	applyErr   error
	pushErr    error
	applyDelay time.Duration
	// blockApply makes apply calls hang until their context ends.
	blockApply bool

	extendCalls   atomic.Int32
	discountCalls atomic.Int32
	pushCalls     atomic.Int32
	keys          []string
}

func (p *fakePartner) FindActiveMembership(ctx context.Context, tenantID, memberID string) (*upstream.Membership, error) {
	return p.membership, p.findErr
}

func (p *fakePartner) ExtendMembership(ctx context.Context, membershipID string, days int, idemKey string) (string, error) {
	p.extendCalls.Add(1)
	p.record(idemKey)
	if p.applyDelay > 0 {
		time.Sleep(p.applyDelay)
	}
	if p.blockApply {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if p.applyErr != nil {
		return "", p.applyErr
	}
	return fmt.Sprintf("ext_%s_%d", membershipID, days), nil
}

func (p *fakePartner) CreateDiscountCode(ctx context.Context, tenantID, memberID string, percent int, idemKey string) (string, error) {
	p.discountCalls.Add(1)
	p.record(idemKey)
	if p.applyErr != nil {
		return "", p.applyErr
	}
	return fmt.Sprintf("CODE%d", percent), nil
}

func (p *fakePartner) SendPushNotification(ctx context.Context, tenantID, memberID, title, content, idemKey string) error {
	p.pushCalls.Add(1)
	return p.pushErr
}

func (p *fakePartner) record(k string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, k)
}

// ----- Harness -----

type harness struct {
	db      *gorm.DB
	mr      *miniredis.Miniredis
	rds     *redis.Client
	partner *fakePartner
	tasks   *Detached

	engine  *XPEngine
	rewards *RewardDispatcher
	members *Membership
	board   *Leaderboard
	queries *Queries
	ingress *Ingress
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := newTestDB(t)
	mr, rds := newRedis(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	h := &harness{db: db, mr: mr, rds: rds, partner: &fakePartner{}, tasks: NewDetached(5 * time.Second)}
	lbCache := cache.NewLeaderboardCache(rds, 30*time.Second)

	h.engine = NewXPEngine(db, RepoStore{}, cache.NewCooldownStore(rds, time.Minute), lbCache, h.tasks, node)
	h.rewards = NewRewardDispatcher(db, RepoStore{}, h.partner, cache.NewRewardClaims(rds, 30*time.Second), h.tasks)
	h.members = NewMembership(db, RepoStore{})
	h.board = NewLeaderboard(db, RepoStore{}, lbCache)
	h.queries = NewQueries(db, RepoStore{}, h.rewards)
	h.ingress = &Ingress{
		Dedup:   cache.NewDeduper(rds, "wh:", 24*time.Hour),
		Engine:  h.engine,
		Rewards: h.rewards,
		Members: h.members,
		Tasks:   h.tasks,
	}
	t.Cleanup(func() { _ = h.tasks.Wait(context.Background()) })
	return h
}

// drain waits for background tasks started so far.
func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.tasks.Wait(ctx); err != nil {
		t.Fatalf("background tasks did not finish: %v", err)
	}
}

func (h *harness) member(t *testing.T, tenantID, memberID string) domain.Member {
	t.Helper()
	var m domain.Member
	if err := h.db.First(&m, "tenant_id = ? AND member_id = ?", tenantID, memberID).Error; err != nil {
		t.Fatalf("load member %s/%s: %v", tenantID, memberID, err)
	}
	return m
}

func (h *harness) rewardCount(t *testing.T, tenantID, memberID string) int64 {
	t.Helper()
	var n int64
	if err := h.db.Model(&domain.RewardRecord{}).Where("tenant_id = ? AND member_id = ?", tenantID, memberID).Count(&n).Error; err != nil {
		t.Fatalf("count rewards: %v", err)
	}
	return n
}

func intp(v int) *int { return &v }
