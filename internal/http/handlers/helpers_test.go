package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-xp-engine/internal/cache"
	"github.com/tbourn/go-xp-engine/internal/domain"
	"github.com/tbourn/go-xp-engine/internal/services"
	"github.com/tbourn/go-xp-engine/internal/upstream"
	"github.com/tbourn/go-xp-engine/internal/webhook"
)

const testSecret = "whsec_handlers"

func init() { gin.SetMode(gin.TestMode) }

// ---------- partner stub ----------

type stubPartner struct {
	membership *upstream.Membership
}

func (p stubPartner) FindActiveMembership(context.Context, string, string) (*upstream.Membership, error) {
	return p.membership, nil
}

func (stubPartner) ExtendMembership(_ context.Context, membershipID string, days int, _ string) (string, error) {
	return fmt.Sprintf("ext_%s_%d", membershipID, days), nil
}

func (stubPartner) CreateDiscountCode(_ context.Context, _, _ string, percent int, _ string) (string, error) {
	return fmt.Sprintf("CODE%d", percent), nil
}

func (stubPartner) SendPushNotification(context.Context, string, string, string, string, string) error {
	return nil
}

// ---------- full stack ----------

type stack struct {
	db    *gorm.DB
	mr    *miniredis.Miniredis
	tasks *services.Detached
	r     *gin.Engine
}

func newStack(t *testing.T, partner services.Partner) *stack {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(domain.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rds.Close() })

	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	if partner == nil {
		partner = stubPartner{}
	}

	tasks := services.NewDetached(5 * time.Second)
	t.Cleanup(func() { _ = tasks.Wait(context.Background()) })

	lb := cache.NewLeaderboardCache(rds, 30*time.Second)
	engine := services.NewXPEngine(db, services.RepoStore{}, cache.NewCooldownStore(rds, time.Minute), lb, tasks, node)
	rewards := services.NewRewardDispatcher(db, services.RepoStore{}, partner, cache.NewRewardClaims(rds, 30*time.Second), tasks)
	ingress := &services.Ingress{
		Verifier: webhook.NewVerifier(testSecret, 300*time.Second),
		Dedup:    cache.NewDeduper(rds, "wh:", 24*time.Hour),
		Engine:   engine,
		Rewards:  rewards,
		Members:  services.NewMembership(db, services.RepoStore{}),
		Tasks:    tasks,
	}
	h := New(ingress, ingress, services.NewLeaderboard(db, services.RepoStore{}, lb),
		services.NewQueries(db, services.RepoStore{}, rewards), Options{WebhookBudget: 2 * time.Second})

	r := gin.New()
	r.POST("/webhooks/partner", h.ReceiveWebhook)
	r.POST("/xp/award", h.AwardXP)
	r.GET("/tenants/:tenantId/leaderboard", h.GetLeaderboard)
	r.GET("/tenants/:tenantId/members/:memberId", h.GetMemberProgress)
	r.GET("/tenants/:tenantId/members/:memberId/rewards", h.ListMemberRewards)
	r.GET("/tenants/:tenantId/xp-config", h.GetXpConfig)
	r.PUT("/tenants/:tenantId/xp-config", h.PutXpConfig)
	r.GET("/tenants/:tenantId/rewards", h.GetRewardTable)
	r.PUT("/tenants/:tenantId/rewards", h.PutRewardTable)
	r.GET("/tenants/:tenantId/rewards/undelivered", h.ListUndeliveredRewards)

	return &stack{db: db, mr: mr, tasks: tasks, r: r}
}

func (s *stack) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tasks.Wait(ctx); err != nil {
		t.Fatalf("background tasks: %v", err)
	}
}

func (s *stack) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *stack) award(t *testing.T, tenant, member, activity string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(http.MethodPost, "/xp/award", AwardRequest{TenantID: tenant, MemberID: member, ActivityType: activity}, nil)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func seedMember(t *testing.T, db *gorm.DB, tenant, member string, xp uint64) {
	t.Helper()
	m := domain.Member{TenantID: tenant, MemberID: member, XP: xp, Level: 1}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("seed member: %v", err)
	}
}
