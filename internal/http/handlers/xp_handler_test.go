package handlers

import (
	"net/http"
	"strconv"
	"testing"
)

func TestAwardXP_AwardsThenCooldown(t *testing.T) {
	s := newStack(t, nil)

	w := s.award(t, "biz", "u1", "message")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	res := decode[AwardResponse](t, w)
	if !res.Awarded || res.XPAwarded != 20 || res.TotalXP != 20 || res.LeveledUp || res.NewLevel != 1 {
		t.Fatalf("unexpected award: %+v", res)
	}

	w = s.award(t, "biz", "u1", "reaction")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second award status=%d", w.Code)
	}
	if got := decode[ErrorResponse](t, w).Code; got != ErrCodeCooldown {
		t.Fatalf("code=%q", got)
	}
	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || secs < 1 || secs > 60 {
		t.Fatalf("Retry-After=%q", w.Header().Get("Retry-After"))
	}
}

func TestAwardXP_LevelUpReported(t *testing.T) {
	s := newStack(t, nil)
	seedMember(t, s.db, "biz", "u2", 240)

	res := decode[AwardResponse](t, s.award(t, "biz", "u2", "message"))
	if !res.LeveledUp || res.OldLevel != 2 || res.NewLevel != 3 || res.TotalXP != 260 {
		t.Fatalf("unexpected award: %+v", res)
	}
	s.drain(t)
}

func TestAwardXP_RejectsBadInput(t *testing.T) {
	s := newStack(t, nil)
	cases := map[string]any{
		"not json":         "{",
		"missing tenant":   AwardRequest{MemberID: "u1", ActivityType: "message"},
		"missing member":   AwardRequest{TenantID: "biz", ActivityType: "message"},
		"unknown activity": AwardRequest{TenantID: "biz", MemberID: "u1", ActivityType: "like"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/xp/award", body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
			}
		})
	}
}
