package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/lingvo-backend/internal/common"
	"serotonyl.ru/lingvo-backend/internal/features/achievements"
	"serotonyl.ru/lingvo-backend/internal/features/gamification"
	"serotonyl.ru/lingvo-backend/internal/features/streak"
	"serotonyl.ru/lingvo-backend/internal/features/xp"
	"serotonyl.ru/lingvo-backend/internal/http/response"
)

type fakeService struct {
	err error

	gotUser   int64
	gotEvent  gamification.Event
	gotLocked bool
}

func (f *fakeService) ProcessEvent(_ context.Context, userID int64, ev gamification.Event) (*gamification.EventResult, error) {
	f.gotUser, f.gotEvent = userID, ev
	if f.err != nil {
		return nil, f.err
	}
	return &gamification.EventResult{
		UserID:       userID,
		EventType:    ev.Type,
		XP:           &xp.AwardResult{ActionType: ev.Type, AwardedAmount: 50, TotalXP: 50, CurrentLevel: 2, LeveledUp: true, PreviousLevel: 1},
		Achievements: []achievements.Entry{},
	}, nil
}

func (f *fakeService) Achievements(_ context.Context, userID int64, includeLocked bool) (*achievements.Overview, error) {
	f.gotUser, f.gotLocked = userID, includeLocked
	if f.err != nil {
		return nil, f.err
	}
	return &achievements.Overview{Unlocked: []achievements.Entry{}, TotalAvailable: 3}, nil
}

func (f *fakeService) StreakStatus(_ context.Context, userID int64) (*streak.StatusResult, error) {
	f.gotUser = userID
	if f.err != nil {
		return nil, f.err
	}
	return &streak.StatusResult{Status: streak.StatusAtRisk, CurrentStreak: 4}, nil
}

func (f *fakeService) Progression(_ context.Context, userID int64) (*xp.Summary, error) {
	f.gotUser = userID
	if f.err != nil {
		return nil, f.err
	}
	return &xp.Summary{Progression: xp.Progression{UserID: userID, TotalXP: 70, CurrentLevel: 2}}, nil
}

func newTestRouter(svc Gamification) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewGamificationHandler(svc)
	r := gin.New()
	r.POST("/users/:id/events", h.ProcessEvent)
	r.GET("/users/:id/achievements", h.GetAchievements)
	r.GET("/users/:id/streak", h.GetStreak)
	r.GET("/users/:id/progression", h.GetProgression)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.APIError {
	t.Helper()
	var env response.ErrorEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("ответ не в конверте ошибки: %v (%s)", err, w.Body.String())
	}
	return env.Error
}

func TestProcessEventOK(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc)

	w := do(r, http.MethodPost, "/users/42/events",
		`{"event_type":"quiz_passed","reference_id":"q1","context":{"score":100}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if svc.gotUser != 42 || svc.gotEvent.Type != "quiz_passed" || svc.gotEvent.ReferenceID != "q1" {
		t.Errorf("сервис получил user=%d event=%+v", svc.gotUser, svc.gotEvent)
	}
	if svc.gotEvent.Context["score"] != float64(100) {
		t.Errorf("context = %v", svc.gotEvent.Context)
	}

	var res gamification.EventResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.XP == nil || res.XP.CurrentLevel != 2 || !res.XP.LeveledUp {
		t.Errorf("xp = %+v", res.XP)
	}
}

func TestProcessEventBadInput(t *testing.T) {
	r := newTestRouter(&fakeService{})

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode string
	}{
		{"non-numeric user", "/users/abc/events", `{"event_type":"lesson_completed"}`, response.CodeInvalidUser},
		{"zero user", "/users/0/events", `{"event_type":"lesson_completed"}`, response.CodeInvalidUser},
		{"missing event_type", "/users/1/events", `{}`, response.CodeInvalidRequest},
		{"broken json", "/users/1/events", `{"event_type":`, response.CodeInvalidRequest},
		{"event_type too long", "/users/1/events", `{"event_type":"` + strings.Repeat("e", 65) + `"}`, response.CodeInvalidRequest},
		{"reference_id too long", "/users/1/events", `{"event_type":"lesson_completed","reference_id":"` + strings.Repeat("r", 256) + `"}`, response.CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			if got := decodeError(t, w).Code; got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		retryable  bool
	}{
		{"unknown action", fmt.Errorf("%w: \"dance\"", common.ErrUnknownActionType), http.StatusUnprocessableEntity, response.CodeUnknownAction, false},
		{"invalid user", common.ErrInvalidUser, http.StatusBadRequest, response.CodeInvalidUser, false},
		{"invalid amount", common.ErrInvalidAmount, http.StatusUnprocessableEntity, response.CodeInvalidAmount, false},
		{"conflict", fmt.Errorf("обёртка: %w", common.ErrStorageConflict), http.StatusConflict, response.CodeConflict, true},
		{"unavailable", common.ErrStorageUnavailable, http.StatusServiceUnavailable, response.CodeUnavailable, true},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, response.CodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeService{err: tt.err})
			w := do(r, http.MethodPost, "/users/1/events", `{"event_type":"lesson_completed"}`)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			apiErr := decodeError(t, w)
			if apiErr.Code != tt.wantCode || apiErr.Retryable != tt.retryable {
				t.Errorf("error = %+v, want code %q retryable %v", apiErr, tt.wantCode, tt.retryable)
			}
			if tt.retryable && w.Header().Get("Retry-After") == "" {
				t.Error("нет заголовка Retry-After")
			}
			if tt.wantStatus == http.StatusInternalServerError && strings.Contains(apiErr.Message, "boom") {
				t.Error("внутренняя ошибка утекла в ответ")
			}
		})
	}
}

func TestReadEndpoints(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc)

	w := do(r, http.MethodGet, "/users/7/achievements?include_locked=true", "")
	if w.Code != http.StatusOK || !svc.gotLocked || svc.gotUser != 7 {
		t.Errorf("achievements: status %d, locked %v, user %d", w.Code, svc.gotLocked, svc.gotUser)
	}

	w = do(r, http.MethodGet, "/users/7/achievements?include_locked=maybe", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("include_locked=maybe: status = %d, want 400", w.Code)
	}

	w = do(r, http.MethodGet, "/users/7/streak", "")
	var st streak.StatusResult
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil || st.Status != streak.StatusAtRisk {
		t.Errorf("streak: %s (%v)", w.Body.String(), err)
	}

	w = do(r, http.MethodGet, "/users/7/progression", "")
	var p xp.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil || p.TotalXP != 70 {
		t.Errorf("progression: %s (%v)", w.Body.String(), err)
	}

	w = do(r, http.MethodGet, "/users/-3/streak", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative id: status = %d, want 400", w.Code)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, tt := range []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"db down", fmt.Errorf("%w: нет связи", common.ErrStorageUnavailable), http.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/healthcheck", NewHealthHandler(fakePinger{err: tt.err}).HealthCheck)
			if w := do(r, http.MethodGet, "/healthcheck", ""); w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
