package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	activitydomain "github.com/skillforge/skillforge/internal/activity/domain"
	activityservice "github.com/skillforge/skillforge/internal/activity/service"
	"github.com/skillforge/skillforge/internal/cache"
	"github.com/skillforge/skillforge/internal/clock"
	"github.com/skillforge/skillforge/internal/config"
	eventsdomain "github.com/skillforge/skillforge/internal/events/domain"
	eventsservice "github.com/skillforge/skillforge/internal/events/service"
	boardservice "github.com/skillforge/skillforge/internal/leaderboard/service"
	progressionservice "github.com/skillforge/skillforge/internal/progression/service"
	userdomain "github.com/skillforge/skillforge/internal/user/domain"
	userservice "github.com/skillforge/skillforge/internal/user/service"
	xpdomain "github.com/skillforge/skillforge/internal/xp/domain"
	xpservice "github.com/skillforge/skillforge/internal/xp/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	clk    *clock.FakeClock
	node   *snowflake.Node
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&userdomain.Learner{},
		&xpdomain.Transaction{},
		&activitydomain.DailyActivity{},
		&eventsdomain.ProgressionEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	resolver := cache.NewLearnerResolverCache()

	xpSvc := xpservice.NewService(xpservice.Params{DB: db, Log: log, GenID: node})
	activitySvc := activityservice.NewService(activityservice.Params{DB: db, Log: log, GenID: node})
	boardSvc := boardservice.NewService(boardservice.Params{DB: db, Log: log})
	progressionSvc := progressionservice.NewService(progressionservice.Params{
		DB:       db,
		Log:      log,
		Clock:    clk,
		Rules:    config.NewStaticProgressionConfigHolder(config.DefaultProgressionConfig()),
		XP:       xpSvc,
		Activity: activitySvc,
		Outbox:   eventsservice.NewOutbox(eventsservice.Params{DB: db, Log: log, GenID: node}),
		Board:    boardSvc,
		Resolver: resolver,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	NewServer(ServerParams{
		Gin:            engine,
		DB:             db,
		GenID:          node,
		UserSvc:        userservice.NewService(userservice.Params{DB: db, Log: log, GenID: node}),
		XPSvc:          xpSvc,
		ActivitySvc:    activitySvc,
		ProgressionSvc: progressionSvc,
		LeaderboardSvc: boardSvc,
		ResolverCache:  resolver,
	})

	return &testServer{engine: engine, db: db, clk: clk, node: node}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func (ts *testServer) createLearner(t *testing.T, email string) snowflake.ID {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/v1/learners",
		fmt.Sprintf(`{"email":%q,"display_name":"Test Learner"}`, email))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var learner userdomain.Learner
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &learner))
	return learner.ID
}

func TestCreateLearnerEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/learners", `{"email":"ada@example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/learners", `{"email":"ada@example.com"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/learners", `{"email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/learners", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLearnerEndpoint(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createLearner(t, "ada@example.com")

	w := ts.do(t, http.MethodGet, fmt.Sprintf("/v1/learners/%s", id), "")
	require.Equal(t, http.StatusOK, w.Code)

	var learner userdomain.Learner
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &learner))
	assert.Equal(t, "ada@example.com", learner.Email)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/v1/learners/%s", ts.node.Generate()), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/learners/not-a-number", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteLessonEndpoint(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createLearner(t, "ada@example.com")
	body := fmt.Sprintf(`{"learner_id":"%s"}`, id)

	w := ts.do(t, http.MethodPost, "/v1/progression/lessons/lesson-1/complete", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		XPAwarded    int64  `json:"xp_awarded"`
		TotalXP      int64  `json:"total_xp"`
		Level        int    `json:"level"`
		StreakAction string `json:"streak_action"`
		Streak       struct {
			CurrentStreak int `json:"current_streak"`
		} `json:"streak"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, int64(50), result.XPAwarded)
	assert.Equal(t, int64(50), result.TotalXP)
	assert.Equal(t, "started", result.StreakAction)
	assert.Equal(t, 1, result.Streak.CurrentStreak)

	// Replays answer 200 with no additional XP.
	w = ts.do(t, http.MethodPost, "/v1/progression/lessons/lesson-1/complete", body)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, int64(0), result.XPAwarded)
	assert.Equal(t, int64(50), result.TotalXP)
}

func TestIngestRejectsUnknownLearner(t *testing.T) {
	ts := newTestServer(t)

	body := fmt.Sprintf(`{"learner_id":"%s"}`, ts.node.Generate())
	w := ts.do(t, http.MethodPost, "/v1/progression/lessons/lesson-1/complete", body)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/progression/lessons/lesson-1/complete", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuizAndAssessmentEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createLearner(t, "ada@example.com")
	body := fmt.Sprintf(`{"learner_id":"%s"}`, id)

	w := ts.do(t, http.MethodPost, "/v1/progression/quizzes/quiz-1/pass", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/progression/assessments/assessment-1/pass", body)
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		TotalXP int64 `json:"total_xp"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, int64(125), result.TotalXP)
}

func TestActivityPingEndpoint(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createLearner(t, "ada@example.com")
	body := fmt.Sprintf(`{"learner_id":"%s"}`, id)

	w := ts.do(t, http.MethodPost, "/v1/progression/activity", body)
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		XPAwarded int64 `json:"xp_awarded"`
		Streak    struct {
			CurrentStreak int `json:"current_streak"`
		} `json:"streak"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, int64(0), result.XPAwarded)
	assert.Equal(t, 1, result.Streak.CurrentStreak)

	// The ping's deltas land in the day rollup, with the one-lesson
	// default applied.
	body = fmt.Sprintf(`{"learner_id":"%s","time_spent_minutes":10}`, id)
	w = ts.do(t, http.MethodPost, "/v1/progression/activity", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/v1/learners/%s/activity", id), "")
	require.Equal(t, http.StatusOK, w.Code)

	var activity struct {
		Activities []struct {
			LessonsCompleted int64 `json:"lessons_completed"`
			TimeSpentMinutes int64 `json:"time_spent_minutes"`
		} `json:"activities"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &activity))
	require.Len(t, activity.Activities, 1)
	assert.Equal(t, int64(2), activity.Activities[0].LessonsCompleted)
	assert.Equal(t, int64(10), activity.Activities[0].TimeSpentMinutes)

	// Negative deltas are rejected before anything is recorded.
	body = fmt.Sprintf(`{"learner_id":"%s","xp_earned":-1}`, id)
	w = ts.do(t, http.MethodPost, "/v1/progression/activity", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreakBonusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createLearner(t, "ada@example.com")
	body := fmt.Sprintf(`{"learner_id":"%s"}`, id)

	w := ts.do(t, http.MethodPost, "/v1/progression/streaks/7/bonus", body)
	require.Equal(t, http.StatusOK, w.Code)

	var result struct {
		BonusXP   int64 `json:"bonus_xp"`
		TotalXP   int64 `json:"total_xp"`
		Duplicate bool  `json:"duplicate"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, int64(100), result.BonusXP)
	assert.Equal(t, int64(100), result.TotalXP)
	assert.False(t, result.Duplicate)

	// A replay reports the milestone as already paid.
	w = ts.do(t, http.MethodPost, "/v1/progression/streaks/7/bonus", body)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, int64(0), result.BonusXP)
	assert.True(t, result.Duplicate)

	// Lengths with no configured milestone are rejected.
	w = ts.do(t, http.MethodPost, "/v1/progression/streaks/8/bonus", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/progression/streaks/seven/bonus", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestXPInfoAndHistoryEndpoints(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createLearner(t, "ada@example.com")

	for i := 0; i < 3; i++ {
		body := fmt.Sprintf(`{"learner_id":"%s"}`, id)
		w := ts.do(t, http.MethodPost, fmt.Sprintf("/v1/progression/lessons/lesson-%d/complete", i), body)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := ts.do(t, http.MethodGet, fmt.Sprintf("/v1/learners/%s/xp?recent=2", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	var info struct {
		TotalXP            int64             `json:"total_xp"`
		Level              int               `json:"level"`
		LevelName          string            `json:"level_name"`
		RecentTransactions []json.RawMessage `json:"recent_transactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, int64(150), info.TotalXP)
	assert.Equal(t, 2, info.Level)
	assert.Len(t, info.RecentTransactions, 2)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/v1/learners/%s/xp/history?page=1&limit=2", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Total        int64             `json:"total"`
		TotalPages   int               `json:"total_pages"`
		Transactions []json.RawMessage `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Equal(t, int64(3), history.Total)
	assert.Equal(t, 2, history.TotalPages)
	assert.Len(t, history.Transactions, 2)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/v1/learners/%s/xp/history?source=BOGUS", id), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreakEndpoint(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createLearner(t, "ada@example.com")

	body := fmt.Sprintf(`{"learner_id":"%s"}`, id)
	w := ts.do(t, http.MethodPost, "/v1/progression/lessons/lesson-1/complete", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/v1/learners/%s/streak", id), "")
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		CurrentStreak int  `json:"current_streak"`
		ActiveToday   bool `json:"active_today"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 1, status.CurrentStreak)
}

func TestDailyActivityEndpointDefaultWindow(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createLearner(t, "ada@example.com")

	w := ts.do(t, http.MethodGet, fmt.Sprintf("/v1/learners/%s/activity", id), "")
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/v1/learners/%s/activity?from=bogus", id), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeaderboardAndRankEndpoints(t *testing.T) {
	ts := newTestServer(t)
	first := ts.createLearner(t, "first@example.com")
	second := ts.createLearner(t, "second@example.com")

	body := fmt.Sprintf(`{"learner_id":"%s"}`, first)
	w := ts.do(t, http.MethodPost, "/v1/progression/lessons/lesson-1/complete", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/leaderboard?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var board struct {
		Entries []struct {
			LearnerID snowflake.ID `json:"learner_id"`
			TotalXP   int64        `json:"total_xp"`
			Rank      int64        `json:"rank"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board.Entries, 2)
	assert.Equal(t, first, board.Entries[0].LearnerID)
	assert.Equal(t, int64(50), board.Entries[0].TotalXP)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/v1/learners/%s/rank", second), "")
	require.Equal(t, http.StatusOK, w.Code)
	var rank struct {
		Rank int64 `json:"rank"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rank))
	assert.Equal(t, int64(2), rank.Rank)

	w = ts.do(t, http.MethodGet, "/v1/leaderboard?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthRouteNotRegisteredHere(t *testing.T) {
	// Handler registration only covers /v1; the health and metrics routes
	// belong to the engine constructor.
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
