package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizspin-backend/internal/config"
	"github.com/stemsi/quizspin-backend/internal/handler"
	"github.com/stemsi/quizspin-backend/internal/middleware"
	"github.com/stemsi/quizspin-backend/internal/model"
	"github.com/stemsi/quizspin-backend/internal/repository"
	"github.com/stemsi/quizspin-backend/internal/service"
	"github.com/stemsi/quizspin-backend/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBank = `{
  "Matematika": [{
    "Receh": [
      {"tipe": "Pilihan Ganda", "soal": "1 + 1 = ?", "pg_a": "A. 1", "pg_b": "B. 2", "pg_c": "C. 3", "pg_d": "D. 4", "jawaban": "B. 2", "waktu": 20},
      {"tipe": "Pilihan Ganda", "soal": "2 + 2 = ?", "pg_a": "A. 4", "pg_b": "B. 5", "pg_c": "C. 6", "pg_d": "D. 7", "jawaban": "A. 4", "waktu": 20}
    ],
    "Sedang": [],
    "Sulit": [
      {"tipe": "Isian", "soal": "12 x 12 = ?", "jawaban": 144, "waktu": 45}
    ]
  }]
}`

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
	Metadata struct {
		RequestID string `json:"request_id"`
	} `json:"metadata"`
}

type testServer struct {
	engine    *gin.Engine
	store     *service.SessionStore
	streamsDn chan struct{}
}

func newTestServer(t *testing.T, bankJSON string) *testServer {
	t.Helper()

	var src repository.BankSource
	if bankJSON != "" {
		path := filepath.Join(t.TempDir(), "bank.json")
		require.NoError(t, os.WriteFile(path, []byte(bankJSON), 0o644))
		src = repository.NewFileBankSource(path)
	} else {
		src = repository.NewFileBankSource(filepath.Join(t.TempDir(), "missing.json"))
	}

	cfg := &config.Config{
		GinMode:           gin.TestMode,
		BankCacheTTL:      5 * time.Minute,
		DrawRatePerMinute: 1000,
	}

	codec, err := service.NewSessionCodec("router-test-secret-0123456789", time.Hour)
	require.NoError(t, err)

	log := zerolog.Nop()
	bank := service.NewBankService(nil, src, nil, cfg.BankCacheTTL, log)
	store := service.NewSessionStore(codec)
	quiz := service.NewQuizService(store, bank, service.NewQuestionSelector(nil), log)

	ctx, cancel := context.WithCancel(context.Background())
	streamsDone := make(chan struct{})
	t.Cleanup(func() {
		cancel()
		select {
		case <-streamsDone:
		default:
			close(streamsDone)
		}
	})

	cookie := middleware.CookieConfig{Name: middleware.SessionCookieName}
	handlers := &Handlers{
		Session:  handler.NewSessionHandler(store, quiz, cookie, log),
		Question: handler.NewQuestionHandler(quiz, cookie, log),
		Bank:     handler.NewBankHandler(bank, log),
		WS:       handler.NewWSHandler(bank, log, nil, streamsDone),
	}

	return &testServer{
		engine:    SetupRouter(store, middleware.NewRateLimiter(ctx, cfg.DrawRatePerMinute, time.Minute), handlers, cfg),
		store:     store,
		streamsDn: streamsDone,
	}
}

// do performs a request, carrying cookie if set, and returns the recorder.
func (s *testServer) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, r)
	return w
}

// cookieFor signs state into a session cookie.
func (s *testServer) cookieFor(t *testing.T, state model.SessionState) *http.Cookie {
	t.Helper()
	carrier, err := s.store.Write(state)
	require.NoError(t, err)
	return &http.Cookie{Name: middleware.SessionCookieName, Value: carrier.Token}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func sessionOf(t *testing.T, env envelope) model.SessionState {
	t.Helper()
	var body struct {
		Session model.SessionState `json:"session"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	return body.Session
}

// ─── Health & Routing ───────────────────────────────────────────────

func TestHealthAndNotFound(t *testing.T) {
	srv := newTestServer(t, testBank)

	w := srv.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, decode(t, w).Metadata.RequestID)

	w = srv.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w).Error.Code)
}

// ─── Session ────────────────────────────────────────────────────────

func TestSession_DefaultWhenAbsent(t *testing.T) {
	srv := newTestServer(t, testBank)

	w := srv.do(t, http.MethodGet, "/api/session", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Nil(t, sessionCookie(w))

	s := sessionOf(t, decode(t, w))
	assert.Equal(t, model.AppStateWheel, s.State)
	assert.Empty(t, s.UsedQuestions)
}

func TestSession_InvalidCookieIsDropped(t *testing.T) {
	srv := newTestServer(t, testBank)

	w := srv.do(t, http.MethodGet, "/api/session", "", &http.Cookie{Name: middleware.SessionCookieName, Value: "not-a-token"})
	require.Equal(t, http.StatusOK, w.Code)

	c := sessionCookie(w)
	require.NotNil(t, c)
	assert.Less(t, c.MaxAge, 0)
	assert.Equal(t, model.AppStateWheel, sessionOf(t, decode(t, w)).State)
}

func TestSession_UnionThenReplace(t *testing.T) {
	srv := newTestServer(t, testBank)
	start := model.DefaultSession()
	start.UsedQuestions.Set("Matematika", model.DifficultyReceh, []int{0})
	cookie := srv.cookieFor(t, start)

	w := srv.do(t, http.MethodPost, "/api/session", `{"usedQuestions":{"Matematika":{"Receh":[1]}}}`, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []int{0, 1}, sessionOf(t, decode(t, w)).UsedQuestions["Matematika"][model.DifficultyReceh])

	cookie = sessionCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)

	w = srv.do(t, http.MethodPost, "/api/session/replace", `{"usedQuestions":{"Matematika":{"Receh":[1]}}}`, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{1}, sessionOf(t, decode(t, w)).UsedQuestions["Matematika"][model.DifficultyReceh])
}

func TestSession_NullClearsField(t *testing.T) {
	srv := newTestServer(t, testBank)
	cat, diff, idx := "Matematika", model.DifficultyReceh, 0
	cookie := srv.cookieFor(t, model.SessionState{
		State: model.AppStateQuestion, Category: &cat, Difficulty: &diff, QuestionIndex: &idx,
		UsedQuestions: model.UsedQuestions{},
	})

	w := srv.do(t, http.MethodPost, "/api/session", `{"state":"wheel","category":null,"difficulty":null,"questionIndex":null}`, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	s := sessionOf(t, decode(t, w))
	assert.Equal(t, model.AppStateWheel, s.State)
	assert.Nil(t, s.Category)
	assert.Nil(t, s.Difficulty)
	assert.Nil(t, s.QuestionIndex)
}

func TestSession_RejectsBadPatch(t *testing.T) {
	srv := newTestServer(t, testBank)

	w := srv.do(t, http.MethodPost, "/api/session", `{"state":"lobby"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Error.Code)

	w = srv.do(t, http.MethodPost, "/api/session", `{"usedQuestions":{"Matematika":{"Mudah":[0]}}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w).Error.Code)

	w = srv.do(t, http.MethodPost, "/api/session", `{"state":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PAYLOAD", decode(t, w).Error.Code)
	assert.Nil(t, sessionCookie(w))
}

func TestSession_Delete(t *testing.T) {
	srv := newTestServer(t, testBank)
	start := model.DefaultSession()
	start.UsedQuestions.Set("Matematika", model.DifficultyReceh, []int{0, 1})

	w := srv.do(t, http.MethodDelete, "/api/session", "", srv.cookieFor(t, start))
	require.Equal(t, http.StatusOK, w.Code)

	c := sessionCookie(w)
	require.NotNil(t, c)
	assert.Less(t, c.MaxAge, 0)
}

func TestSession_TimerRequiresQuestion(t *testing.T) {
	srv := newTestServer(t, testBank)

	for _, path := range []string{"/api/session/timer", "/api/session/back"} {
		w := srv.do(t, http.MethodPost, path, "", nil)
		assert.Equal(t, http.StatusConflict, w.Code, path)
		assert.Equal(t, "NO_ACTIVE_QUESTION", decode(t, w).Error.Code, path)
	}
}

// ─── Question Draw ──────────────────────────────────────────────────

func TestDraw_MissingParameters(t *testing.T) {
	srv := newTestServer(t, testBank)

	w := srv.do(t, http.MethodGet, "/api/questions?category=Matematika", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_PARAMETERS", decode(t, w).Error.Code)

	w = srv.do(t, http.MethodGet, "/api/questions?category=%20%20&difficulty=Receh", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDraw_EmptyPool(t *testing.T) {
	srv := newTestServer(t, testBank)

	for _, q := range []string{"category=Matematika&difficulty=Sedang", "category=Sejarah&difficulty=Receh", "category=Matematika&difficulty=Mudah"} {
		w := srv.do(t, http.MethodGet, "/api/questions?"+q, "", nil)
		require.Equal(t, http.StatusNotFound, w.Code, q)

		env := decode(t, w)
		assert.Equal(t, "NO_QUESTIONS_AVAILABLE", env.Error.Code)
		assert.JSONEq(t, `{"remaining":0,"totalInPool":0}`, string(env.Data))
		assert.Nil(t, sessionCookie(w))
	}
}

func TestDraw_BankUnavailable(t *testing.T) {
	srv := newTestServer(t, "")

	w := srv.do(t, http.MethodGet, "/api/questions?category=Matematika&difficulty=Receh", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "BANK_UNAVAILABLE", decode(t, w).Error.Code)
}

func TestDraw_CycleThroughCookie(t *testing.T) {
	srv := newTestServer(t, testBank)

	var (
		cookie *http.Cookie
		seen   []int
	)
	for i := 0; i < 2; i++ {
		w := srv.do(t, http.MethodGet, "/api/questions?category=Matematika&difficulty=Receh", "", cookie)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var res service.DrawResult
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
		assert.Equal(t, 2, res.TotalInPool)
		assert.Equal(t, 1-i, res.Remaining)
		assert.False(t, res.CycleReset)
		assert.NotContains(t, seen, res.QuestionIndex)
		seen = append(seen, res.QuestionIndex)

		cookie = sessionCookie(w)
		require.NotNil(t, cookie)
	}

	w := srv.do(t, http.MethodGet, "/api/questions?category=Matematika&difficulty=Receh", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var res service.DrawResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.True(t, res.CycleReset)
	assert.Equal(t, 1, res.Remaining)

	w = srv.do(t, http.MethodGet, "/api/session", "", sessionCookie(w))
	s := sessionOf(t, decode(t, w))
	assert.Equal(t, model.AppStateQuestion, s.State)
	assert.Equal(t, []int{res.QuestionIndex}, s.UsedQuestions["Matematika"][model.DifficultyReceh])
	assert.Nil(t, s.TimerStartedAt)
	require.NotNil(t, s.TimerDuration)
	assert.Equal(t, 20, *s.TimerDuration)
}

// ─── Question Lifecycle ─────────────────────────────────────────────

func TestLifecycle_TimerRecoverFinish(t *testing.T) {
	srv := newTestServer(t, testBank)

	w := srv.do(t, http.MethodGet, "/api/questions?category=Matematika&difficulty=Sulit", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookie := sessionCookie(w)

	w = srv.do(t, http.MethodGet, "/api/session/recovery", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var rec service.Recovery
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &rec))
	assert.Equal(t, model.PhaseReady, rec.Phase)
	require.NotNil(t, rec.Question)
	assert.Equal(t, "12 x 12 = ?", rec.Question.Soal)

	w = srv.do(t, http.MethodPost, "/api/session/timer", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	started := sessionOf(t, decode(t, w)).TimerStartedAt
	require.NotNil(t, started)
	cookie = sessionCookie(w)

	// A second start keeps the original timestamp.
	w = srv.do(t, http.MethodPost, "/api/session/timer", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, *started, *sessionOf(t, decode(t, w)).TimerStartedAt)

	w = srv.do(t, http.MethodGet, "/api/session/recovery", "", cookie)
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &rec))
	assert.Equal(t, model.PhaseRunning, rec.Phase)
	require.NotNil(t, rec.SecondsLeft)
	assert.InDelta(t, 45, *rec.SecondsLeft, 1)

	w = srv.do(t, http.MethodPost, "/api/session/finish", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	s := sessionOf(t, decode(t, w))
	assert.Equal(t, model.AppStateWheel, s.State)
	assert.Nil(t, s.Category)
	assert.Nil(t, s.TimerStartedAt)
	assert.Equal(t, []int{0}, s.UsedQuestions["Matematika"][model.DifficultySulit])
}

func TestLifecycle_GoBackFreesQuestion(t *testing.T) {
	srv := newTestServer(t, testBank)

	w := srv.do(t, http.MethodGet, "/api/questions?category=Matematika&difficulty=Sulit", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = srv.do(t, http.MethodPost, "/api/session/back", "", sessionCookie(w))
	require.Equal(t, http.StatusOK, w.Code)
	s := sessionOf(t, decode(t, w))
	assert.Equal(t, model.AppStateWheel, s.State)
	assert.Empty(t, s.UsedQuestions["Matematika"][model.DifficultySulit])
}

func TestRecovery_StaleIndex(t *testing.T) {
	srv := newTestServer(t, testBank)
	cat, diff, idx := "Matematika", model.DifficultySulit, 9
	cookie := srv.cookieFor(t, model.SessionState{
		State: model.AppStateQuestion, Category: &cat, Difficulty: &diff, QuestionIndex: &idx,
		UsedQuestions: model.UsedQuestions{},
	})

	w := srv.do(t, http.MethodGet, "/api/session/recovery", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var rec service.Recovery
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &rec))
	assert.True(t, rec.StaleQuestion)
	assert.Equal(t, model.AppStateWheel, rec.Session.State)
	assert.NotNil(t, sessionCookie(w))
}

// ─── Bank ───────────────────────────────────────────────────────────

func TestBank_SummaryAndWire(t *testing.T) {
	srv := newTestServer(t, testBank)

	w := srv.do(t, http.MethodGet, "/api/bank/summary", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Cache-Control"), "s-maxage=300")

	var sum model.BankSummary
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &sum))
	assert.Equal(t, 2, sum.PoolSizes["Matematika"][model.DifficultyReceh])
	assert.Equal(t, 45, sum.DifficultyTimes["Matematika"][model.DifficultySulit])
	assert.Equal(t, "file", sum.Source)

	w = srv.do(t, http.MethodGet, "/api/bank", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var wire model.WireBank
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &wire))
	require.Len(t, wire["Matematika"], 1)
	assert.Len(t, wire["Matematika"][0][model.DifficultyReceh], 2)
}

func TestBank_UnavailableIsNotCached(t *testing.T) {
	srv := newTestServer(t, "")

	w := srv.do(t, http.MethodGet, "/api/bank/summary", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

// ─── Timer Stream ───────────────────────────────────────────────────

func dialTimer(t *testing.T, srv *testServer, cookie *http.Cookie) *websocket.Conn {
	t.Helper()
	hs := httptest.NewServer(srv.engine)
	t.Cleanup(hs.Close)

	header := http.Header{}
	if cookie != nil {
		header.Set("Cookie", cookie.String())
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http")+"/ws/v1/timer", header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func questionCookie(t *testing.T, srv *testServer, startedAgo time.Duration, started bool) *http.Cookie {
	cat, diff, idx, dur := "Matematika", model.DifficultyReceh, 1, 20
	s := model.SessionState{
		State: model.AppStateQuestion, Category: &cat, Difficulty: &diff, QuestionIndex: &idx,
		TimerDuration: &dur, UsedQuestions: model.UsedQuestions{},
	}
	if started {
		ms := time.Now().Add(-startedAgo).UnixMilli()
		s.TimerStartedAt = &ms
	}
	return srv.cookieFor(t, s)
}

func TestTimerStream_NoQuestion(t *testing.T) {
	srv := newTestServer(t, testBank)
	conn := dialTimer(t, srv, nil)

	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame["event"])

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
}

func TestTimerStream_NotStarted(t *testing.T) {
	srv := newTestServer(t, testBank)
	conn := dialTimer(t, srv, questionCookie(t, srv, 0, false))

	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "tick", frame["event"])
	assert.Equal(t, "ready", frame["phase"])
	assert.EqualValues(t, 20, frame["secondsLeft"])
}

func TestTimerStream_ExpiredSendsTimeout(t *testing.T) {
	srv := newTestServer(t, testBank)
	conn := dialTimer(t, srv, questionCookie(t, srv, time.Minute, true))

	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "timeout", frame["event"])
	assert.Equal(t, "timeout", frame["phase"])
	assert.Equal(t, "A", frame["correctLetter"])

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
}

func TestTimerStream_TicksAndPong(t *testing.T) {
	srv := newTestServer(t, testBank)
	conn := dialTimer(t, srv, questionCookie(t, srv, 0, true))

	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "tick", frame["event"])
	assert.Equal(t, "running", frame["phase"])
	assert.InDelta(t, 20, frame["secondsLeft"], 1)

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "ping"}))
	for {
		frame = nil
		require.NoError(t, conn.ReadJSON(&frame))
		if frame["event"] == "pong" {
			break
		}
		assert.Equal(t, "tick", frame["event"])
	}
}

func TestTimerStream_EndsOnShutdown(t *testing.T) {
	srv := newTestServer(t, testBank)
	conn := dialTimer(t, srv, questionCookie(t, srv, 0, true))

	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	close(srv.streamsDn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
			return
		}
	}
}
