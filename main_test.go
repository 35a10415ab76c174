package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matrimonyai/backend/matching"
)

func TestMain(m *testing.M) {
	jwtSecret = []byte("test-secret-key-for-testing")
	os.Exit(m.Run())
}

// testNow starts at wall-clock time since issued tokens are checked against it.
var testNow = time.Now().UTC().Truncate(time.Second)

// testClock is a settable clock shared by the server under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig(t *testing.T) Config {
	return Config{
		Env:          "development",
		Addr:         ":0",
		PhotoDir:     t.TempDir(),
		StoreTimeout: time.Second,
		CORSOrigins:  []string{"http://localhost:5173"},
		Matching:     MatchingConfig{OverFetch: 2, DefaultLimit: 10, MaxLimit: 50},
		Assistant:    AssistantConfig{HistoryWindow: 10},
		OTP:          OTPConfig{TTL: 10 * time.Minute, MaxAttempts: 5, SendLimit: 5, Window: time.Minute},
		Login:        LoginConfig{Limit: 10, Window: time.Minute},
	}
}

type testEnv struct {
	srv     *server
	store   *memoryStore
	clock   *testClock
	handler http.Handler
}

func newTestEnv(t *testing.T, tweaks ...func(*Config, *serverDeps)) *testEnv {
	t.Helper()
	cfg := testConfig(t)
	clock := &testClock{now: testNow}
	deps := serverDeps{now: clock.Now}
	for _, tweak := range tweaks {
		tweak(&cfg, &deps)
	}
	store := newMemoryStore()
	srv := newServer(cfg, store, deps)
	return &testEnv{srv: srv, store: store, clock: clock, handler: newRouter(srv)}
}

// do sends a JSON request through the full router.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = bytes.NewBufferString(b)
		default:
			buf, err := json.Marshal(b)
			require.NoError(t, err)
			r = bytes.NewReader(buf)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

// addMember registers an account with profile p directly in the store and
// returns its user id and a token.
func (e *testEnv) addMember(t *testing.T, phone string, p matching.Profile) (int, string) {
	t.Helper()
	acc := &Account{Username: phone, Phone: phone, PasswordHash: "x", CreatedAt: testNow}
	p.Phone = phone
	require.NoError(t, e.store.CreateAccount(context.Background(), acc, &p))
	token, err := issueToken(acc.ID, e.clock.Now())
	require.NoError(t, err)
	return acc.ID, token
}

func decodeJSONBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeJSONBody[map[string]any](t, w)["error"].(string)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	buf, err := json.Marshal(v)
	require.NoError(t, err)
	return string(buf)
}

func born(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// memberProfile is a complete verified profile.
func memberProfile(name, gender string) matching.Profile {
	return matching.Profile{
		FullName:       name,
		DateOfBirth:    born(1996, time.March, 10),
		Gender:         gender,
		Religion:       "Hindu",
		City:           "Pune",
		State:          "Maharashtra",
		Country:        "India",
		Education:      "Master",
		Occupation:     "Senior Software Engineer",
		EatingHabits:   "vegetarian",
		DrinkingHabits: "never",
		SmokingHabits:  "never",
		Verified:       true,
	}
}

func phoneFor(i int) string {
	return fmt.Sprintf("98200%05d", i)
}
