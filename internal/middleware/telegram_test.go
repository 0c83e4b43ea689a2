package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showpls/showpls-server-go/internal/telegram"
	"github.com/showpls/showpls-server-go/internal/util"
)

const testBotToken = "7000000001:AAtest-bot-token-for-unit-tests"

func signedInitData(botToken string, user string) string {
	fields := map[string]string{
		"auth_date": fmt.Sprintf("%d", time.Now().Unix()),
	}
	if user != "" {
		fields["user"] = user
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}
	secretKey := util.HmacSHA256Raw([]byte("WebAppData"), botToken)
	hash := util.HexHmacSHA256(secretKey, strings.Join(lines, "\n"))

	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("hash", hash)
	return values.Encode()
}

func telegramProbeHandler(t *testing.T, gotUserID *int64) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetTelegramUser(r.Context())
		require.NotNil(t, user, "verified identity must be on the context")
		*gotUserID = user.ID
		w.WriteHeader(http.StatusOK)
	})
}

func TestTelegramAuthMiddleware(t *testing.T) {
	userJSON := `{"id":42,"first_name":"Alice","username":"alice_p"}`

	t.Run("admits a signed credential from the header", func(t *testing.T) {
		m := NewTelegramAuthMiddleware(telegram.NewVerifier(testBotToken, time.Hour))
		var gotUserID int64
		handler := m.Handler(telegramProbeHandler(t, &gotUserID))

		req := httptest.NewRequest(http.MethodPost, "/v1/auth/telegram", nil)
		req.Header.Set(InitDataHeader, signedInitData(testBotToken, userJSON))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(42), gotUserID)
	})

	t.Run("accepts the query parameter fallback", func(t *testing.T) {
		m := NewTelegramAuthMiddleware(telegram.NewVerifier(testBotToken, time.Hour))
		var gotUserID int64
		handler := m.Handler(telegramProbeHandler(t, &gotUserID))

		raw := signedInitData(testBotToken, userJSON)
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/telegram?__twaInitData="+url.QueryEscape(raw), nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(42), gotUserID)
	})

	t.Run("accepts a form-encoded body field", func(t *testing.T) {
		m := NewTelegramAuthMiddleware(telegram.NewVerifier(testBotToken, time.Hour))
		var gotUserID int64
		handler := m.Handler(telegramProbeHandler(t, &gotUserID))

		raw := signedInitData(testBotToken, userJSON)
		form := url.Values{initDataParam: {raw}}
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/telegram", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(42), gotUserID)
	})

	t.Run("rejects a missing credential", func(t *testing.T) {
		m := NewTelegramAuthMiddleware(telegram.NewVerifier(testBotToken, time.Hour))
		handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodPost, "/v1/auth/telegram", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a credential signed with another bot token", func(t *testing.T) {
		m := NewTelegramAuthMiddleware(telegram.NewVerifier(testBotToken, time.Hour))
		handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodPost, "/v1/auth/telegram", nil)
		req.Header.Set(InitDataHeader, signedInitData("8000000002:AAother-bot", userJSON))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "SIGNATURE_MISMATCH", body["code"])
	})

	t.Run("rejects a valid signature without a user identity", func(t *testing.T) {
		m := NewTelegramAuthMiddleware(telegram.NewVerifier(testBotToken, time.Hour))
		handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodPost, "/v1/auth/telegram", nil)
		req.Header.Set(InitDataHeader, signedInitData(testBotToken, ""))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("insecure verifier yields the placeholder identity", func(t *testing.T) {
		m := NewTelegramAuthMiddleware(telegram.NewInsecureVerifier())
		var gotUserID int64
		handler := m.Handler(telegramProbeHandler(t, &gotUserID))

		req := httptest.NewRequest(http.MethodPost, "/v1/auth/telegram", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(1), gotUserID)
	})
}
