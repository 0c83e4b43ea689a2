package telegram

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/showpls/showpls-server-go/internal/errors"
	"github.com/showpls/showpls-server-go/internal/model"
	"github.com/showpls/showpls-server-go/internal/util"
)

// webAppDataLabel is the domain-separation label Telegram uses to derive
// the signing key from the bot token.
const webAppDataLabel = "WebAppData"

const (
	hashField     = "hash"
	authDateField = "auth_date"
	userField     = "user"
)

// InitData is the verified content of a Telegram WebApp credential blob.
type InitData struct {
	User     *model.TelegramUser
	AuthDate time.Time
	QueryID  string
}

// Verifier validates Telegram WebApp initData against the bot token.
// The zero value is not usable; construct with NewVerifier.
type Verifier struct {
	botToken string
	maxAge   time.Duration

	// now is overridable in tests
	now func() time.Time

	insecure bool
}

func NewVerifier(botToken string, maxAge time.Duration) *Verifier {
	return &Verifier{
		botToken: botToken,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// NewInsecureVerifier returns a verifier that skips signature checking and
// yields a fixed placeholder identity. It exists only for local development
// and must never be constructed from production configuration; config
// validation rejects ALLOW_INSECURE_AUTH in production.
func NewInsecureVerifier() *Verifier {
	return &Verifier{
		insecure: true,
		now:      time.Now,
	}
}

// Insecure reports whether this verifier bypasses signature checking.
func (v *Verifier) Insecure() bool {
	return v.insecure
}

// Verify parses and validates a raw URL-encoded initData string.
// Verification is pure compute; callers attach the returned claims to the
// request context.
func (v *Verifier) Verify(rawInitData string) (*InitData, error) {
	if v.insecure {
		return &InitData{
			User: &model.TelegramUser{
				ID:        1,
				Username:  "dev_user",
				FirstName: "Dev",
			},
			AuthDate: v.now(),
		}, nil
	}

	values, err := url.ParseQuery(rawInitData)
	if err != nil {
		return nil, apperrors.InvalidCredential("malformed query string").WithCause(err)
	}

	providedHash := values.Get(hashField)
	if providedHash == "" {
		return nil, apperrors.MissingSignature()
	}

	authDateRaw := values.Get(authDateField)
	authDateUnix, err := strconv.ParseInt(authDateRaw, 10, 64)
	if err != nil || authDateUnix == 0 {
		return nil, apperrors.AuthExpired()
	}
	authDate := time.Unix(authDateUnix, 0)
	if v.now().Sub(authDate) > v.maxAge {
		return nil, apperrors.AuthExpired()
	}

	if !util.ConstantTimeEqual(v.sign(values), providedHash) {
		return nil, apperrors.SignatureMismatch()
	}

	data := &InitData{
		AuthDate: authDate,
		QueryID:  values.Get("query_id"),
	}

	if userJSON := values.Get(userField); userJSON != "" {
		var user model.TelegramUser
		if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
			return nil, apperrors.InvalidCredential("user field is not valid JSON").WithCause(err)
		}
		data.User = &user
	}

	return data, nil
}

// sign reconstructs the canonical data-check string (all fields except the
// hash, sorted by key, joined as key=value lines) and returns its hex HMAC
// under the derived secret key.
func (v *Verifier) sign(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if key == hashField {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+values.Get(key))
	}
	payload := strings.Join(lines, "\n")

	secretKey := util.HmacSHA256Raw([]byte(webAppDataLabel), v.botToken)
	return util.HexHmacSHA256(secretKey, payload)
}
