package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"tradejournal/pkg/crypto"
	"tradejournal/pkg/utils"
)

type contextKey string

const userIDKey contextKey = "user_id"

// UserIDHeader - заголовок с идентификатором пользователя журнала
const UserIDHeader = "X-User-ID"

// validUserID - допустимый формат идентификатора пользователя
var validUserID = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,64}$`)

// WithUserID кладет пользователя в context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext возвращает пользователя, установленного Auth
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// AuthConfig - параметры аутентификации
type AuthConfig struct {
	// TokenHash - bcrypt хеш bearer токена. Пустой = проверка отключена.
	TokenHash     string
	DefaultUserID string
}

// Auth - middleware для аутентификации запросов
//
// Назначение:
// Проверяет bearer токен против bcrypt хеша из конфигурации
// и определяет пользователя журнала.
//
// Функции:
// - Извлечение токена из Authorization: Bearer <token>
// - Для WebSocket токен и пользователь берутся из query (access_token, user_id)
// - Кеш проверенных токенов: bcrypt не считается на каждый запрос
// - Пользователь из X-User-ID, иначе DefaultUserID
// - 401 Unauthorized при отсутствии или неверном токене
// - 400 Bad Request при недопустимом X-User-ID
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	var verified sync.Map // token -> struct{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.TokenHash != "" {
				token := bearerToken(r)
				if _, ok := verified.Load(token); !ok {
					if err := crypto.VerifyToken(token, cfg.TokenHash); err != nil {
						utils.L().Warn("authentication failed",
							utils.Err(err),
							utils.Component("auth"),
						)
						w.Header().Set("WWW-Authenticate", `Bearer realm="tradejournal"`)
						writeError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid API token")
						return
					}
					verified.Store(token, struct{}{})
				}
			}

			userID := r.Header.Get(UserIDHeader)
			if userID == "" {
				userID = r.URL.Query().Get("user_id")
			}
			if userID == "" {
				userID = cfg.DefaultUserID
			}
			if !validUserID.MatchString(userID) {
				writeError(w, http.StatusBadRequest, "invalid_user", "Invalid user id")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return r.URL.Query().Get("access_token")
}

// BasicAuth - middleware для защиты служебных endpoints (/metrics)
//
// Если username или password не заданы, доступ открыт.
// Сравнение в constant-time.
func BasicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if username == "" || password == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, pass, ok := r.BasicAuth()
			userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
			if !ok || !userMatch || !passMatch {
				w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError пишет ошибку в формате handlers.ErrorResponse
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
