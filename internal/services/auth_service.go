package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/cesdefin/backend/internal/config"
	"github.com/cesdefin/backend/internal/models"
	"github.com/cesdefin/backend/internal/store"
)

// AuthService handles registration, login and logout. It owns the
// credentials table; the ledger account itself is provisioned through the
// account store. Identity resolution for banking calls happens in the auth
// middleware, not here.
type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	store     store.Store
	cfg       *config.LedgerConfig
	validator *ValidationHelper
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, st store.Store, cfg *config.LedgerConfig) *AuthService {
	if cfg == nil {
		cfg = config.LoadLedgerConfig()
	}
	return &AuthService{
		db:        db,
		redis:     redisClient,
		store:     st,
		cfg:       cfg,
		validator: NewValidationHelper(),
	}
}

// Register creates credentials and a ledger account with the configured
// seed balance and an empty movement log.
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		SendErrorResponse(w, "Failed to register", http.StatusInternalServerError, nil)
		return
	}

	if _, err := s.store.CreateAccount(r.Context(), req.Username, s.cfg.SeedBalance); err != nil {
		if err == store.ErrAccountExists {
			SendErrorResponse(w, "Username already taken", http.StatusConflict, nil)
			return
		}
		log.Printf("[AUTH] Failed to create account for %s: %v", req.Username, err)
		SendErrorResponse(w, "Failed to register", http.StatusInternalServerError, nil)
		return
	}

	_, err = s.db.ExecContext(r.Context(), `
		INSERT INTO credentials (username, password_hash, name, email, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		req.Username, string(hash), req.Name, req.Email, time.Now().UTC())
	if err != nil {
		log.Printf("[AUTH] Failed to store credentials for %s: %v", req.Username, err)
		SendErrorResponse(w, "Failed to register", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success":  true,
		"username": req.Username,
	})
}

// Login verifies the password and issues a JWT whose session id is kept in
// Redis so tokens can be revoked on logout.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var hash string
	err := s.db.QueryRowContext(r.Context(), `
		SELECT password_hash FROM credentials WHERE username = $1`, req.Username).Scan(&hash)
	if err != nil {
		SendErrorResponse(w, "Invalid username or password", http.StatusUnauthorized, nil)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		SendErrorResponse(w, "Invalid username or password", http.StatusUnauthorized, nil)
		return
	}

	sessionID := uuid.NewString()
	expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": req.Username,
		"jti":        sessionID,
		"exp":        time.Now().Add(expiry).Unix(),
	})
	signed, err := token.SignedString([]byte(viper.GetString("jwt.secret_key")))
	if err != nil {
		SendErrorResponse(w, "Failed to issue token", http.StatusInternalServerError, nil)
		return
	}

	s.storeSession(r.Context(), sessionID, req.Username, expiry)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"token":   signed,
	})
}

// Logout revokes the caller's session. Without Redis there is nothing to
// revoke; the token simply expires.
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		if sessionID := sessionIDFromRequest(r); sessionID != "" {
			if err := s.redis.Del(r.Context(), "session:"+sessionID).Err(); err != nil {
				log.Printf("[AUTH] Failed to revoke session: %v", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}

func (s *AuthService) storeSession(ctx context.Context, sessionID, accountID string, ttl time.Duration) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, "session:"+sessionID, accountID, ttl).Err(); err != nil {
		log.Printf("[AUTH] Failed to store session: %v", err)
	}
}

func sessionIDFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	token, _, err := jwt.NewParser().ParseUnverified(parts[1], jwt.MapClaims{})
	if err != nil {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sessionID, _ := claims["jti"].(string)
	return sessionID
}

// DecodeJSON reads a single JSON object into dst, rejecting unknown fields
// and oversized bodies. Writes the error response itself on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}
