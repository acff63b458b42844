package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/crucial707/inspect-ops/internal/models"
	"github.com/crucial707/inspect-ops/internal/repo"
)

// AuthHandler issues JWT tokens for API access.
type AuthHandler struct {
	UserRepo    *repo.UserRepo
	Secret      []byte
	ExpireHours int
}

// Register creates a user. Password is optional; when set it is stored as a
// bcrypt hash.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Username == "" {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}

	hash := ""
	if input.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			JSONError(w, "failed to create user", http.StatusInternalServerError)
			return
		}
		hash = string(b)
	}

	user, err := h.UserRepo.Create(r.Context(), input.Username, hash, models.RoleViewer)
	if err != nil {
		// Idempotent: if user already exists, return existing user (200)
		if e, ok := err.(*pq.Error); ok && e.Code == "23505" {
			user, getErr := h.UserRepo.GetByUsername(r.Context(), input.Username)
			if getErr != nil {
				JSONError(w, "failed to create user", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(user)
			return
		}
		log.Printf("Register: create user failed: %v", err)
		JSONError(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// Login verifies credentials and returns a signed token. Users without a
// stored password hash may log in with username only.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}

	user, err := h.UserRepo.GetByUsername(r.Context(), input.Username)
	if err != nil {
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	if user.PasswordHash != "" {
		if input.Password == "" {
			JSONError(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
			JSONError(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
	}

	expire := h.ExpireHours
	if expire <= 0 {
		expire = 24
	}
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      time.Now().Add(time.Duration(expire) * time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(h.Secret)
	if err != nil {
		JSONError(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token": signed,
		"user":  user,
	})
}
