package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenExpiry      = 7 * 24 * time.Hour
	bcryptCost       = 12
	minPasswordLen   = 6
	minUsernameLen   = 2
	maxUsernameLen   = 16
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
)

var (
	errBadCredentials = errors.New("invalid username or password")
	errLoginThrottled = errors.New("too many login attempts, try again later")
)

// Auth issues and validates account tokens
type Auth struct {
	db     *DB
	secret []byte

	// Login attempt throttling per remote IP
	rateMu  sync.Mutex
	rateMap map[string]*loginRate
}

type loginRate struct {
	Count   int
	ResetAt time.Time
}

// NewAuth creates the auth handler, loading or minting the signing secret
func NewAuth(db *DB) *Auth {
	return &Auth{
		db:      db,
		secret:  loadOrCreateSecret(db),
		rateMap: make(map[string]*loginRate),
	}
}

// loadOrCreateSecret reads the token secret from settings, generating and
// persisting a fresh one on first run so tokens survive restarts.
func loadOrCreateSecret(db *DB) []byte {
	if db != nil {
		if h := db.GetSetting("token_secret"); h != "" {
			if b, err := hex.DecodeString(h); err == nil && len(b) == 32 {
				return b
			}
		}
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate token secret: " + err.Error())
	}
	if db != nil {
		if err := db.SetSetting("token_secret", hex.EncodeToString(secret)); err != nil {
			log.Printf("warning: could not persist token secret: %v", err)
		}
	}
	return secret
}

// Register creates a new account and returns (playerID, token)
func (a *Auth) Register(username, password string) (int64, string, error) {
	username = strings.TrimSpace(username)

	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return 0, "", fmt.Errorf("username must be %d-%d characters", minUsernameLen, maxUsernameLen)
	}
	if strings.HasPrefix(strings.ToLower(username), "guest_") {
		return 0, "", errors.New("that name prefix is reserved")
	}
	if len(password) < minPasswordLen {
		return 0, "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}

	exists, err := a.db.UsernameExists(username)
	if err != nil {
		return 0, "", errors.New("database error")
	}
	if exists {
		return 0, "", errors.New("username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return 0, "", errors.New("internal error")
	}

	id, err := a.db.CreatePlayer(username, string(hash))
	if err != nil {
		return 0, "", errors.New("failed to create account")
	}

	token, err := a.mintToken(id, username)
	if err != nil {
		return 0, "", errors.New("internal error")
	}
	return id, token, nil
}

// Login authenticates an account and returns (playerID, token)
func (a *Auth) Login(username, password, ip string) (int64, string, error) {
	if !a.allowAttempt(ip) {
		return 0, "", errLoginThrottled
	}

	player, err := a.db.GetPlayerByUsername(strings.TrimSpace(username))
	if err != nil {
		return 0, "", errors.New("database error")
	}
	if player == nil || player.PassHash == "" {
		return 0, "", errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(player.PassHash), []byte(password)); err != nil {
		return 0, "", errBadCredentials
	}

	token, err := a.mintToken(player.ID, player.Username)
	if err != nil {
		return 0, "", errors.New("internal error")
	}
	return player.ID, token, nil
}

// ValidateToken parses a token and returns (playerID, username)
func (a *Auth) ValidateToken(tokenStr string) (int64, string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return 0, "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, "", errors.New("invalid token")
	}
	pid, ok := claims["pid"].(float64)
	if !ok {
		return 0, "", errors.New("invalid token claims")
	}
	name, ok := claims["usr"].(string)
	if !ok {
		return 0, "", errors.New("invalid token claims")
	}
	return int64(pid), name, nil
}

func (a *Auth) mintToken(playerID int64, username string) (string, error) {
	claims := jwt.MapClaims{
		"pid": playerID,
		"usr": username,
		"exp": time.Now().Add(tokenExpiry).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Auth) allowAttempt(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &loginRate{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}

// GenerateGuestName creates a display name like "Guest_a3f2"
func GenerateGuestName() string {
	b := make([]byte, 2)
	rand.Read(b)
	return "Guest_" + hex.EncodeToString(b)
}
