package config

import (
	"os"
	"strconv"
	"time"

	"github.com/clipbingo/clip-bingo-backend/internal/room"
	"github.com/clipbingo/clip-bingo-backend/internal/session"
)

// Config is everything the server reads from the environment. An optional
// .env file is loaded by main before this runs.
type Config struct {
	Addr        string
	DatabaseURL string // empty -> in-memory event store
	Room        room.Config
}

func Load() Config {
	cfg := Config{
		Addr:        envStr("ADDR", ":8080"),
		DatabaseURL: envStr("DATABASE_URL", ""),
		Room: room.Config{
			EventRounds:    envInt("EVENT_ROUNDS", 3),
			ReviewTimeout:  envDur("REVIEW_TIMEOUT", 10*time.Second),
			AutoAcceptWins: envBool("AUTO_ACCEPT_WINS", false),
			Sync: session.Config{
				ResumeDebounce:  envDur("RESUME_DEBOUNCE", 10*time.Second),
				ReconnectIgnore: envDur("RECONNECT_IGNORE", 15*time.Second),
				ClipStartIgnore: envDur("CLIP_START_IGNORE", 15*time.Second),
			},
		},
	}
	return cfg
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
