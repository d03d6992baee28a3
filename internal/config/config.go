package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the process settings. Values come from the environment with
// sensible defaults so the server runs with no .env at all.
type Config struct {
	Addr string

	MaxRound      int
	RoundDuration int // seconds of drawing time per turn
	ChoiceSeconds int // seconds the drawer gets to pick a word
	TimeoutWindow int // seconds the word stays revealed between turns

	// Countdown marks (seconds remaining) at which one extra letter
	// of the secret word is revealed. Revisions of the original game
	// disagreed on these, so they stay configurable.
	RevealMarks []int

	TypingExpiry time.Duration
}

func Load() Config {
	return Config{
		Addr:          getEnv("SKETCH_ADDR", ":8081"),
		MaxRound:      getEnvInt("SKETCH_MAX_ROUND", 3),
		RoundDuration: getEnvInt("SKETCH_ROUND_DURATION", 60),
		ChoiceSeconds: getEnvInt("SKETCH_CHOICE_SECONDS", 15),
		TimeoutWindow: getEnvInt("SKETCH_TIMEOUT_WINDOW", 10),
		RevealMarks:   []int{getEnvInt("SKETCH_REVEAL_FIRST", 40), getEnvInt("SKETCH_REVEAL_SECOND", 20)},
		TypingExpiry:  time.Duration(getEnvInt("SKETCH_TYPING_EXPIRY", 5)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
