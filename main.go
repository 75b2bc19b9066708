package main

import (
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wordgrid/server/internal/game"
	"github.com/wordgrid/server/internal/httpserver"
	"github.com/wordgrid/server/internal/presence"
	"github.com/wordgrid/server/internal/protocol"
	"github.com/wordgrid/server/internal/transport"
	"github.com/wordgrid/server/internal/words"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	users := presence.NewRegistry()
	games := game.NewRegistry(rand.New(rand.NewSource(time.Now().UnixNano())))

	hub := transport.NewHub(log.With().Str("component", "transport").Logger())
	engine := protocol.NewEngine(users, games, hub, log.With().Str("component", "protocol").Logger())

	verifier := words.NewVerifier(
		os.Getenv("DICTIONARY_KEY"),
		os.Getenv("DICTIONARY_API_URL"),
		log.With().Str("component", "words").Logger(),
	)

	srv := httpserver.New(verifier, hub.Handle(engine))
	port := getEnv("PORT", "4001")
	log.Info().Str("port", port).Msg("starting session broker")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
