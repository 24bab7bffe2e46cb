// main.go
//
// blockwords server entrypoint.
// Responsibilities:
//   - Configuration from the environment (.env supported).
//   - Building the engine: dictionary + anagram index, rack manager,
//     coordinator, cube controller, history store, HTTP surface.
//   - The single-consumer event loop that owns all game state.
//
// Concurrency model: one goroutine drains the bus and the HTTP command
// channel. Every handler runs to completion before the next message is
// taken, so rack mutation and random-stream advancement never race and the
// game state carries no locks. HTTP handlers reach the state only through
// the dispatcher, which runs their closure on this loop.

package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stephen5ng/blockwords/assets"
	"github.com/stephen5ng/blockwords/internal/anagram"
	"github.com/stephen5ng/blockwords/internal/bus"
	"github.com/stephen5ng/blockwords/internal/cubes"
	"github.com/stephen5ng/blockwords/internal/dict"
	"github.com/stephen5ng/blockwords/internal/game"
	"github.com/stephen5ng/blockwords/internal/history"
	"github.com/stephen5ng/blockwords/internal/httpserver"
	"github.com/stephen5ng/blockwords/internal/tiles"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	gameSeed := getEnvInt64("GAME_SEED", time.Now().UnixNano())
	bingoSeed := getEnvInt64("BINGO_SEED", time.Now().UnixNano()+1)

	d, err := loadDictionary(bingoSeed)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load word lists")
	}
	index := anagram.NewIndex(d.Words())
	gen := tiles.NewGenerator(index, rand.New(rand.NewSource(gameSeed)))
	racks := game.NewRackManager(d, gen)
	coord := game.NewCoordinator(d, racks)

	db, err := openDB(getEnv("DB_PATH", "./data/blockwords.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	store := history.NewStore(db)
	if err := store.Init(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to init history schema")
	}
	coord.SetRecorder(store)

	broker := getEnv("MQTT_BROKER", "tcp://localhost:1883")
	b, err := bus.ConnectMQTT(broker, "blockwords-server")
	if err != nil {
		log.Fatal().Err(err).Str("broker", broker).Msg("failed to connect to broker")
	}
	defer b.Close()

	cubeGroups, err := loadCubeGroups(os.Getenv("CUBES_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load cube ids")
	}
	joinWindow := time.Duration(getEnvInt64("JOIN_WINDOW_MS", 30000)) * time.Millisecond
	lockLease := time.Duration(getEnvInt64("LOCK_LEASE_MS", 0)) * time.Millisecond
	ctrl := cubes.NewController(b, coord, cubes.Config{
		CubeGroups: cubeGroups,
		JoinPolicy: cubes.ElapsedWindow(joinWindow),
		LockLease:  lockLease,
	})
	for _, pattern := range ctrl.Subscriptions() {
		if err := b.Subscribe(pattern); err != nil {
			log.Fatal().Err(err).Str("pattern", pattern).Msg("subscribe failed")
		}
	}

	// The dispatcher hands HTTP work to the event loop and waits for it.
	commands := make(chan func(), 64)
	dispatch := func(f func()) {
		done := make(chan struct{})
		commands <- func() {
			f()
			close(done)
		}
		<-done
	}

	srv := httpserver.New(coord, ctrl, store,
		getEnv("SESSION_SECRET", "dev-secret-change-me"), dispatch)
	coord.SetNotify(srv.Notify)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		// Critical section boundary: everything below runs on this one
		// goroutine. A handler finishes before the next message or command
		// is taken, which is what makes the lock-free game state safe.
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-b.Messages():
				if !ok {
					return
				}
				ctrl.HandleMessage(msg)
			case f := <-commands:
				f()
			}
		}
	}()

	port := getEnv("PORT", "8080")
	log.Info().Str("port", port).Str("broker", broker).
		Int64("game_seed", gameSeed).Int64("bingo_seed", bingoSeed).
		Msg("starting blockwords server")
	if err := srv.ListenAndServe(ctx, ":"+port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// loadDictionary reads the word lists from the configured files, falling
// back to the embedded defaults when no files are set. A configured but
// unreadable file is fatal.
func loadDictionary(bingoSeed int64) (*dict.Dictionary, error) {
	rng := rand.New(rand.NewSource(bingoSeed))
	dictFile := os.Getenv("DICTIONARY_FILE")
	bingosFile := os.Getenv("BINGOS_FILE")
	if dictFile != "" {
		return dict.Load(dictFile, bingosFile, rng)
	}
	words, err := assets.DictionaryList()
	if err != nil {
		return nil, err
	}
	bingos, err := assets.BingosList()
	if err != nil {
		return nil, err
	}
	log.Info().Int("words", len(words)).Msg("using embedded word lists")
	return dict.New(words, bingos, rng)
}

// loadCubeGroups reads physical cube ids, one per line, chunked into
// groups of six in rack order. An empty path keeps the stock layout.
func loadCubeGroups(path string) ([][]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cube ids: %w", err)
	}
	var ids []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if len(ids) == 0 || len(ids)%tiles.MaxTiles != 0 {
		return nil, fmt.Errorf("cube id file %s: got %d ids, want a multiple of %d",
			path, len(ids), tiles.MaxTiles)
	}
	var groups [][]string
	for i := 0; i < len(ids); i += tiles.MaxTiles {
		groups = append(groups, ids[i:i+tiles.MaxTiles])
	}
	return groups, nil
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getEnvInt64(k string, def int64) int64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Warn().Str("key", k).Str("value", v).Msg("bad integer in env, using default")
		return def
	}
	return n
}
