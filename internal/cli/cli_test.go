package cli

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	redisstore "live-quiz-service/internal/infra/redis"
)

func TestRootRegistersCommands(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/etc/quiz.yaml")
	t.Setenv("PORT", "9090")
	cmd := newRootCmd()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["start"])
	assert.True(t, names["migrate"])
	assert.Equal(t, "/etc/quiz.yaml", cmd.PersistentFlags().Lookup("config").DefValue)
	assert.Equal(t, "9090", cmd.PersistentFlags().Lookup("port").DefValue)
}

func TestOpenStoreByDriver(t *testing.T) {
	ctx := context.Background()
	log, _ := logtest.NewNullLogger()

	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	store, closeStore, err := openStore(ctx, cfg, log)
	require.NoError(t, err)
	defer closeStore()
	assert.IsType(t, &memory.Store{}, store)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg, err = config.Parse([]byte("store:\n  driver: redis\nredis:\n  addr: " + mr.Addr() + "\n"))
	require.NoError(t, err)
	store, closeRedis, err := openStore(ctx, cfg, log)
	require.NoError(t, err)
	defer closeRedis()
	assert.IsType(t, &redisstore.Store{}, store)

	quiz, err := store.CreateQuiz(ctx, domain.NewQuiz{Title: "Q", Duration: 1, StartDate: "d", StartTime: "t", DefaultTimePerQuestion: 5, TimerType: domain.TimerSame})
	require.NoError(t, err)
	assert.True(t, mr.Exists("quiz:1"))
	assert.Equal(t, int64(1), quiz.ID)
}

func TestOpenStoreRedisUnreachable(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	cfg, err := config.Parse([]byte("store:\n  driver: redis\nredis:\n  addr: 127.0.0.1:1\n"))
	require.NoError(t, err)
	_, _, err = openStore(context.Background(), cfg, log)
	assert.Error(t, err)
}

func TestMigrationsNeedURL(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	assert.EqualError(t, RunMigrations(context.Background(), "", log), "postgres url not configured")
}

func TestStartFailsWhenPortIsTaken(t *testing.T) {
	taken, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer taken.Close()
	port := strconv.Itoa(taken.Addr().(*net.TCPAddr).Port)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\nstore:\n  driver: memory\n"), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = runServer(ctx, path, port)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serve http")
}
