package actors

import (
	"context"
	"sync"
	"testing"
	"time"

	"gator-chat/internal/database"
	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const testTimeout = 5 * time.Second

type testEnv struct {
	system *actor.ActorSystem
	deps   *Deps
	db     *database.MemoryDB
	clock  *clockwork.FakeClock

	mu      sync.Mutex
	changes []*Change
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testStart)
	db := database.NewMemoryDB()
	env := &testEnv{
		system: actor.NewActorSystem(),
		db:     db,
		clock:  clock,
		deps: &Deps{
			DB:      db,
			Stamps:  utils.NewTimestamper(clock, db.TimestampPrecision()),
			Metrics: utils.NewMetricsCollector(),
			Logger:  utils.DiscardLogger(),
			Timeout: time.Second,
		},
	}
	sub := env.system.EventStream.Subscribe(func(evt interface{}) {
		if change, ok := evt.(*Change); ok {
			env.mu.Lock()
			env.changes = append(env.changes, change)
			env.mu.Unlock()
		}
	})
	t.Cleanup(func() {
		env.system.EventStream.Unsubscribe(sub)
		env.system.Shutdown()
	})
	return env
}

func (e *testEnv) spawn(producer func() actor.Actor) *actor.PID {
	return e.system.Root.Spawn(actor.PropsFromProducer(producer))
}

func (e *testEnv) request(t *testing.T, pid *actor.PID, msg interface{}) interface{} {
	t.Helper()
	result, err := e.system.Root.RequestFuture(pid, msg, testTimeout).Result()
	require.NoError(t, err)
	return result
}

func (e *testEnv) requireCode(t *testing.T, pid *actor.PID, msg interface{}, code string) {
	t.Helper()
	result := e.request(t, pid, msg)
	appErr, ok := result.(*utils.AppError)
	require.True(t, ok, "expected *utils.AppError, got %T", result)
	require.Equal(t, code, appErr.Code, appErr.Message)
}

func (e *testEnv) published(topic Topic) []*Change {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Change, 0)
	for _, c := range e.changes {
		if c.Topic == topic {
			out = append(out, c)
		}
	}
	return out
}

// seedDirect stores a direct conversation between a and b.
func (e *testEnv) seedDirect(t *testing.T, a, b string) uuid.UUID {
	t.Helper()
	conv, _, err := e.db.FindOrCreateDirectConversation(context.Background(), models.NewDirectConversation(a, b, e.deps.Stamps.Next()))
	require.NoError(t, err)
	return conv.ID
}
