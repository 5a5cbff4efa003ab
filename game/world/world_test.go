package world

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/nightwatch/plugin/hook"
	"github.com/kasuganosora/nightwatch/testutil"
)

func newTestManager(t *testing.T, cfg RoomConfig, hooks *hook.HookCenter) *WorldManager {
	t.Helper()
	res := testutil.Loader(
		hall(t).Build(t),
		testutil.OpenLevel("cellar", 8, 8).Guard("c1", 1.5, 1.5, 0).Build(t),
	)
	pub, _ := newTestPublisher(t, nil, PublisherConfig{})
	wm := NewWorldManager(context.Background(), res, cfg, pub, hooks, testutil.Logger(t))
	t.Cleanup(wm.StopAll)
	return wm
}

func TestWorldManager_GetOrCreate(t *testing.T) {
	wm := newTestManager(t, manualConfig(), nil)

	r1, err := wm.GetOrCreate("hall")
	require.NoError(t, err)
	r2, err := wm.GetOrCreate("hall")
	require.NoError(t, err)
	assert.Same(t, r1, r2)
	assert.False(t, r1.Running(), "manual rooms are not started")

	_, err = wm.GetOrCreate("attic")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestWorldManager_GetAndList(t *testing.T) {
	wm := newTestManager(t, manualConfig(), nil)
	_, err := wm.Get("hall")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	require.NoError(t, wm.StartAll())
	assert.Equal(t, []string{"cellar", "hall"}, wm.List())
	assert.Equal(t, 2, wm.ActiveRoomCount())

	room, err := wm.Get("cellar")
	require.NoError(t, err)
	assert.Equal(t, "cellar", room.ID)
}

func TestWorldManager_Destroy(t *testing.T) {
	var mu sync.Mutex
	var events []string
	hooks := hook.NewHookCenter()
	record := func(_ context.Context, event string, d interface{}) (interface{}, error) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event+":"+d.(string))
		return d, nil
	}
	hooks.Register(hook.OnRoomStarted, 0, "rec", record)
	hooks.Register(hook.OnRoomStopped, 0, "rec", record)

	wm := newTestManager(t, manualConfig(), hooks)
	_, err := wm.GetOrCreate("hall")
	require.NoError(t, err)
	wm.Destroy("hall")
	wm.Destroy("hall") // unknown id is a no-op

	assert.Zero(t, wm.ActiveRoomCount())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"on_room_started:hall", "on_room_stopped:hall"}, events)
}

func TestWorldManager_AutoRunAndStopAll(t *testing.T) {
	cfg := manualConfig()
	cfg.Manual = false
	wm := newTestManager(t, cfg, nil)
	require.NoError(t, wm.StartAll())

	room, err := wm.Get("hall")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return room.Stats().Ticks > 2 }, time.Second, 5*time.Millisecond)

	wm.StopAll()
	assert.Zero(t, wm.ActiveRoomCount())
	assert.False(t, room.Running())
}

func TestWorldManager_Metrics(t *testing.T) {
	wm := newTestManager(t, manualConfig(), nil)
	require.NoError(t, wm.StartAll())
	hallRoom, _ := wm.Get("hall")
	hallRoom.Step(step)

	m := wm.Metrics()
	assert.Equal(t, 2, m.ActiveRooms)
	assert.Equal(t, 2, m.Enemies)
	assert.Equal(t, 1, m.States["hunting"])
	assert.Equal(t, 1, m.States["patrolling"])
	assert.Equal(t, uint64(1), m.Rooms["hall"].Ticks)
	require.NotNil(t, m.Publisher)

	wm.Report(context.Background())
}
