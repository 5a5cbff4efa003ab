package world

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/nightwatch/game/ai"
	"github.com/kasuganosora/nightwatch/resource"
	"github.com/kasuganosora/nightwatch/testutil"
)

const step = 500 * time.Millisecond

func manualConfig() RoomConfig {
	return RoomConfig{Tick: 10 * time.Millisecond, Pursuit: ai.DefaultConfig(), Seed: 1, Manual: true}
}

// hall is a 20x20 open level with one guard at (2.5, 10.5) facing +X that
// patrols only its own spawn point, and a quiet intruder six cells ahead.
func hall(t *testing.T) *testutil.LevelBuilder {
	t.Helper()
	return testutil.OpenLevel("hall", 20, 20).
		Guard("g1", 2.5, 10.5, 90, resource.Point{X: 2.5, Z: 10.5}).
		Intruder(8.5, 10.5, 0)
}

func newTestRoom(t *testing.T, lv *resource.Level, pub *EventPublisher) *Room {
	t.Helper()
	room, err := NewRoom(lv, manualConfig(), pub, testutil.Logger(t))
	require.NoError(t, err)
	return room
}

func stepUntil(room *Room, cond func() bool, max int) bool {
	for i := 0; i < max; i++ {
		if cond() {
			return true
		}
		room.Step(step)
	}
	return cond()
}

func TestNewRoom_NilLevel(t *testing.T) {
	_, err := NewRoom(nil, manualConfig(), nil, nil)
	assert.Error(t, err)
}

func TestNewRoom_BadPursuitConfig(t *testing.T) {
	cfg := manualConfig()
	cfg.Pursuit.FieldOfView = 0
	_, err := NewRoom(hall(t).Build(t), cfg, nil, nil)
	assert.ErrorIs(t, err, ai.ErrInvalidConfig)
}

func TestRoom_GuardSpotsIntruder(t *testing.T) {
	room := newTestRoom(t, hall(t).Build(t), nil)
	g := room.Enemies()[0]
	assert.Equal(t, "g1", g.Name)
	assert.InDelta(t, 1.0, g.Navigator().Forward().X, 1e-9)

	room.Step(step)
	assert.Equal(t, ai.StateHunting, g.Controller().State())

	st := room.Stats()
	assert.Equal(t, uint64(1), st.Ticks)
	assert.Equal(t, 1, st.States["hunting"])
	assert.Equal(t, int64(1), st.Events[KindTargetDetected])
	assert.Equal(t, int64(1), st.Events[KindStateChanged])
}

func TestRoom_WallBlocksSight(t *testing.T) {
	lv := hall(t).Wall(5, 0, 5, 19).Build(t)
	room := newTestRoom(t, lv, nil)
	g := room.Enemies()[0]

	for i := 0; i < 4; i++ {
		room.Step(step)
	}
	assert.Equal(t, ai.StatePatrolling, g.Controller().State())
}

func TestRoom_NoiseThroughWall(t *testing.T) {
	lv := hall(t).Wall(5, 0, 5, 19).Build(t)
	room := newTestRoom(t, lv, nil)
	g := room.Enemies()[0]

	require.NoError(t, room.PatchIntruder(IntruderPatch{Noise: ptr(0.9)}))
	room.Step(step)
	assert.Equal(t, ai.StateInvestigating, g.Controller().State())
	lk, ok := g.Controller().LastKnownTargetPosition()
	require.True(t, ok)
	assert.Equal(t, ai.Vec3{X: 8.5, Z: 10.5}, lk)
}

func TestRoom_AbsentIntruderIgnored(t *testing.T) {
	room := newTestRoom(t, hall(t).Build(t), nil)
	require.NoError(t, room.PatchIntruder(IntruderPatch{Present: ptr(false)}))
	room.Step(step)
	assert.Equal(t, ai.StatePatrolling, room.Enemies()[0].Controller().State())
}

func TestRoom_PatchRejected(t *testing.T) {
	room := newTestRoom(t, hall(t).Build(t), nil)
	assert.ErrorIs(t, room.PatchIntruder(IntruderPatch{Noise: ptr(3.0)}), ErrInvalidPatch)
}

func TestRoom_FullPursuitCycle(t *testing.T) {
	pub, _ := newTestPublisher(t, nil, PublisherConfig{CaughtCooldown: time.Minute})
	room := newTestRoom(t, hall(t).Build(t), pub)
	ctl := room.Enemies()[0].Controller()

	room.Step(step)
	require.Equal(t, ai.StateHunting, ctl.State())

	caught := func() bool { return room.Stats().Events[KindTargetCaught] > 0 }
	require.True(t, stepUntil(room, caught, 10), "guard should reach the intruder")
	room.Step(step)
	room.Step(step)
	assert.GreaterOrEqual(t, room.Stats().Events[KindTargetCaught], int64(2))

	require.NoError(t, room.PatchIntruder(IntruderPatch{Present: ptr(false)}))
	searching := func() bool { return ctl.State() == ai.StateSearching }
	require.True(t, stepUntil(room, searching, 20))
	assert.Greater(t, ctl.TimeSinceTargetSeen(), ai.DefaultConfig().LoseTargetTime)

	patrolling := func() bool { return ctl.State() == ai.StatePatrolling }
	require.True(t, stepUntil(room, patrolling, 40))

	// Every emitted event is either published or deduped.
	require.Eventually(t, func() bool {
		st := pub.Stats()
		return st.Emitted > 0 && st.Published+st.Deduped == st.Emitted
	}, time.Second, 5*time.Millisecond)
	assert.Positive(t, pub.Stats().Deduped)

	recent, err := pub.Recent(context.Background(), "hall", 0)
	require.NoError(t, err)
	kinds := map[EventKind]int{}
	for _, ev := range recent {
		kinds[ev.Kind]++
		assert.Equal(t, "hall", ev.Room)
		assert.Equal(t, "g1", ev.Name)
	}
	assert.Equal(t, 1, kinds[KindTargetDetected])
	assert.Equal(t, 1, kinds[KindTargetLost])
	assert.Equal(t, 1, kinds[KindTargetCaught])
	assert.GreaterOrEqual(t, kinds[KindStateChanged], 3)
	assert.Equal(t, "patrolling", recent[0].To, "newest event is the return to patrol")
}

func TestRoom_Snapshot(t *testing.T) {
	room := newTestRoom(t, hall(t).Build(t), nil)
	room.Step(step)

	snap := room.Snapshot()
	assert.Equal(t, "hall", snap.ID)
	assert.Equal(t, uint64(1), snap.Ticks)
	assert.False(t, snap.Running)
	assert.Len(t, snap.Rows, 20)
	assert.True(t, snap.Intruder.Present)
	require.Len(t, snap.Enemies, 1)
	assert.Equal(t, ai.StateHunting, snap.Enemies[0].Pursuit.State)
	assert.NotEmpty(t, snap.Enemies[0].ID)
}

func TestRoom_RunAndStop(t *testing.T) {
	room := newTestRoom(t, hall(t).Build(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		room.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return room.Stats().Ticks >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, room.Running())

	room.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("room did not stop")
	}
	assert.False(t, room.Running())
	room.Stop() // idempotent
}

func TestRoom_RunEndsWithContext(t *testing.T) {
	room := newTestRoom(t, hall(t).Build(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		room.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("room ignored context cancel")
	}
}

func TestRoom_SeededSpawnsAreReproducible(t *testing.T) {
	lv := testutil.OpenLevel("yard", 30, 30).Guard("g", 15.5, 15.5, 0).Build(t)
	a := newTestRoom(t, lv, nil)
	b := newTestRoom(t, lv, nil)
	assert.Equal(t,
		a.Enemies()[0].Controller().PatrolPoints(),
		b.Enemies()[0].Controller().PatrolPoints())
	assert.NotEmpty(t, a.Enemies()[0].Controller().PatrolPoints())
}

func TestFacing(t *testing.T) {
	f := facing(0)
	assert.InDelta(t, 1.0, f.Z, 1e-9)
	f = facing(-90)
	assert.InDelta(t, -1.0, f.X, 1e-9)
}
