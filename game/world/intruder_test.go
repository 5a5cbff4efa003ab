package world

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/nightwatch/game/ai"
	"github.com/kasuganosora/nightwatch/resource"
)

func ptr[T any](v T) *T { return &v }

func TestNewIntruder_Nil(t *testing.T) {
	in := NewIntruder(nil)
	assert.False(t, in.Available())
	assert.Equal(t, ai.Vec3{}, in.Position())
}

func TestNewIntruder_FromSetup(t *testing.T) {
	in := NewIntruder(&resource.IntruderSetup{
		Start: resource.Point{X: 1, Z: 2},
		Route: []resource.Point{{X: 4, Z: 2}},
		Speed: 1,
		Noise: 0.7,
		Light: true,
	})
	assert.True(t, in.Available())
	assert.Equal(t, ai.Vec3{X: 1, Z: 2}, in.Position())
	assert.Equal(t, 0.7, in.NoiseLevel())
	assert.True(t, in.IsLightOn())
	assert.False(t, in.IsConcealed())

	st := in.State()
	assert.Equal(t, []ai.Vec3{{X: 4, Z: 2}}, st.Route)
}

func TestIntruderPatch_Validate(t *testing.T) {
	tests := []struct {
		name  string
		patch IntruderPatch
		ok    bool
	}{
		{"empty", IntruderPatch{}, true},
		{"noise in range", IntruderPatch{Noise: ptr(1.0)}, true},
		{"noise too loud", IntruderPatch{Noise: ptr(1.01)}, false},
		{"noise negative", IntruderPatch{Noise: ptr(-0.1)}, false},
		{"noise NaN", IntruderPatch{Noise: ptr(math.NaN())}, false},
		{"position inf", IntruderPatch{Position: &ai.Vec3{X: math.Inf(1)}}, false},
		{"negative speed", IntruderPatch{Speed: ptr(-1.0)}, false},
		{"bad route", IntruderPatch{Route: &[]ai.Vec3{{}, {Z: math.NaN()}}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.patch.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPatch)
			}
		})
	}
}

func TestIntruder_Apply(t *testing.T) {
	in := NewIntruder(&resource.IntruderSetup{})
	require.NoError(t, in.Apply(IntruderPatch{
		Position:  &ai.Vec3{X: 3, Z: 4},
		Noise:     ptr(0.5),
		Light:     ptr(true),
		Concealed: ptr(true),
		Present:   ptr(false),
	}))
	st := in.State()
	assert.Equal(t, ai.Vec3{X: 3, Z: 4}, st.Position)
	assert.Equal(t, 0.5, st.Noise)
	assert.True(t, st.Light)
	assert.True(t, st.Concealed)
	assert.False(t, in.Available())

	// A rejected patch changes nothing.
	assert.Error(t, in.Apply(IntruderPatch{Position: &ai.Vec3{X: 9}, Noise: ptr(2.0)}))
	assert.Equal(t, ai.Vec3{X: 3, Z: 4}, in.Position())
}

func TestIntruder_AdvanceRoute(t *testing.T) {
	in := NewIntruder(&resource.IntruderSetup{
		Route: []resource.Point{{X: 2}, {X: 2, Z: 2}},
		Speed: 1,
	})
	in.Advance(time.Second)
	assert.Equal(t, ai.Vec3{X: 1}, in.Position())
	in.Advance(2 * time.Second)
	assert.Equal(t, ai.Vec3{X: 2, Z: 1}, in.Position())
	in.Advance(time.Minute)
	assert.Equal(t, ai.Vec3{X: 2, Z: 2}, in.Position(), "non-looping route stops at the end")
}

func TestIntruder_AdvanceLoop(t *testing.T) {
	in := NewIntruder(&resource.IntruderSetup{
		Route: []resource.Point{{X: 1}, {X: 0}},
		Speed: 1,
		Loop:  true,
	})
	in.Advance(3 * time.Second)
	assert.Equal(t, ai.Vec3{X: 1}, in.Position())
}

func TestIntruder_AdvanceDegenerateLoop(t *testing.T) {
	in := NewIntruder(&resource.IntruderSetup{
		Route: []resource.Point{{}, {}},
		Speed: 5,
		Loop:  true,
	})
	in.Advance(time.Second) // must return
	assert.Equal(t, ai.Vec3{}, in.Position())
}

func TestIntruder_AbsentDoesNotMove(t *testing.T) {
	in := NewIntruder(&resource.IntruderSetup{
		Route:  []resource.Point{{X: 5}},
		Speed:  1,
		Absent: true,
	})
	in.Advance(time.Second)
	assert.Equal(t, ai.Vec3{}, in.Position())
}
