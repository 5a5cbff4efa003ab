package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/kasuganosora/nightwatch/cache"
	dbadapter "github.com/kasuganosora/nightwatch/db"
	"github.com/kasuganosora/nightwatch/model"
	"github.com/kasuganosora/nightwatch/resource"
)

// SetupTestDB opens a migrated in-memory SQLite database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(dbadapter.Config{Mode: dbadapter.ModeSQLite})
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SetupTestCache creates LocalCache and LocalPubSub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := cache.CacheConfig{} // empty RedisAddr gives LocalCache
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	t.Cleanup(func() { _ = c.Close() })
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}

// Logger returns a logger that writes through t.Log at Warn and above.
func Logger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
}

// LevelBuilder assembles a resource.Level for tests.
type LevelBuilder struct {
	lv resource.Level
}

// OpenLevel starts a w×h level with every cell walkable.
func OpenLevel(name string, w, h int) *LevelBuilder {
	rows := make([]string, h)
	for i := range rows {
		rows[i] = strings.Repeat(".", w)
	}
	return &LevelBuilder{lv: resource.Level{Name: name, Rows: rows}}
}

// Wall blocks the cells from (x0,z0) to (x1,z1) inclusive.
func (b *LevelBuilder) Wall(x0, z0, x1, z1 int) *LevelBuilder {
	for z := z0; z <= z1 && z < len(b.lv.Rows); z++ {
		row := []byte(b.lv.Rows[z])
		for x := x0; x <= x1 && x < len(row); x++ {
			row[x] = '#'
		}
		b.lv.Rows[z] = string(row)
	}
	return b
}

// Guard adds a spawn at (x, z) facing facingDeg with optional patrol points.
func (b *LevelBuilder) Guard(name string, x, z, facingDeg float64, patrol ...resource.Point) *LevelBuilder {
	b.lv.Spawns = append(b.lv.Spawns, resource.Spawn{
		Name:         name,
		X:            x,
		Z:            z,
		FacingDeg:    facingDeg,
		PatrolPoints: patrol,
	})
	return b
}

// Intruder sets the intruder's start and loudness.
func (b *LevelBuilder) Intruder(x, z, noise float64) *LevelBuilder {
	b.lv.Intruder = &resource.IntruderSetup{Start: resource.Point{X: x, Z: z}, Noise: noise}
	return b
}

// Build validates the level and fails the test on error.
func (b *LevelBuilder) Build(t *testing.T) *resource.Level {
	t.Helper()
	lv := b.lv
	lv.Rows = append([]string(nil), b.lv.Rows...)
	require.NoError(t, lv.Validate(), "LevelBuilder.Build")
	return &lv
}

// Loader wraps levels in a resource.Loader.
func Loader(levels ...*resource.Level) *resource.Loader {
	l := resource.NewLoader("")
	for _, lv := range levels {
		l.Levels[lv.Name] = lv
	}
	return l
}
