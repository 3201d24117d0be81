package cache

import (
	"context"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"

	"github.com/treehole/treehole-go/treehole/database/models"
	"github.com/treehole/treehole-go/treehole/database/repositories"
)

const definitionCacheSize = 16

const (
	keyTiers  = "tiers"
	keyBadges = "badges"
	keyTasks  = "tasks"
)

type cachedEntry struct {
	value     interface{}
	timestamp time.Time
}

// Definitions caches the operator-authored catalogs (level tiers, badge
// and task definitions). Entries expire after the TTL; Invalidate drops
// them immediately after an administrative change.
type Definitions struct {
	cache  *lru.Cache
	ttl    time.Duration
	levels repositories.LevelRepository
	badges repositories.BadgeRepository
	tasks  repositories.TaskRepository
}

func NewDefinitions(levels repositories.LevelRepository, badges repositories.BadgeRepository, tasks repositories.TaskRepository, ttl time.Duration) *Definitions {
	cache, _ := lru.New(definitionCacheSize)
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Definitions{
		cache:  cache,
		ttl:    ttl,
		levels: levels,
		badges: badges,
		tasks:  tasks,
	}
}

func (d *Definitions) Tiers(ctx context.Context) ([]*models.LevelTier, error) {
	if v, ok := d.get(keyTiers); ok {
		return v.([]*models.LevelTier), nil
	}

	tiers, err := d.levels.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	d.put(keyTiers, tiers)
	return tiers, nil
}

func (d *Definitions) Badges(ctx context.Context) ([]*models.BadgeDefinition, error) {
	if v, ok := d.get(keyBadges); ok {
		return v.([]*models.BadgeDefinition), nil
	}

	defs, err := d.badges.GetActiveDefinitions(ctx)
	if err != nil {
		return nil, err
	}

	d.put(keyBadges, defs)
	return defs, nil
}

func (d *Definitions) Tasks(ctx context.Context) ([]*models.TaskDefinition, error) {
	if v, ok := d.get(keyTasks); ok {
		return v.([]*models.TaskDefinition), nil
	}

	defs, err := d.tasks.GetActiveDefinitions(ctx)
	if err != nil {
		return nil, err
	}

	d.put(keyTasks, defs)
	return defs, nil
}

// Warm loads all three catalogs in parallel. Called at startup so the
// first user request does not pay the load.
func (d *Definitions) Warm(ctx context.Context) error {
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := d.Tiers(gctx)
		return err
	})
	g.Go(func() error {
		_, err := d.Badges(gctx)
		return err
	})
	g.Go(func() error {
		_, err := d.Tasks(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Definition caches warmed",
		slog.String("type", "cache"),
		slog.Duration("took", time.Since(start)))
	return nil
}

// Invalidate drops all cached catalogs.
func (d *Definitions) Invalidate() {
	d.cache.Purge()
}

func (d *Definitions) get(key string) (interface{}, bool) {
	v, ok := d.cache.Get(key)
	if !ok {
		return nil, false
	}

	entry := v.(cachedEntry)
	if time.Since(entry.timestamp) > d.ttl {
		d.cache.Remove(key)
		return nil, false
	}

	return entry.value, true
}

func (d *Definitions) put(key string, value interface{}) {
	d.cache.Add(key, cachedEntry{value: value, timestamp: time.Now()})
}
