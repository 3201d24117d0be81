package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/treehole/treehole-go/treehole"
	"github.com/treehole/treehole-go/treehole/cache"
	"github.com/treehole/treehole-go/treehole/database/models"
	"github.com/treehole/treehole-go/treehole/userlock"
)

// In-memory repository fakes mirroring the guarantees the Postgres layer
// provides: the guarded experience increment, insert-if-absent semantics,
// and the completion flip.

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t.UTC()} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var errWriteConflict = errors.New("simulated write conflict")

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[int64]*models.User

	// failAddExperience makes the next N AddExperience calls fail.
	failAddExperience int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*models.User)}
}

func (r *fakeUserRepo) GetByID(_ context.Context, userID int64) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) AddExperience(_ context.Context, userID int64, delta int64) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAddExperience > 0 {
		r.failAddExperience--
		return 0, false, errWriteConflict
	}
	u, ok := r.users[userID]
	if !ok {
		return 0, false, nil
	}
	if u.Experience+delta < 0 {
		return 0, false, nil
	}
	u.Experience += delta
	return u.Experience, true, nil
}

func (r *fakeUserRepo) IncrementCounter(_ context.Context, userID int64, column string, by int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user %d not found", userID)
	}
	switch column {
	case models.CounterPosts:
		u.PostCount += by
	case models.CounterComments:
		u.CommentCount += by
	case models.CounterFavorites:
		u.FavoriteCount += by
	case models.CounterFollowing:
		u.FollowingCount += by
	case models.CounterMaxPostLikes:
		u.MaxPostLikes += by
	case models.CounterCommunitiesCreated:
		u.CommunitiesCreated += by
	default:
		return fmt.Errorf("unknown counter column: %s", column)
	}
	return nil
}

func (r *fakeUserRepo) RaiseMaxPostLikes(_ context.Context, userID int64, likes int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user %d not found", userID)
	}
	if likes > u.MaxPostLikes {
		u.MaxPostLikes = likes
	}
	return nil
}

func (r *fakeUserRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r *fakeUserRepo) CountWithMoreExperience(_ context.Context, exp int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.users {
		if u.Experience > exp {
			n++
		}
	}
	return n, nil
}

func (r *fakeUserRepo) GetTopByExperience(_ context.Context, limit int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		copied := *u
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Experience != users[j].Experience {
			return users[i].Experience > users[j].Experience
		}
		return users[i].ID < users[j].ID
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

type fakeExpRepo struct {
	mu      sync.Mutex
	nextID  int64
	entries []*models.ExperienceLog
	levels  []*models.LevelLog
}

func newFakeExpRepo() *fakeExpRepo { return &fakeExpRepo{} }

func (r *fakeExpRepo) Append(_ context.Context, entry *models.ExperienceLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.DedupKey == entry.DedupKey {
			return fmt.Errorf("duplicate dedup key %s", entry.DedupKey)
		}
	}
	r.nextID++
	entry.ID = r.nextID
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeExpRepo) SumByUser(_ context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, e := range r.entries {
		if e.UserID == userID {
			sum += e.Delta
		}
	}
	return sum, nil
}

func (r *fakeExpRepo) GetPage(_ context.Context, userID int64, page, pageSize int) ([]*models.ExperienceLog, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*models.ExperienceLog
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID == userID {
			all = append(all, r.entries[i])
		}
	}
	total := len(all)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *fakeExpRepo) LogLevelUp(_ context.Context, log *models.LevelLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.CreatedAt = time.Now()
	r.levels = append(r.levels, log)
	return nil
}

func (r *fakeExpRepo) GetLevelLogs(_ context.Context, userID int64, limit int) ([]*models.LevelLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var logs []*models.LevelLog
	for i := len(r.levels) - 1; i >= 0 && len(logs) < limit; i-- {
		if r.levels[i].UserID == userID {
			logs = append(logs, r.levels[i])
		}
	}
	return logs, nil
}

type fakeCheckInRepo struct {
	mu      sync.Mutex
	nextID  int64
	records map[string]*models.CheckInRecord
}

func newFakeCheckInRepo() *fakeCheckInRepo {
	return &fakeCheckInRepo{records: make(map[string]*models.CheckInRecord)}
}

func checkInKey(userID int64, dayKey string) string {
	return fmt.Sprintf("%d|%s", userID, dayKey)
}

func (r *fakeCheckInRepo) GetByDate(_ context.Context, userID int64, dayKey string) (*models.CheckInRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[checkInKey(userID, dayKey)]
	if !ok {
		return nil, nil
	}
	copied := *rec
	return &copied, nil
}

func (r *fakeCheckInRepo) GetLatest(_ context.Context, userID int64) (*models.CheckInRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.CheckInRecord
	for _, rec := range r.records {
		if rec.UserID != userID {
			continue
		}
		if latest == nil || rec.CheckInDate > latest.CheckInDate {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeCheckInRepo) Create(_ context.Context, record *models.CheckInRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := checkInKey(record.UserID, record.CheckInDate)
	if _, exists := r.records[key]; exists {
		return false, nil
	}
	r.nextID++
	record.ID = r.nextID
	record.CreatedAt = time.Now()
	copied := *record
	r.records[key] = &copied
	return true, nil
}

func (r *fakeCheckInRepo) GetRecent(_ context.Context, userID int64, days int) ([]*models.CheckInRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var recs []*models.CheckInRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			copied := *rec
			recs = append(recs, &copied)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CheckInDate > recs[j].CheckInDate })
	if len(recs) > days {
		recs = recs[:days]
	}
	return recs, nil
}

type fakeBadgeRepo struct {
	mu     sync.Mutex
	defs   map[string]*models.BadgeDefinition
	grants map[string]*models.UserBadge
}

func newFakeBadgeRepo() *fakeBadgeRepo {
	return &fakeBadgeRepo{
		defs:   make(map[string]*models.BadgeDefinition),
		grants: make(map[string]*models.UserBadge),
	}
}

func grantKey(userID int64, badgeID string) string {
	return fmt.Sprintf("%d|%s", userID, badgeID)
}

func (r *fakeBadgeRepo) GetActiveDefinitions(_ context.Context) ([]*models.BadgeDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var defs []*models.BadgeDefinition
	for _, def := range r.defs {
		if def.Active {
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].BadgeID < defs[j].BadgeID })
	return defs, nil
}

// Badges makes the fake usable as a BadgeSource.
func (r *fakeBadgeRepo) Badges(ctx context.Context) ([]*models.BadgeDefinition, error) {
	return r.GetActiveDefinitions(ctx)
}

func (r *fakeBadgeRepo) GetDefinition(_ context.Context, badgeID string) (*models.BadgeDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[badgeID]
	if !ok {
		return nil, nil
	}
	return def, nil
}

func (r *fakeBadgeRepo) UpsertDefinition(_ context.Context, def *models.BadgeDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.BadgeID] = def
	return nil
}

func (r *fakeBadgeRepo) GetUserBadges(_ context.Context, userID int64) ([]*models.UserBadge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var grants []*models.UserBadge
	for _, g := range r.grants {
		if g.UserID == userID {
			copied := *g
			copied.Definition = r.defs[g.BadgeID]
			grants = append(grants, &copied)
		}
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].EarnedAt.After(grants[j].EarnedAt) })
	return grants, nil
}

func (r *fakeBadgeRepo) GetGrantedIDs(_ context.Context, userID int64) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	granted := make(map[string]bool)
	for _, g := range r.grants {
		if g.UserID == userID {
			granted[g.BadgeID] = true
		}
	}
	return granted, nil
}

func (r *fakeBadgeRepo) Grant(_ context.Context, grant *models.UserBadge) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := grantKey(grant.UserID, grant.BadgeID)
	if _, exists := r.grants[key]; exists {
		return false, nil
	}
	copied := *grant
	r.grants[key] = &copied
	return true, nil
}

func (r *fakeBadgeRepo) SetDisplayed(_ context.Context, userID int64, badgeID string, displayed bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grants[grantKey(userID, badgeID)]
	if !ok {
		return false, nil
	}
	g.Displayed = displayed
	return true, nil
}

type fakeTaskRepo struct {
	mu       sync.Mutex
	nextID   int64
	defs     map[string]*models.TaskDefinition
	progress map[string]*models.TaskProgress
	byID     map[int64]*models.TaskProgress
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{
		defs:     make(map[string]*models.TaskDefinition),
		progress: make(map[string]*models.TaskProgress),
		byID:     make(map[int64]*models.TaskProgress),
	}
}

func progressKey(userID int64, taskID, cycleKey string) string {
	return fmt.Sprintf("%d|%s|%s", userID, taskID, cycleKey)
}

func (r *fakeTaskRepo) GetActiveDefinitions(_ context.Context) ([]*models.TaskDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var defs []*models.TaskDefinition
	for _, def := range r.defs {
		if def.Active {
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].TaskID < defs[j].TaskID })
	return defs, nil
}

// Tasks makes the fake usable as a TaskSource.
func (r *fakeTaskRepo) Tasks(ctx context.Context) ([]*models.TaskDefinition, error) {
	return r.GetActiveDefinitions(ctx)
}

func (r *fakeTaskRepo) GetDefinition(_ context.Context, taskID string) (*models.TaskDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	def, ok := r.defs[taskID]
	if !ok {
		return nil, nil
	}
	return def, nil
}

func (r *fakeTaskRepo) UpsertDefinition(_ context.Context, def *models.TaskDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.TaskID] = def
	return nil
}

func (r *fakeTaskRepo) GetProgress(_ context.Context, userID int64, taskID, cycleKey string) (*models.TaskProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.progress[progressKey(userID, taskID, cycleKey)]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (r *fakeTaskRepo) CreateProgress(_ context.Context, progress *models.TaskProgress) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := progressKey(progress.UserID, progress.TaskID, progress.CycleKey)
	if _, exists := r.progress[key]; exists {
		return false, nil
	}
	r.nextID++
	progress.ID = r.nextID
	copied := *progress
	r.progress[key] = &copied
	r.byID[copied.ID] = &copied
	return true, nil
}

func (r *fakeTaskRepo) IncrementProgress(_ context.Context, userID int64, taskID, cycleKey string, by int) (*models.TaskProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.progress[progressKey(userID, taskID, cycleKey)]
	if !ok {
		return nil, nil
	}
	p.CurrentCount += by
	copied := *p
	return &copied, nil
}

func (r *fakeTaskRepo) MarkCompleted(_ context.Context, progressID int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[progressID]
	if !ok || p.Completed {
		return false, nil
	}
	p.Completed = true
	p.CompletedAt = &at
	if p.CurrentCount < p.TargetCount {
		p.CurrentCount = p.TargetCount
	}
	return true, nil
}

type fakeRankCache struct {
	mu    sync.Mutex
	tops  map[int][]cache.LeaderboardEntry
	ranks map[int64]cache.RankInfo
}

func newFakeRankCache() *fakeRankCache {
	return &fakeRankCache{
		tops:  make(map[int][]cache.LeaderboardEntry),
		ranks: make(map[int64]cache.RankInfo),
	}
}

func (c *fakeRankCache) GetTop(_ context.Context, limit int) ([]cache.LeaderboardEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, ok := c.tops[limit]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return entries, nil
}

func (c *fakeRankCache) SetTop(_ context.Context, limit int, entries []cache.LeaderboardEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tops[limit] = entries
	return nil
}

func (c *fakeRankCache) GetRank(_ context.Context, userID int64) (*cache.RankInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.ranks[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &info, nil
}

func (c *fakeRankCache) SetRank(_ context.Context, userID int64, info cache.RankInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ranks[userID] = info
	return nil
}

func (c *fakeRankCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tops = make(map[int][]cache.LeaderboardEntry)
	c.ranks = make(map[int64]cache.RankInfo)
	return nil
}

type staticTiers struct {
	tiers []*models.LevelTier
}

func (s staticTiers) Tiers(context.Context) ([]*models.LevelTier, error) {
	return s.tiers, nil
}

// defaultTestTiers mirrors the seeded level table thresholds.
func defaultTestTiers() []*models.LevelTier {
	bounds := []struct {
		min, max int64
	}{
		{0, 99}, {100, 299}, {300, 599}, {600, 999}, {1000, 1499},
		{1500, 2099}, {2100, 2799}, {2800, 3599}, {3600, 4499},
		{4500, models.TopTierMaxExp},
	}
	tiers := make([]*models.LevelTier, 0, len(bounds))
	for i, b := range bounds {
		tiers = append(tiers, &models.LevelTier{
			Level:  i + 1,
			Name:   fmt.Sprintf("Tier %d", i+1),
			MinExp: b.min,
			MaxExp: b.max,
		})
	}
	return tiers
}

// testEnv wires the full service graph over the in-memory fakes.
type testEnv struct {
	clk       *testClock
	users     *fakeUserRepo
	ledger    *fakeExpRepo
	checkins  *fakeCheckInRepo
	badgeRepo *fakeBadgeRepo
	taskRepo  *fakeTaskRepo
	rankCache *fakeRankCache

	level   *LevelService
	badges  *BadgeService
	tasks   *TaskService
	checkin *CheckInService
	rank    *RankService
	tracker *ActionTracker
}

func newTestEnv() *testEnv {
	e := &testEnv{
		clk:       newTestClock(time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)),
		users:     newFakeUserRepo(),
		ledger:    newFakeExpRepo(),
		checkins:  newFakeCheckInRepo(),
		badgeRepo: newFakeBadgeRepo(),
		taskRepo:  newFakeTaskRepo(),
		rankCache: newFakeRankCache(),
	}

	locks := userlock.NewManager(0)
	cfg := treehole.DefaultConfig().Progression
	tiers := staticTiers{tiers: defaultTestTiers()}

	e.badges = NewBadgeService(e.badgeRepo, e.users, e.checkins, e.badgeRepo, tiers, e.clk)
	e.rank = NewRankService(e.users, tiers, e.rankCache, cfg)
	e.level = NewLevelService(e.users, e.ledger, tiers, e.badges, e.rank, locks, e.clk, cfg)
	e.tasks = NewTaskService(e.taskRepo, e.taskRepo, e.level, e.badges, locks, e.clk)
	e.checkin = NewCheckInService(e.checkins, e.level, e.tasks, e.badges, locks, e.clk, cfg)
	e.tracker = NewActionTracker(e.users, e.level, e.tasks, e.badges, locks)

	return e
}

func (e *testEnv) addUser(id int64, exp int64) *models.User {
	u := &models.User{
		ID:         id,
		Username:   fmt.Sprintf("user%d", id),
		Experience: exp,
		JoinedAt:   e.clk.Now(),
	}
	e.users.users[id] = u
	return u
}
