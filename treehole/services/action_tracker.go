package services

import (
	"context"
	"log/slog"

	"github.com/treehole/treehole-go/treehole/database/models"
	"github.com/treehole/treehole-go/treehole/database/repositories"
	"github.com/treehole/treehole-go/treehole/userlock"
)

// Experience granted per forum action.
const (
	expPerPost         = 10
	expPerComment      = 5
	expPerLikeReceived = 2
	expPerFavorite     = 1
	expPerCreateBar    = 20
)

// ActionTracker is the entry point forum features call when a user acts.
// Each Track method bumps the relevant counter, grants the action's
// experience, advances matching tasks, and re-evaluates badges, all under
// the per-user lock.
type ActionTracker struct {
	users  repositories.UserRepository
	exp    expGranter
	tasks  actionReporter
	badges BadgeTrigger
	locks  *userlock.Manager
}

func NewActionTracker(
	users repositories.UserRepository,
	exp expGranter,
	tasks actionReporter,
	badges BadgeTrigger,
	locks *userlock.Manager,
) *ActionTracker {
	return &ActionTracker{
		users:  users,
		exp:    exp,
		tasks:  tasks,
		badges: badges,
		locks:  locks,
	}
}

// TrackLogin records a login. Logins grant no experience; the check-in
// flow owns the daily reward. The first login still unlocks its badge.
func (t *ActionTracker) TrackLogin(ctx context.Context, userID int64) error {
	if t.badges != nil {
		t.badges.Trigger(ctx, userID, models.ActionLogin, nil)
	}
	return nil
}

// TrackPost records a published post.
func (t *ActionTracker) TrackPost(ctx context.Context, userID, postID int64) error {
	return t.track(ctx, userID, models.ActionPost, models.CounterPosts, expPerPost, "Published a post", &postID)
}

// TrackComment records a published comment.
func (t *ActionTracker) TrackComment(ctx context.Context, userID, commentID int64) error {
	return t.track(ctx, userID, models.ActionComment, models.CounterComments, expPerComment, "Published a comment", &commentID)
}

// TrackLikeReceived records that one of the user's posts reached
// likeCount likes. The high-water mark feeds the popular-post badges.
func (t *ActionTracker) TrackLikeReceived(ctx context.Context, userID, postID int64, likeCount int) error {
	unlock := t.locks.Lock(userID)
	defer unlock()

	if err := t.users.RaiseMaxPostLikes(ctx, userID, likeCount); err != nil {
		return err
	}

	if _, err := t.exp.addExperienceLocked(ctx, userID, expPerLikeReceived, models.ActionLikeReceived, "Received a like", &postID); err != nil {
		slog.Error("Failed to grant like experience",
			slog.String("type", "svc"),
			slog.Int64("user_id", userID),
			slog.Any("error", err))
	}

	if t.tasks != nil {
		t.tasks.onActionLocked(ctx, userID, models.ActionLikeReceived, 1)
	}
	if t.badges != nil {
		t.badges.Trigger(ctx, userID, models.ActionLikeReceived, map[string]interface{}{
			"like_count": likeCount,
		})
	}

	return nil
}

// TrackFavorite records that the user favorited a post.
func (t *ActionTracker) TrackFavorite(ctx context.Context, userID, postID int64) error {
	return t.track(ctx, userID, models.ActionFavorite, models.CounterFavorites, expPerFavorite, "Favorited a post", &postID)
}

// TrackFollow records that the user followed someone. Follows grant no
// experience but advance tasks and badges.
func (t *ActionTracker) TrackFollow(ctx context.Context, userID, followedID int64) error {
	return t.track(ctx, userID, models.ActionFollow, models.CounterFollowing, 0, "", &followedID)
}

// TrackCommunityCreated records that the user founded a community.
func (t *ActionTracker) TrackCommunityCreated(ctx context.Context, userID, barID int64) error {
	return t.track(ctx, userID, models.ActionCreateBar, models.CounterCommunitiesCreated, expPerCreateBar, "Created a community", &barID)
}

func (t *ActionTracker) track(ctx context.Context, userID int64, actionType, counter string, reward int64, description string, relatedID *int64) error {
	unlock := t.locks.Lock(userID)
	defer unlock()

	if err := t.users.IncrementCounter(ctx, userID, counter, 1); err != nil {
		return err
	}

	if reward > 0 {
		if _, err := t.exp.addExperienceLocked(ctx, userID, reward, actionType, description, relatedID); err != nil {
			slog.Error("Failed to grant action experience",
				slog.String("type", "svc"),
				slog.Int64("user_id", userID),
				slog.String("action_type", actionType),
				slog.Any("error", err))
		}
	}

	if t.tasks != nil {
		t.tasks.onActionLocked(ctx, userID, actionType, 1)
	}
	if t.badges != nil {
		t.badges.Trigger(ctx, userID, actionType, nil)
	}

	return nil
}
