package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User carries the experience aggregate plus the activity counters badge
// conditions are evaluated against. The counters are maintained by the
// action tracker; the experience column is only ever changed through the
// guarded increment in UserRepository.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                 int64     `bun:"id,pk,autoincrement"`
	Username           string    `bun:"username,notnull,unique"`
	Experience         int64     `bun:"experience,notnull,default:0"`
	PostCount          int       `bun:"post_count,notnull,default:0"`
	CommentCount       int       `bun:"comment_count,notnull,default:0"`
	FavoriteCount      int       `bun:"favorite_count,notnull,default:0"`
	FollowingCount     int       `bun:"following_count,notnull,default:0"`
	MaxPostLikes       int       `bun:"max_post_likes,notnull,default:0"`
	CommunitiesCreated int       `bun:"communities_created,notnull,default:0"`
	JoinedAt           time.Time `bun:"joined_at,notnull"`
	CreatedAt          time.Time `bun:"created_at,notnull"`
	UpdatedAt          time.Time `bun:"updated_at,notnull"`
}

// Counter column names accepted by UserRepository.IncrementCounter.
const (
	CounterPosts              = "post_count"
	CounterComments           = "comment_count"
	CounterFavorites          = "favorite_count"
	CounterFollowing          = "following_count"
	CounterMaxPostLikes       = "max_post_likes"
	CounterCommunitiesCreated = "communities_created"
)
