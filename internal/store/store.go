// ABOUTME: Post model, snapshot record and the Snapshotter interface
// ABOUTME: Defines the persisted layout shared by the JSON file and SQLite backends

package store

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"
)

// ErrNotFound is returned when a post does not exist
var ErrNotFound = errors.New("post not found")

// Post is a photo broadcast to the configured channels.
// Values handed out by Store are copies; mutating them changes nothing.
type Post struct {
	ID      string
	Photo   string
	Caption *string // nil means no caption
	Likes   int

	LikedUsers map[int64]struct{}
	MessageIDs map[string]int // channel -> message id of the delivered copy
}

// CreatedAt decodes the creation time embedded in the id.
func (p Post) CreatedAt() time.Time {
	ms, err := strconv.ParseInt(p.ID, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// HasLiked reports whether the user already liked the post.
func (p Post) HasLiked(userID int64) bool {
	_, ok := p.LikedUsers[userID]
	return ok
}

// Likers returns the liked-user ids in ascending order.
func (p Post) Likers() []int64 {
	ids := make([]int64, 0, len(p.LikedUsers))
	for id := range p.LikedUsers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p *Post) clone() Post {
	c := *p
	if p.Caption != nil {
		caption := *p.Caption
		c.Caption = &caption
	}
	c.LikedUsers = make(map[int64]struct{}, len(p.LikedUsers))
	for id := range p.LikedUsers {
		c.LikedUsers[id] = struct{}{}
	}
	c.MessageIDs = make(map[string]int, len(p.MessageIDs))
	for ch, id := range p.MessageIDs {
		c.MessageIDs[ch] = id
	}
	return c
}

// Record is the persisted form of a Post.
type Record struct {
	ID         string         `json:"id"`
	Photo      string         `json:"photo"`
	Caption    *string        `json:"caption,omitempty"`
	Likes      int            `json:"likes"`
	LikedUsers []int64        `json:"likedUsers"`
	MessageIDs map[string]int `json:"messageIds"`
}

func (p *Post) record() Record {
	rec := Record{
		ID:         p.ID,
		Photo:      p.Photo,
		Caption:    p.Caption,
		Likes:      p.Likes,
		LikedUsers: p.Likers(),
		MessageIDs: make(map[string]int, len(p.MessageIDs)),
	}
	for ch, id := range p.MessageIDs {
		rec.MessageIDs[ch] = id
	}
	return rec
}

func (r Record) post() *Post {
	p := &Post{
		ID:         r.ID,
		Photo:      r.Photo,
		Caption:    r.Caption,
		LikedUsers: make(map[int64]struct{}, len(r.LikedUsers)),
		MessageIDs: make(map[string]int, len(r.MessageIDs)),
	}
	for _, id := range r.LikedUsers {
		p.LikedUsers[id] = struct{}{}
	}
	for ch, id := range r.MessageIDs {
		p.MessageIDs[ch] = id
	}
	p.Likes = len(p.LikedUsers)
	return p
}

// Snapshotter persists full snapshots of the store.
type Snapshotter interface {
	// Load returns the last saved snapshot. A backend with nothing saved yet
	// returns an empty slice and no error.
	Load(ctx context.Context) ([]Record, error)
	// Save replaces the stored snapshot with records.
	Save(ctx context.Context, records []Record) error
	Close() error
}

// lessID orders ids numerically, falling back to string order for ids that
// are not numbers.
func lessID(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
