package models

import (
	"time"
)

type MediaKind = string

const (
	MediaKindImage = MediaKind("image")
	MediaKindVideo = MediaKind("video")
	MediaKindGif   = MediaKind("gif")
)

const (
	MaxPostMedia      = 4
	MaxPostBodyLength = 5000
	MaxCommentLength  = 1000
)

type Scope = string

const (
	ScopeAll       = Scope("all")
	ScopeFollowing = Scope("following")
)

type Author struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type Media struct {
	Kind MediaKind `json:"kind" validate:"required,oneof=image video gif"`
	URL  string    `json:"url" validate:"required"`
}

type Comment struct {
	ID        string    `json:"id" validate:"required"`
	Author    Author    `json:"author"`
	Text      string    `json:"text" validate:"max=1000"`
	CreatedAt time.Time `json:"created_at"`
	IsPinned  bool      `json:"is_pinned"`
}

// Post is a single feed item. Slices are shared between snapshots and must be
// treated as read-only once the post is handed out by the store.
type Post struct {
	ID          string    `json:"id" validate:"required"`
	Author      Author    `json:"author"`
	Body        string    `json:"body" validate:"max=5000"`
	Media       []Media   `json:"media" validate:"max=4,dive"`
	Poll        *Poll     `json:"poll"`
	Hashtags    []string  `json:"hashtags"`
	LikeUserIDs []string  `json:"like_user_ids"`
	Comments    []Comment `json:"comments" validate:"dive"`
	CreatedAt   time.Time `json:"created_at"`
	IsPinned    bool      `json:"is_pinned"`
	ViewCount   int64     `json:"view_count"`
}

func (v Post) LikedBy(user string) bool {
	for _, id := range v.LikeUserIDs {
		if id == user {
			return true
		}
	}
	return false
}

// AuthorPatch carries only the author keys present in an update payload.
type AuthorPatch struct {
	ID     *string `json:"id"`
	Handle *string `json:"handle"`
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
}

// PostPatch is a partial post. A nil pointer or nil slice means the field was
// absent from the payload and the current value is kept; an empty non-nil
// slice clears the field.
type PostPatch struct {
	Author      *AuthorPatch `json:"author"`
	Body        *string      `json:"body"`
	Media       []Media      `json:"media"`
	Poll        *Poll        `json:"poll"`
	Hashtags    []string     `json:"hashtags"`
	LikeUserIDs []string     `json:"like_user_ids"`
	Comments    []Comment    `json:"comments"`
	IsPinned    *bool        `json:"is_pinned"`
	ViewCount   *int64       `json:"view_count"`
}

// Fields lists which post fields the patch defines.
func (v PostPatch) Fields() []PostField {
	var out []PostField
	if v.Author != nil {
		out = append(out, PostFieldAuthor)
	}
	if v.Body != nil {
		out = append(out, PostFieldBody)
	}
	if v.Media != nil {
		out = append(out, PostFieldMedia)
	}
	if v.Poll != nil {
		out = append(out, PostFieldPoll)
	}
	if v.Hashtags != nil {
		out = append(out, PostFieldHashtags)
	}
	if v.LikeUserIDs != nil {
		out = append(out, PostFieldLikes)
	}
	if v.Comments != nil {
		out = append(out, PostFieldComments)
	}
	if v.IsPinned != nil {
		out = append(out, PostFieldPinned)
	}
	if v.ViewCount != nil {
		out = append(out, PostFieldViews)
	}
	return out
}

type PostField = string

const (
	PostFieldAuthor   = PostField("author")
	PostFieldBody     = PostField("body")
	PostFieldMedia    = PostField("media")
	PostFieldPoll     = PostField("poll")
	PostFieldHashtags = PostField("hashtags")
	PostFieldLikes    = PostField("like_user_ids")
	PostFieldComments = PostField("comments")
	PostFieldPinned   = PostField("is_pinned")
	PostFieldViews    = PostField("view_count")
)
