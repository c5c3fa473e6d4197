package models

import (
	jsoniter "github.com/json-iterator/go"
)

// Origin tells whether a change came from the server or from a local guess.
type Origin int8

const (
	OriginRemote = Origin(iota)
	OriginLocal
)

func (v Origin) String() string {
	if v == OriginLocal {
		return "local"
	}
	return "remote"
}

const (
	PushNewPost     = "newPost"
	PushPostUpdated = "postUpdated"
	PushPostDeleted = "postDeleted"
	PushPostViewed  = "postViewed"
)

// PushMessage is a named message as delivered by the push transport.
type PushMessage struct {
	Type string              `json:"type"`
	Data jsoniter.RawMessage `json:"data"`
}

// FeedEvent is one of PostCreated, PostPatched, PostDeleted or ViewIncremented.
type FeedEvent interface {
	PostID() string
	Kind() string
}

type PostCreated struct {
	Post Post
	// Patch holds only the fields present in the payload, it is merged
	// instead when the post is already in the feed by the time it applies.
	Patch *PostPatch
}

type PostPatched struct {
	ID     string
	Patch  PostPatch
	Origin Origin
}

type PostDeleted struct {
	ID string
}

type ViewIncremented struct {
	ID    string
	Views int64
}

func (v PostCreated) PostID() string     { return v.Post.ID }
func (v PostPatched) PostID() string     { return v.ID }
func (v PostDeleted) PostID() string     { return v.ID }
func (v ViewIncremented) PostID() string { return v.ID }

func (PostCreated) Kind() string     { return "created" }
func (PostPatched) Kind() string     { return "patched" }
func (PostDeleted) Kind() string     { return "deleted" }
func (ViewIncremented) Kind() string { return "viewed" }
