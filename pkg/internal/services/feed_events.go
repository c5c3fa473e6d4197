package services

import (
	"bytes"
	"fmt"

	"git.solsynth.dev/hypernet/feedsync/pkg/internal/models"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

// Normalizer turns push transport messages into feed events. It never panics
// on bad input, anything it cannot classify comes back as ErrMalformedEvent.
type Normalizer struct {
	known     func(id string) bool
	validator *validator.Validate
}

// NewNormalizer builds a normalizer, known reports whether a post id is
// already in the feed so full post payloads can be told apart as updates.
// The answer is only a hint, a post created after the check is still
// merged field by field when its event applies.
func NewNormalizer(known func(id string) bool) *Normalizer {
	if known == nil {
		known = func(string) bool { return false }
	}
	return &Normalizer{
		known:     known,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type postIdentity struct {
	ID       string `json:"id"`
	LegacyID string `json:"_id"`
	PostID   string `json:"post_id"`
	PostIDJS string `json:"postId"`
}

func (v postIdentity) Resolve() string {
	for _, id := range []string{v.ID, v.LegacyID, v.PostID, v.PostIDJS} {
		if len(id) > 0 {
			return id
		}
	}
	return ""
}

type viewPayload struct {
	postIdentity
	Views *int64 `json:"views"`
}

func (n *Normalizer) Normalize(msg models.PushMessage) (models.FeedEvent, error) {
	data := bytes.TrimSpace(msg.Data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty %q payload", ErrMalformedEvent, msg.Type)
	}

	switch msg.Type {
	case models.PushNewPost, models.PushPostUpdated:
		return n.decodePost(data)
	case models.PushPostDeleted:
		return n.decodeDeletion(data)
	case models.PushPostViewed:
		return n.decodeViews(data)
	}

	// Unnamed or unknown message, classify by shape
	switch data[0] {
	case '"':
		return n.decodeDeletion(data)
	case '{':
		var probe map[string]jsoniter.RawMessage
		if err := jsoniter.Unmarshal(data, &probe); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if _, ok := probe["views"]; ok {
			return n.decodeViews(data)
		}
		return n.decodePost(data)
	default:
		return nil, fmt.Errorf("%w: unrecognized %q payload", ErrMalformedEvent, msg.Type)
	}
}

func (n *Normalizer) decodePost(data []byte) (models.FeedEvent, error) {
	var identity postIdentity
	var post models.Post
	var patch models.PostPatch
	if err := jsoniter.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("%w: failed to parse post: %v", ErrMalformedEvent, err)
	}
	if err := jsoniter.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("%w: failed to parse post: %v", ErrMalformedEvent, err)
	}
	if err := jsoniter.Unmarshal(data, &patch); err != nil {
		return nil, fmt.Errorf("%w: failed to parse post: %v", ErrMalformedEvent, err)
	}

	post.ID = identity.Resolve()
	if err := n.validator.Struct(post); err != nil {
		return nil, fmt.Errorf("%w: invalid post: %v", ErrMalformedEvent, err)
	}

	if n.known(post.ID) {
		return models.PostPatched{ID: post.ID, Patch: patch, Origin: models.OriginRemote}, nil
	}
	return models.PostCreated{Post: post, Patch: &patch}, nil
}

func (n *Normalizer) decodeDeletion(data []byte) (models.FeedEvent, error) {
	var id string
	if data[0] == '"' {
		if err := jsoniter.Unmarshal(data, &id); err != nil {
			return nil, fmt.Errorf("%w: failed to parse post id: %v", ErrMalformedEvent, err)
		}
	} else {
		var identity postIdentity
		if err := jsoniter.Unmarshal(data, &identity); err != nil {
			return nil, fmt.Errorf("%w: failed to parse post id: %v", ErrMalformedEvent, err)
		}
		id = identity.Resolve()
	}
	if len(id) == 0 {
		return nil, fmt.Errorf("%w: deletion without post id", ErrMalformedEvent)
	}
	return models.PostDeleted{ID: id}, nil
}

func (n *Normalizer) decodeViews(data []byte) (models.FeedEvent, error) {
	var payload viewPayload
	if err := jsoniter.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: failed to parse view count: %v", ErrMalformedEvent, err)
	}
	id := payload.Resolve()
	if len(id) == 0 || payload.Views == nil || *payload.Views < 0 {
		return nil, fmt.Errorf("%w: incomplete view count", ErrMalformedEvent)
	}
	return models.ViewIncremented{ID: id, Views: *payload.Views}, nil
}
