package gap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"git.solsynth.dev/hypernet/feedsync/pkg/internal/models"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

var ErrNotAcknowledged = errors.New("server did not acknowledge the request")

type feedResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Posts   []models.Post `json:"posts"`
}

type mutationResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Post    *models.Post `json:"post"`
}

// APIClient talks to the feed HTTP API. It loads feeds and carries out
// the user mutations.
type APIClient struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewAPIClient(endpoint, token string) *APIClient {
	return &APIClient{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (v *APIClient) FetchFeed(ctx context.Context, scope models.Scope) ([]models.Post, error) {
	target := fmt.Sprintf("%s/posts?scope=%s", v.endpoint, url.QueryEscape(scope))
	log.Debug().Str("url", target).Msg("Fetching feed...")

	body, err := v.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %v", err)
	}

	var resp feedResponse
	if err := jsoniter.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse feed JSON: %v", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrNotAcknowledged, resp.Message)
	}

	log.Debug().Str("url", target).Int("count", len(resp.Posts)).Msg("Fetched feed...")
	return resp.Posts, nil
}

func (v *APIClient) LikePost(ctx context.Context, postID string) error {
	_, err := v.mutate(ctx, http.MethodPatch, fmt.Sprintf("/posts/%s/like", url.PathEscape(postID)), nil)
	return err
}

func (v *APIClient) DeletePost(ctx context.Context, postID string) error {
	_, err := v.mutate(ctx, http.MethodDelete, fmt.Sprintf("/posts/%s", url.PathEscape(postID)), nil)
	return err
}

func (v *APIClient) AddComment(ctx context.Context, postID, text string) (*models.Post, error) {
	payload, err := jsoniter.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	return v.mutate(ctx, http.MethodPost, fmt.Sprintf("/posts/%s/comments", url.PathEscape(postID)), payload)
}

func (v *APIClient) DeleteComment(ctx context.Context, postID, commentID string) (*models.Post, error) {
	return v.mutate(ctx, http.MethodDelete, fmt.Sprintf(
		"/posts/%s/comments/%s",
		url.PathEscape(postID),
		url.PathEscape(commentID),
	), nil)
}

func (v *APIClient) PinComment(ctx context.Context, postID, commentID string) (*models.Post, error) {
	return v.mutate(ctx, http.MethodPost, fmt.Sprintf(
		"/posts/%s/comments/%s/pin",
		url.PathEscape(postID),
		url.PathEscape(commentID),
	), nil)
}

func (v *APIClient) mutate(ctx context.Context, method, path string, payload []byte) (*models.Post, error) {
	body, err := v.do(ctx, method, v.endpoint+path, payload)
	if err != nil {
		return nil, err
	}

	var resp mutationResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := jsoniter.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse response JSON: %v", err)
		}
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrNotAcknowledged, resp.Message)
	}
	return resp.Post, nil
}

func (v *APIClient) do(ctx context.Context, method, target string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if len(v.token) > 0 {
		req.Header.Set("Authorization", "Bearer "+v.token)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status code: %d, response: %s", resp.StatusCode, body)
	}
	return body, nil
}
