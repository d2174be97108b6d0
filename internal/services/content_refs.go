package services

import (
	"context"
	"errors"

	"appfeedback/internal/observability"
	contextutils "appfeedback/internal/utils"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// RedisContentReferences resolves explorations to their story from a Redis
// hash the content catalog publishes: field exploration id, value story id.
type RedisContentReferences struct {
	rdb *goredis.Client
	key string
}

// NewRedisContentReferences reads the "<prefix>:exploration_story" hash.
func NewRedisContentReferences(rdb *goredis.Client, keyPrefix string) *RedisContentReferences {
	if rdb == nil {
		panic("NewRedisContentReferences: redis client is nil")
	}
	return &RedisContentReferences{rdb: rdb, key: keyPrefix + ":exploration_story"}
}

// StoryIDForExploration implements models.ContentReferences.
func (r *RedisContentReferences) StoryIDForExploration(ctx context.Context, explorationID string) (result0 string, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "story_id_for_exploration",
		attribute.String("content.exploration_id", explorationID))
	defer observability.FinishSpan(span, &err)

	storyID, err := r.rdb.HGet(ctx, r.key, explorationID).Result()
	if errors.Is(err, goredis.Nil) {
		return "", contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "exploration %s is not in the catalog", explorationID)
	}
	if err != nil {
		return "", contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "failed to look up exploration %s: %v", explorationID, err)
	}
	return storyID, nil
}

// SetStoryForExploration records which story an exploration belongs to.
func (r *RedisContentReferences) SetStoryForExploration(ctx context.Context, explorationID, storyID string) (err error) {
	ctx, span := observability.TraceReportFunction(ctx, "set_story_for_exploration",
		attribute.String("content.exploration_id", explorationID))
	defer observability.FinishSpan(span, &err)

	if err := r.rdb.HSet(ctx, r.key, explorationID, storyID).Err(); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "failed to store exploration %s: %v", explorationID, err)
	}
	return nil
}
