package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

const answerPrefix = "study:answer"

// AnswerCache stores generated study responses. Keys embed the fingerprint of
// the scope's document set, so any upload or delete makes older entries
// unreachable; they age out by TTL.
type AnswerCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewAnswerCache(client *redisv9.Client, ttl time.Duration) *AnswerCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AnswerCache{client: client, ttl: ttl}
}

// AnswerKey builds the cache key of one request.
func AnswerKey(userID, subjectKey, fingerprint, request string) string {
	sum := sha1.Sum([]byte(request))
	if fingerprint == "" {
		fingerprint = "empty"
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s", answerPrefix, userID, subjectKey, fingerprint, hex.EncodeToString(sum[:]))
}

func scopePattern(userID, subjectKey string) string {
	return fmt.Sprintf("%s:%s:%s:*", answerPrefix, escapeGlob(userID), escapeGlob(subjectKey))
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
	return r.Replace(s)
}

func (c *AnswerCache) Get(ctx context.Context, key string) (string, bool, error) {
	raw, err := c.client.Get(ctx, key).Result()
	if err == redisv9.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get answer failed: %w", err)
	}
	return raw, true, nil
}

func (c *AnswerCache) Set(ctx context.Context, key, answer string) error {
	if err := c.client.Set(ctx, key, answer, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set answer failed: %w", err)
	}
	return nil
}

// InvalidateScope removes every cached answer of a subject.
func (c *AnswerCache) InvalidateScope(ctx context.Context, userID, subjectKey string) error {
	iter := c.client.Scan(ctx, 0, scopePattern(userID, subjectKey), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 100 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis delete answers failed: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan answers failed: %w", err)
	}
	if len(keys) > 0 {
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis delete answers failed: %w", err)
		}
	}
	return nil
}
