package images

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/otherjamesbrown/meetchat/pkg/logging"
)

// Redis key prefix for per-meeting image lists.
const keyPrefixImages = "images:"

// RedisStore keeps each meeting's images in a Redis list. RPUSH is atomic, so
// concurrent writers for one meeting never lose entries.
type RedisStore struct {
	client *redis.Client
	logger logging.Logger
}

// NewRedisStore creates a Redis-backed Store.
func NewRedisStore(client *redis.Client, logger logging.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.With(logging.F("component", "image_store")),
	}
}

func imagesKey(meetingID string) string {
	return keyPrefixImages + meetingID
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, img *Image) error {
	data, err := json.Marshal(img)
	if err != nil {
		return fmt.Errorf("failed to marshal image: %w", err)
	}
	if err := s.client.RPush(ctx, imagesKey(img.MeetingID), data).Err(); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// List implements Store. Entries that fail to decode are skipped and logged.
func (s *RedisStore) List(ctx context.Context, meetingID string) ([]*Image, error) {
	raw, err := s.client.LRange(ctx, imagesKey(meetingID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	out := make([]*Image, 0, len(raw))
	for _, entry := range raw {
		var img Image
		if err := json.Unmarshal([]byte(entry), &img); err != nil {
			s.logger.Warn("Skipping undecodable image record",
				logging.F("meeting_id", meetingID),
				logging.Err(err))
			continue
		}
		out = append(out, &img)
	}
	return out, nil
}

// Connect opens a Redis client and verifies it with a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("testing connection: %w", err)
	}
	return client, nil
}
