package redis

import (
	"context"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"
)

// BlockList implements ports.BlockList as a single Redis set, so every API
// replica sees the same deny-set.
type BlockList struct {
	client goredis.UniversalClient
	key    string
}

// NewBlockList creates a Redis-backed block list.
func NewBlockList(client goredis.UniversalClient) *BlockList {
	return &BlockList{client: client, key: "wager:blocklist"}
}

func (b *BlockList) IsBlocked(ctx context.Context, number string) (bool, error) {
	ok, err := b.client.SIsMember(ctx, b.key, number).Result()
	if err != nil {
		return false, fmt.Errorf("redis blocklist check: %w", err)
	}
	return ok, nil
}

func (b *BlockList) Add(ctx context.Context, numbers ...string) error {
	if len(numbers) == 0 {
		return nil
	}
	members := make([]interface{}, len(numbers))
	for i, n := range numbers {
		members[i] = n
	}
	if err := b.client.SAdd(ctx, b.key, members...).Err(); err != nil {
		return fmt.Errorf("redis blocklist add: %w", err)
	}
	return nil
}

func (b *BlockList) Remove(ctx context.Context, number string) error {
	if err := b.client.SRem(ctx, b.key, number).Err(); err != nil {
		return fmt.Errorf("redis blocklist remove: %w", err)
	}
	return nil
}

func (b *BlockList) Clear(ctx context.Context) error {
	if err := b.client.Del(ctx, b.key).Err(); err != nil {
		return fmt.Errorf("redis blocklist clear: %w", err)
	}
	return nil
}

// List returns the blocked numbers in ascending order.
func (b *BlockList) List(ctx context.Context) ([]string, error) {
	members, err := b.client.SMembers(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis blocklist list: %w", err)
	}
	sort.Strings(members)
	return members, nil
}
