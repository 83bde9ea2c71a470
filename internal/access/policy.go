// Package access decides whether an image identifier may be served.
// Denied identifiers are reported to callers exactly like missing ones
// so probing cannot distinguish the two cases.
package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Policy reports whether the given identifier may be served.
type Policy interface {
	Allowed(ctx context.Context, identifier string) (bool, error)
}

// AllowAll permits every identifier. It is the default when no deny
// list is configured.
type AllowAll struct{}

func (AllowAll) Allowed(context.Context, string) (bool, error) { return true, nil }

// StaticDenyList blocks a fixed set of identifiers. Useful for tests
// and small deployments that restart on policy changes.
type StaticDenyList struct {
	denied map[string]struct{}
}

func NewStaticDenyList(identifiers ...string) *StaticDenyList {
	denied := make(map[string]struct{}, len(identifiers))
	for _, id := range identifiers {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		denied[id] = struct{}{}
	}
	return &StaticDenyList{denied: denied}
}

func (l *StaticDenyList) Allowed(_ context.Context, identifier string) (bool, error) {
	_, blocked := l.denied[identifier]
	return !blocked, nil
}

// RedisDenyList blocks identifiers held in a Redis set, so operators
// can revoke access across all workers without a restart.
type RedisDenyList struct {
	client redis.UniversalClient
	key    string
}

func NewRedisDenyList(client redis.UniversalClient, key string) (*RedisDenyList, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if strings.TrimSpace(key) == "" {
		key = "zoomtile:denylist"
	}
	return &RedisDenyList{client: client, key: key}, nil
}

func (l *RedisDenyList) Allowed(ctx context.Context, identifier string) (bool, error) {
	blocked, err := l.client.SIsMember(ctx, l.key, identifier).Result()
	if err != nil {
		return false, fmt.Errorf("check deny list: %w", err)
	}
	return !blocked, nil
}

// Deny adds an identifier to the deny list.
func (l *RedisDenyList) Deny(ctx context.Context, identifier string) error {
	if err := l.client.SAdd(ctx, l.key, identifier).Err(); err != nil {
		return fmt.Errorf("add to deny list: %w", err)
	}
	return nil
}

// Restore removes an identifier from the deny list.
func (l *RedisDenyList) Restore(ctx context.Context, identifier string) error {
	if err := l.client.SRem(ctx, l.key, identifier).Err(); err != nil {
		return fmt.Errorf("remove from deny list: %w", err)
	}
	return nil
}
