package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"git.home.luguber.info/inful/pxbuild/internal/config"
)

// RedisMirror copies published artifacts into Redis so processes other than
// the builder can read them. Code, map and metadata are written in one
// MULTI/EXEC transaction, so readers using Fetch see a consistent triple.
type RedisMirror struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisMirror creates a mirror writing keys under prefix.
func NewRedisMirror(opts *redis.Options, prefix string) *RedisMirror {
	return &RedisMirror{rdb: redis.NewClient(opts), prefix: prefix}
}

// NewRedisMirrorFromURL parses a redis:// URL.
func NewRedisMirrorFromURL(url, prefix string) (*RedisMirror, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisMirror(opts, prefix), nil
}

// Key returns the namespaced key for part ("code", "map", "meta", "events").
func (m *RedisMirror) Key(part string) string {
	return m.prefix + ":artifact:" + part
}

// Ping verifies Redis connectivity.
func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (m *RedisMirror) Close() error {
	return m.rdb.Close()
}

// Mirror writes a and announces its build ID on the events channel.
func (m *RedisMirror) Mirror(ctx context.Context, a *Artifact) error {
	meta, err := json.Marshal(a.Meta())
	if err != nil {
		return fmt.Errorf("encode artifact metadata: %w", err)
	}
	var mapJSON string
	if a.HasSourceMap() {
		if mapJSON, err = a.SourceMap.JSON(); err != nil {
			return err
		}
	}

	_, err = m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, m.Key("code"), a.Code, 0)
		if mapJSON != "" {
			pipe.Set(ctx, m.Key("map"), mapJSON, 0)
		} else {
			pipe.Del(ctx, m.Key("map"))
		}
		pipe.Set(ctx, m.Key("meta"), meta, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write artifact to redis: %w", err)
	}

	if err := m.rdb.Publish(ctx, m.Key("events"), a.BuildID).Err(); err != nil {
		return fmt.Errorf("publish artifact event: %w", err)
	}
	return nil
}

// Fetch reads the mirrored artifact. It returns false when nothing has been
// mirrored yet.
func (m *RedisMirror) Fetch(ctx context.Context) (*Artifact, bool, error) {
	var codeCmd, mapCmd, metaCmd *redis.StringCmd
	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		codeCmd = pipe.Get(ctx, m.Key("code"))
		mapCmd = pipe.Get(ctx, m.Key("map"))
		metaCmd = pipe.Get(ctx, m.Key("meta"))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, fmt.Errorf("read artifact from redis: %w", err)
	}

	code, err := codeCmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read artifact code: %w", err)
	}

	a := &Artifact{Code: code}

	if raw, err := metaCmd.Bytes(); err == nil {
		var meta Metadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, false, fmt.Errorf("decode artifact metadata: %w", err)
		}
		a.BuildID = meta.BuildID
		a.Mode = config.BuildMode(meta.Mode)
		a.Revision = meta.Revision
		a.BuiltAt = meta.BuiltAt
	}

	if raw, err := mapCmd.Bytes(); err == nil {
		sm, err := ParseSourceMap(raw)
		if err != nil {
			return nil, false, err
		}
		a.SourceMap = sm
	}

	return a, true, nil
}
