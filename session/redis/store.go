// Package redis provides a session.Store backed by Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/CatchTheTornado/agent-doodle/session"
)

// DefaultPrefix namespaces the keys of a Store.
const DefaultPrefix = "doodle:"

// Store is a session.Store backed by Redis. It uses a simple key structure:
//
//	<prefix>run:<id>         => JSON encoded session.Run
//	<prefix>idx:all          => ZSET of run IDs scored by start time
//	<prefix>idx:flow:<code>  => ZSET of run IDs of one flow
//
// Status filtering happens on the decoded runs.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ session.Store = (*Store)(nil)

// New creates a Store. An empty prefix uses DefaultPrefix.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) keyRun(id string) string { return s.prefix + "run:" + id }

func (s *Store) keyAll() string { return s.prefix + "idx:all" }

func (s *Store) keyFlow(code string) string { return s.prefix + "idx:flow:" + code }

// Save inserts or replaces run and updates the indexes.
func (s *Store) Save(ctx context.Context, run *session.Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run id is required")
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}

	// A re-saved run may have moved to another flow.
	var previous *session.Run
	if prev, err := s.Get(ctx, run.ID); err == nil {
		previous = prev
	} else if !errors.Is(err, session.ErrNotFound) {
		return err
	}

	score := float64(run.StartedAt.UnixNano())
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.keyRun(run.ID), data, 0)
		if previous != nil && previous.FlowCode != run.FlowCode {
			pipe.ZRem(ctx, s.keyFlow(previous.FlowCode), run.ID)
		}
		pipe.ZAdd(ctx, s.keyAll(), redis.Z{Score: score, Member: run.ID})
		pipe.ZAdd(ctx, s.keyFlow(run.FlowCode), redis.Z{Score: score, Member: run.ID})
		return nil
	})
	return err
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (*session.Run, error) {
	data, err := s.client.Get(ctx, s.keyRun(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", session.ErrNotFound, id)
		}
		return nil, err
	}

	var run session.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &run, nil
}

// List returns the matching runs, newest first.
func (s *Store) List(ctx context.Context, filter session.Filter) ([]*session.Run, error) {
	key := s.keyAll()
	if filter.FlowCode != "" {
		key = s.keyFlow(filter.FlowCode)
	}

	ids, err := s.client.ZRevRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var out []*session.Run
	for _, id := range ids {
		run, err := s.Get(ctx, id)
		if errors.Is(err, session.ErrNotFound) {
			// Index entry without a record.
			continue
		}
		if err != nil {
			return nil, err
		}
		if !filter.Match(run) {
			continue
		}
		out = append(out, run)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
