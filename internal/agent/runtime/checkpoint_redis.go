// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// CheckpointStoreRedis 每个 thread 一个 Redis list，RPUSH 追加，LTRIM 保留最近 retention 条
type CheckpointStoreRedis struct {
	client    redis.UniversalClient
	prefix    string
	retention int
}

// NewCheckpointStoreRedis 创建 Redis CheckpointStore；prefix 为空时使用 "voice-agent"
func NewCheckpointStoreRedis(client redis.UniversalClient, prefix string, retention int) *CheckpointStoreRedis {
	if prefix == "" {
		prefix = "voice-agent"
	}
	if retention <= 0 {
		retention = DefaultCheckpointRetention
	}
	return &CheckpointStoreRedis{client: client, prefix: prefix, retention: retention}
}

func (s *CheckpointStoreRedis) key(threadID string) string {
	return s.prefix + ":checkpoints:" + threadID
}

// Save 实现 CheckpointStore
func (s *CheckpointStoreRedis) Save(ctx context.Context, cp *Checkpoint) (string, error) {
	if cp == nil {
		return "", nil
	}
	prepareCheckpoint(cp)
	data, err := json.Marshal(cp)
	if err != nil {
		return "", err
	}
	key := s.key(cp.ThreadID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, int64(-s.retention), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return cp.ID, nil
}

// Latest 实现 CheckpointStore
func (s *CheckpointStoreRedis) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	data, err := s.client.LIndex(ctx, s.key(threadID), -1).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

// ListByThread 实现 CheckpointStore
func (s *CheckpointStoreRedis) ListByThread(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	items, err := s.client.LRange(ctx, s.key(threadID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Checkpoint, 0, len(items))
	for _, item := range items {
		var cp Checkpoint
		if err := json.Unmarshal([]byte(item), &cp); err != nil {
			return nil, err
		}
		out = append(out, &cp)
	}
	return out, nil
}
