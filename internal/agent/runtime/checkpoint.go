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
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCheckpointRetention 每个 thread 保留的检查点数量（内存 / Redis 实现）
const DefaultCheckpointRetention = 50

// Checkpoint 每次节点执行后的状态快照
type Checkpoint struct {
	ID       string
	ThreadID string
	Step     int    // 本轮第几次节点调用，从 1 开始
	Node     string // 刚执行完的节点
	NextNode string // 解析出的下一节点，终止时为 "__end__"
	State    []byte // 合并后的 ConversationState JSON

	CreatedAt time.Time
}

// CheckpointStore 检查点存储接口
type CheckpointStore interface {
	Save(ctx context.Context, cp *Checkpoint) (id string, err error)
	// Latest 返回 thread 最新检查点；不存在时返回 nil, nil
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)
	// ListByThread 按时间顺序（旧到新）列出 thread 的检查点
	ListByThread(ctx context.Context, threadID string) ([]*Checkpoint, error)
}

// NewCheckpoint 创建检查点（ID 在 Save 时生成）
func NewCheckpoint(threadID string, step int, node, nextNode string, state []byte) *Checkpoint {
	return &Checkpoint{
		ThreadID:  threadID,
		Step:      step,
		Node:      node,
		NextNode:  nextNode,
		State:     state,
		CreatedAt: time.Now().UTC(),
	}
}

func prepareCheckpoint(cp *Checkpoint) {
	if cp.ID == "" {
		cp.ID = "cp-" + uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
}

func cloneCheckpoint(cp *Checkpoint) *Checkpoint {
	if cp == nil {
		return nil
	}
	out := *cp
	if len(cp.State) > 0 {
		out.State = make([]byte, len(cp.State))
		copy(out.State, cp.State)
	}
	return &out
}

// checkpointStoreMem 内存实现的 CheckpointStore
type checkpointStoreMem struct {
	mu        sync.RWMutex
	byThread  map[string][]*Checkpoint
	retention int
}

// NewCheckpointStoreMem 创建内存版 CheckpointStore；retention<=0 使用默认值
func NewCheckpointStoreMem(retention int) CheckpointStore {
	if retention <= 0 {
		retention = DefaultCheckpointRetention
	}
	return &checkpointStoreMem{byThread: make(map[string][]*Checkpoint), retention: retention}
}

func (s *checkpointStoreMem) Save(ctx context.Context, cp *Checkpoint) (string, error) {
	if cp == nil {
		return "", nil
	}
	prepareCheckpoint(cp)
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.byThread[cp.ThreadID], cloneCheckpoint(cp))
	if len(list) > s.retention {
		list = list[len(list)-s.retention:]
	}
	s.byThread[cp.ThreadID] = list
	return cp.ID, nil
}

func (s *checkpointStoreMem) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byThread[threadID]
	if len(list) == 0 {
		return nil, nil
	}
	return cloneCheckpoint(list[len(list)-1]), nil
}

func (s *checkpointStoreMem) ListByThread(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byThread[threadID]
	out := make([]*Checkpoint, 0, len(list))
	for _, cp := range list {
		out = append(out, cloneCheckpoint(cp))
	}
	return out, nil
}
