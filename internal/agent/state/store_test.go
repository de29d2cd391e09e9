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

package state

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ApplyCreatesThread(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0, nil)
	_, ok := s.Load(ctx, "thread-1")
	require.False(t, ok)

	snap := s.Apply(ctx, "thread-1", Update{UserMessages: []Message{UserMessage("hi")}})
	assert.Equal(t, "thread-1", snap.ThreadID)
	assert.Equal(t, DefaultShortTermBound, s.Bound())

	loaded, ok := s.Load(ctx, "thread-1")
	require.True(t, ok)
	assert.Equal(t, snap, loaded)
}

func TestMemoryStore_SnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, nil)
	snap := s.Apply(ctx, "t", Update{LongTermMemory: map[string]any{"k": "v"}})
	snap.LongTermMemory["k"] = "mutated"
	loaded, _ := s.Load(ctx, "t")
	assert.Equal(t, "v", loaded.LongTermMemory["k"])
}

func TestMemoryStore_TerminateLatchWithinTurn(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, nil)
	s.BeginTurn(ctx, "t")
	s.Apply(ctx, "t", Update{Terminate: Ptr(true)})
	snap := s.Apply(ctx, "t", Update{Query: Ptr("later")})
	assert.True(t, snap.Terminate, "terminate is latched for the rest of the turn")

	s.BeginTurn(ctx, "t")
	snap = s.Apply(ctx, "t", Update{Query: Ptr("next turn")})
	assert.False(t, snap.Terminate, "new turn clears the latch")
}

func TestMemoryStore_BoundEnforced(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3, nil)
	for i := 0; i < 10; i++ {
		s.Apply(ctx, "t", Update{ShortTermMemory: []Record{{UserMessage: fmt.Sprintf("m%d", i)}}})
	}
	st, _ := s.Load(ctx, "t")
	require.Len(t, st.ShortTermMemory, 3)
	assert.Equal(t, "m9", st.ShortTermMemory[2].UserMessage)
}

func TestMemoryStore_Put(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, nil)
	st := New("thread-9")
	st.Query = "restored"
	s.Put(ctx, st)
	loaded, ok := s.Load(ctx, "thread-9")
	require.True(t, ok)
	assert.Equal(t, "restored", loaded.Query)
}

func TestMemoryStore_ConcurrentThreads(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(100, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("thread-%d", i)
			for j := 0; j < 20; j++ {
				s.Apply(ctx, id, Update{ProcessedMessages: []string{fmt.Sprintf("m%d", j)}})
			}
		}(i)
	}
	wg.Wait()
	for i := 0; i < 8; i++ {
		st, ok := s.Load(ctx, fmt.Sprintf("thread-%d", i))
		require.True(t, ok)
		assert.Len(t, st.ProcessedMessages, 20)
	}
}
