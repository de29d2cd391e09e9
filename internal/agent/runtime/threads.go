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

import "sync"

// ThreadLocks 每个 thread 一把互斥锁：同一 thread 的轮次串行，不同 thread 并行。
// 锁在无人持有且无人等待时回收。
type ThreadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

// NewThreadLocks 创建 ThreadLocks
func NewThreadLocks() *ThreadLocks {
	return &ThreadLocks{locks: make(map[string]*threadLock)}
}

// Lock 获取 thread 锁，返回释放函数
func (t *ThreadLocks) Lock(threadID string) (unlock func()) {
	t.mu.Lock()
	l, ok := t.locks[threadID]
	if !ok {
		l = &threadLock{}
		t.locks[threadID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.locks, threadID)
		}
		t.mu.Unlock()
	}
}

// Len 当前持有或等待中的 thread 数
func (t *ThreadLocks) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
