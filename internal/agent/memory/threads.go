package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultThreadID 分配失败时的回退 ID
const DefaultThreadID = "thread-1"

const threadPrefix = "thread-"

// ThreadIDAllocator 顺序分配 thread-<n>。
// 读取已持久化的最大序号加一并写回；任何存储故障都回退到 DefaultThreadID，不阻塞会话开始。
type ThreadIDAllocator struct {
	mgr *Manager
	mu  sync.Mutex
	now func() time.Time
}

// NewThreadIDAllocator 创建分配器
func NewThreadIDAllocator(mgr *Manager) *ThreadIDAllocator {
	return &ThreadIDAllocator{mgr: mgr, now: time.Now}
}

// Next 分配下一个 thread ID
func (a *ThreadIDAllocator) Next(ctx context.Context) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	keys, err := a.mgr.store.Keys(ctx, NamespaceThreads)
	if err != nil {
		_ = a.mgr.storageFault(ctx, "thread_keys", err)
		return DefaultThreadID
	}
	maxN := 0
	for _, k := range keys {
		if n, ok := ParseThreadSeq(k); ok && n > maxN {
			maxN = n
		}
	}
	id := fmt.Sprintf("%s%d", threadPrefix, maxN+1)
	data := map[string]any{"created_at": a.now().UTC().Format(time.RFC3339)}
	if err := a.mgr.Persist(ctx, NamespaceThreads, id, data); err != nil {
		return DefaultThreadID
	}
	return id
}

// Register 记录外部指定的 thread 存在；已存在则不覆盖
func (a *ThreadIDAllocator) Register(ctx context.Context, threadID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.mgr.Retrieve(ctx, NamespaceThreads, threadID)) > 0 {
		return
	}
	data := map[string]any{"created_at": a.now().UTC().Format(time.RFC3339)}
	_ = a.mgr.Persist(ctx, NamespaceThreads, threadID, data)
}

// ParseThreadSeq 解析 thread-<n> 的序号
func ParseThreadSeq(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, threadPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
