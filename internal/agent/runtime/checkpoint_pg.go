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
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const checkpointSchema = `CREATE TABLE IF NOT EXISTS conversation_checkpoints (
	id         TEXT PRIMARY KEY,
	thread_id  TEXT NOT NULL,
	step       INT NOT NULL,
	node       TEXT NOT NULL,
	next_node  TEXT NOT NULL DEFAULT '',
	state      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_conversation_checkpoints_thread ON conversation_checkpoints (thread_id, created_at);`

// CheckpointStorePg PostgreSQL 实现，多进程共享
type CheckpointStorePg struct {
	pool *pgxpool.Pool
}

// NewCheckpointStorePg 创建基于 PostgreSQL 的 CheckpointStore
func NewCheckpointStorePg(pool *pgxpool.Pool) *CheckpointStorePg {
	return &CheckpointStorePg{pool: pool}
}

// EnsureSchema 创建 conversation_checkpoints 表
func (s *CheckpointStorePg) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, checkpointSchema)
	return err
}

// Save 实现 CheckpointStore
func (s *CheckpointStorePg) Save(ctx context.Context, cp *Checkpoint) (string, error) {
	if cp == nil {
		return "", nil
	}
	prepareCheckpoint(cp)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversation_checkpoints (id, thread_id, step, node, next_node, state, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   state = EXCLUDED.state,
		   next_node = EXCLUDED.next_node`,
		cp.ID, cp.ThreadID, cp.Step, cp.Node, cp.NextNode, cp.State, cp.CreatedAt,
	)
	return cp.ID, err
}

// Latest 实现 CheckpointStore
func (s *CheckpointStorePg) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	var cp Checkpoint
	err := s.pool.QueryRow(ctx,
		`SELECT id, thread_id, step, node, next_node, state, created_at
		 FROM conversation_checkpoints
		 WHERE thread_id = $1
		 ORDER BY created_at DESC, step DESC
		 LIMIT 1`,
		threadID,
	).Scan(&cp.ID, &cp.ThreadID, &cp.Step, &cp.Node, &cp.NextNode, &cp.State, &cp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

// ListByThread 实现 CheckpointStore
func (s *CheckpointStorePg) ListByThread(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, thread_id, step, node, next_node, state, created_at
		 FROM conversation_checkpoints
		 WHERE thread_id = $1
		 ORDER BY created_at ASC, step ASC`,
		threadID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*Checkpoint, 0)
	for rows.Next() {
		var cp Checkpoint
		if err := rows.Scan(&cp.ID, &cp.ThreadID, &cp.Step, &cp.Node, &cp.NextNode, &cp.State, &cp.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &cp)
	}
	return out, rows.Err()
}
