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

package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const kvSchema = `CREATE TABLE IF NOT EXISTS long_term_memory (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, key)
);`

const (
	upsertSQL = `INSERT INTO long_term_memory (namespace, key, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (namespace, key) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`
	getSQL      = `SELECT data FROM long_term_memory WHERE namespace = $1 AND key = $2`
	containsSQL = `SELECT key, data FROM long_term_memory WHERE namespace = $1 AND EXISTS (SELECT 1 FROM jsonb_path_query(data, 'strict $.**') AS v WHERE jsonb_typeof(v) = 'string' AND v #>> '{}' ILIKE $2) ORDER BY key`
	keysSQL     = `SELECT key FROM long_term_memory WHERE namespace = $1 ORDER BY key`
)

// PostgresStore PostgreSQL 实现，(namespace, key) 为主键，ON CONFLICT 保证 upsert 原子
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 使用已有连接池创建存储
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgres 按 DSN 建立连接池并确保表存在
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := NewPostgresStore(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema 创建 long_term_memory 表
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, kvSchema); err != nil {
		return fmt.Errorf("ensure long_term_memory schema: %w", err)
	}
	return nil
}

// Upsert 实现 Store
func (s *PostgresStore) Upsert(ctx context.Context, namespace, key string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s/%s: %w", namespace, key, err)
	}
	_, err = s.pool.Exec(ctx, upsertSQL, namespace, key, raw)
	return err
}

// Get 实现 Store
func (s *PostgresStore) Get(ctx context.Context, namespace, key string) (map[string]any, error) {
	var raw []byte
	if err := s.pool.QueryRow(ctx, getSQL, namespace, key).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decode(raw)
}

// SearchContains 实现 Store；只匹配字符串叶子值，与内存、Redis 后端一致
func (s *PostgresStore) SearchContains(ctx context.Context, namespace, substring string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, containsSQL, namespace, likePattern(substring))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		data, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Record{Namespace: namespace, Key: key, Data: data})
	}
	return out, rows.Err()
}

// Keys 实现 Store
func (s *PostgresStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.pool.Query(ctx, keysSQL, namespace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

// Close 关闭连接池
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// likePattern 转义 LIKE 元字符后包裹为 %substring%
func likePattern(substring string) string {
	r := []rune{}
	for _, c := range substring {
		switch c {
		case '%', '_', '\\':
			r = append(r, '\\')
		}
		r = append(r, c)
	}
	return "%" + string(r) + "%"
}
