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

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// RefPrefix 配置值以此前缀开头时视为 secret 引用，如 secret://openai_api_key
const RefPrefix = "secret://"

// Store secret 存储接口（模型 API Key 等敏感配置的来源）
type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)
	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error
	// Delete 删除 secret
	Delete(ctx context.Context, key string) error
}

// Config Secret Store 配置
type Config struct {
	Provider string      `mapstructure:"provider"` // env | memory | vault
	Vault    VaultConfig `mapstructure:"vault"`
}

// NewStore 根据 Provider 创建 Secret Store；空 Provider 使用 env
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(), nil
	case "vault":
		return NewVaultStore(config.Vault)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// Resolve 解析配置值：secret:// 引用从 store 读取，其余原样返回
func Resolve(ctx context.Context, store Store, value string) (string, error) {
	if !strings.HasPrefix(value, RefPrefix) {
		return value, nil
	}
	if store == nil {
		return "", fmt.Errorf("secret reference %q without secret store", value)
	}
	return store.Get(ctx, strings.TrimPrefix(value, RefPrefix))
}

type memoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryStore 创建内存 secret store（测试与本地开发）
func NewMemoryStore() Store {
	return &memoryStore{secrets: make(map[string]string)}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.secrets[key]
	if !ok {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	return value, nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	m.secrets[key] = value
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.secrets, key)
	m.mu.Unlock()
	return nil
}

// envStore 以环境变量为后端，key 转为大写
type envStore struct{}

// NewEnvStore 创建环境变量 secret store
func NewEnvStore() Store {
	return envStore{}
}

func envKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func (envStore) Get(ctx context.Context, key string) (string, error) {
	value := os.Getenv(envKey(key))
	if value == "" {
		return "", fmt.Errorf("environment variable not set: %s", envKey(key))
	}
	return value, nil
}

func (envStore) Set(ctx context.Context, key string, value string) error {
	return os.Setenv(envKey(key), value)
}

func (envStore) Delete(ctx context.Context, key string) error {
	return os.Unsetenv(envKey(key))
}
