package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Joseda-hg/lazytodo/internal/model"
)

const DefaultTasksKey = "todoTasks"

// KV is a durable string key-value store on top of the kv table.
type KV struct {
	DB *sql.DB
}

func NewKV(db *sql.DB) *KV {
	return &KV{DB: db}
}

func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.DB.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *KV) Set(ctx context.Context, key, value string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	if _, err := s.DB.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// TaskRepository stores the whole task collection as one JSON record.
type TaskRepository struct {
	kv  *KV
	key string
}

func NewTaskRepository(kv *KV, key string) *TaskRepository {
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultTasksKey
	}
	return &TaskRepository{kv: kv, key: key}
}

func (r *TaskRepository) Save(ctx context.Context, tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	payload, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	return r.kv.Set(ctx, r.key, string(payload))
}

// Load never fails: a missing or unreadable record yields an empty collection.
func (r *TaskRepository) Load(ctx context.Context) []model.Task {
	value, ok, err := r.kv.Get(ctx, r.key)
	if err != nil {
		slog.Warn("load tasks", "key", r.key, "error", err)
		return []model.Task{}
	}
	if !ok || strings.TrimSpace(value) == "" {
		return []model.Task{}
	}

	var tasks []model.Task
	if err := json.Unmarshal([]byte(value), &tasks); err != nil {
		slog.Warn("decode stored tasks", "key", r.key, "error", err)
		return []model.Task{}
	}
	if tasks == nil {
		return []model.Task{}
	}
	return tasks
}
