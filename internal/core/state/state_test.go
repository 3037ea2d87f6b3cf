package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state", "state.json")
}

func TestProcessingState(t *testing.T) {
	t.Run("Отсутствующий файл — пустое состояние", func(t *testing.T) {
		s := New(statePath(t))
		assert.False(t, s.HasProcessed(1))
		assert.Equal(t, 0, s.Len())
	})

	t.Run("Повреждённый файл — пустое состояние, без паники", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		s := New(path)
		assert.Equal(t, 0, s.Len())
	})

	t.Run("Запись и членство", func(t *testing.T) {
		s := New(statePath(t))
		s.RecordProcessed(10)
		s.RecordProcessed(20)

		assert.True(t, s.HasProcessed(10))
		assert.True(t, s.HasProcessed(20))
		assert.False(t, s.HasProcessed(30))
	})

	t.Run("Повторная запись не дублирует", func(t *testing.T) {
		s := New(statePath(t))
		s.RecordProcessed(10)
		s.RecordProcessed(10)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("Вытеснение старейших за пределом cap", func(t *testing.T) {
		s := New(statePath(t), WithMaxHistory(3))
		for id := 1; id <= 5; id++ {
			s.RecordProcessed(id)
		}

		assert.Equal(t, 3, s.Len())
		assert.False(t, s.HasProcessed(1))
		assert.False(t, s.HasProcessed(2))
		assert.True(t, s.HasProcessed(3))
		assert.True(t, s.HasProcessed(4))
		assert.True(t, s.HasProcessed(5))
	})

	t.Run("Flush без изменений — no-op", func(t *testing.T) {
		path := statePath(t)
		s := New(path)
		require.NoError(t, s.Flush())

		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err), "файл не должен создаваться без изменений")
	})

	t.Run("Flush и перезагрузка сохраняют состояние", func(t *testing.T) {
		path := statePath(t)

		s := New(path)
		s.RecordProcessed(7)
		s.RecordProcessed(8)
		require.NoError(t, s.Flush())

		reloaded := New(path)
		assert.True(t, reloaded.HasProcessed(7))
		assert.True(t, reloaded.HasProcessed(8))
		assert.False(t, reloaded.HasProcessed(9))
	})

	t.Run("Флаг dirty сбрасывается после Flush", func(t *testing.T) {
		path := statePath(t)
		s := New(path)
		s.RecordProcessed(1)
		require.NoError(t, s.Flush())

		// Повторный Flush не трогает файл: подменяем содержимое и проверяем.
		require.NoError(t, os.WriteFile(path, []byte("sentinel"), 0o644))
		require.NoError(t, s.Flush())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "sentinel", string(data))
	})

	t.Run("Файл состояния — валидный JSON с processed_ids", func(t *testing.T) {
		path := statePath(t)
		s := New(path)
		s.RecordProcessed(3)
		s.RecordProcessed(1)
		require.NoError(t, s.Flush())

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var persisted struct {
			ProcessedIDs []int `json:"processed_ids"`
		}
		require.NoError(t, json.Unmarshal(data, &persisted))
		assert.Equal(t, []int{3, 1}, persisted.ProcessedIDs, "порядок вставки сохраняется")
	})

	t.Run("При загрузке сохраняются только последние cap записей", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		payload := []byte(`{"processed_ids": [1, 2, 3, 4, 5]}`)
		require.NoError(t, os.WriteFile(path, payload, 0o644))

		s := New(path, WithMaxHistory(2))
		assert.False(t, s.HasProcessed(3))
		assert.True(t, s.HasProcessed(4))
		assert.True(t, s.HasProcessed(5))
	})

	t.Run("Временный файл не остаётся после Flush", func(t *testing.T) {
		path := statePath(t)
		s := New(path)
		s.RecordProcessed(1)
		require.NoError(t, s.Flush())

		_, err := os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(err))
	})
}
