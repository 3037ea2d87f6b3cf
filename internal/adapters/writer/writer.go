// Package writer записывает готовые документы на диск.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileWriter реализует ports.Writer. Документ пишется во временный файл
// рядом с целевым и подменяется атомарным rename — читатель никогда
// не увидит наполовину записанный транскрипт.
type FileWriter struct{}

// NewFileWriter создает новый FileWriter.
func NewFileWriter() *FileWriter {
	return &FileWriter{}
}

// Write сохраняет content по пути targetPath, создавая недостающие каталоги.
func (w *FileWriter) Write(targetPath string, content string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmpPath := targetPath + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write temp output file: %w", err)
	}

	if err := os.Rename(tmpPath, targetPath); err != nil {
		return fmt.Errorf("failed to replace output file: %w", err)
	}

	return nil
}
