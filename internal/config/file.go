package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/roelfdiedericks/gaiabot/internal/logging"
)

// DefaultBackupCount is the number of config backups kept by Save.
const DefaultBackupCount = 5

// AtomicWrite writes data to path using temp file + rename, so a crash
// never leaves a half-written config behind.
func AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Same directory keeps the rename on one filesystem.
	tmp, err := os.CreateTemp(dir, ".gaiabot-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp to target: %w", err)
	}
	success = true
	return nil
}

// BackupAndWrite copies an existing file at path to path.bak (rotating
// older backups up to maxBackups), then writes data atomically. A failed
// backup is logged and does not stop the write.
func BackupAndWrite(path string, data []byte, maxBackups int) error {
	if maxBackups <= 0 {
		maxBackups = DefaultBackupCount
	}

	if _, err := os.Stat(path); err == nil {
		if err := createBackup(path, maxBackups); err != nil {
			logging.L_warn("config: backup failed, continuing with save", "error", err)
		}
	}

	if err := AtomicWrite(path, data, 0600); err != nil {
		return err
	}
	logging.L_debug("config: saved", "path", path)
	return nil
}

func createBackup(path string, maxBackups int) error {
	rotateBackups(path, maxBackups)

	backupPath := path + ".bak"
	if err := copyFile(path, backupPath); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	logging.L_debug("config: created backup", "path", backupPath)
	return nil
}

// rotateBackups shifts .bak -> .bak.1 -> ... -> .bak.N-1, dropping the oldest.
func rotateBackups(path string, maxBackups int) {
	if maxBackups <= 1 {
		return
	}
	base := path + ".bak"
	maxIndex := maxBackups - 1

	oldest := fmt.Sprintf("%s.%d", base, maxIndex)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		logging.L_trace("config: failed to remove oldest backup", "path", oldest, "error", err)
	}

	for i := maxIndex - 1; i >= 1; i-- {
		src := fmt.Sprintf("%s.%d", base, i)
		dst := fmt.Sprintf("%s.%d", base, i+1)
		if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
			logging.L_trace("config: failed to rotate backup", "src", src, "dst", dst, "error", err)
		}
	}

	if err := os.Rename(base, base+".1"); err != nil && !os.IsNotExist(err) {
		logging.L_trace("config: failed to rotate .bak to .bak.1", "error", err)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
