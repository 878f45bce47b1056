package service

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BackupService archiva y restaura los CSV de respuestas. Un backup es un
// zip con timestamp en el directorio de backups; restore desempaqueta sobre
// el directorio de respuestas rechazando nombres con path traversal.
type BackupService struct {
	logger       *zap.Logger
	responsesDir string
	backupDir    string
}

func NewBackupService(logger *zap.Logger, responsesDir, backupDir string) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{
		logger:       logger,
		responsesDir: responsesDir,
		backupDir:    backupDir,
	}
}

var (
	ErrBackupNotFound = errors.New("backup not found")
	ErrBadBackupName  = errors.New("invalid backup name")
)

// BackupInfo describe un archivo de backup disponible.
type BackupInfo struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Backup empaqueta todos los .csv del directorio de respuestas y devuelve
// el nombre del archivo y cuantos archivos entraron.
func (s *BackupService) Backup() (string, int, error) {
	entries, err := os.ReadDir(s.responsesDir)
	if err != nil {
		return "", 0, fmt.Errorf("read responses dir: %w", err)
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create backup dir: %w", err)
	}

	name := "responses-" + time.Now().UTC().Format("20060102-150405") + ".zip"
	path := filepath.Join(s.backupDir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create backup: %w", err)
	}
	defer out.Close()

	archive := zip.NewWriter(out)
	count := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		if err := s.addToArchive(archive, e.Name()); err != nil {
			archive.Close()
			os.Remove(path)
			return "", 0, err
		}
		count++
	}
	if err := archive.Close(); err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("close backup: %w", err)
	}

	s.logger.Info("backup created", zap.String("name", name), zap.Int("files", count))
	return name, count, nil
}

func (s *BackupService) addToArchive(archive *zip.Writer, name string) error {
	src, err := os.Open(filepath.Join(s.responsesDir, name))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer src.Close()

	dst, err := archive.Create(name)
	if err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}
	_, err = io.Copy(dst, src)
	return err
}

// List devuelve los backups disponibles, el mas reciente primero.
func (s *BackupService) List() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var backups []BackupInfo
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Name:      e.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Restore desempaqueta un backup sobre el directorio de respuestas.
// Devuelve cuantos archivos restauro.
func (s *BackupService) Restore(name string) (int, error) {
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		return 0, ErrBadBackupName
	}

	reader, err := zip.OpenReader(filepath.Join(s.backupDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrBackupNotFound
		}
		return 0, fmt.Errorf("open backup %s: %w", name, err)
	}
	defer reader.Close()

	count := 0
	for _, file := range reader.File {
		base := filepath.Base(file.Name)
		if base != file.Name || strings.Contains(base, "..") {
			return count, fmt.Errorf("%w: entry %q", ErrBadBackupName, file.Name)
		}
		if !strings.EqualFold(filepath.Ext(base), ".csv") {
			continue
		}
		if err := s.extractFile(file, base); err != nil {
			return count, err
		}
		count++
	}

	s.logger.Info("backup restored", zap.String("name", name), zap.Int("files", count))
	return count, nil
}

func (s *BackupService) extractFile(file *zip.File, base string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", base, err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.responsesDir, base))
	if err != nil {
		return fmt.Errorf("restore %s: %w", base, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("restore %s: %w", base, err)
	}
	return nil
}
