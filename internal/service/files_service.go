package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"facetrust/internal/domain"
)

// FilesService maneja las acciones de admin sobre archivos de respuestas:
// subir, borrar y listar. Los uploads se validan con el normalizador antes
// de aceptarse; un archivo de formato desconocido se rechaza de entrada.
type FilesService struct {
	logger       *zap.Logger
	responsesDir string
}

func NewFilesService(logger *zap.Logger, responsesDir string) *FilesService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilesService{logger: logger, responsesDir: responsesDir}
}

var (
	ErrBadFileName      = errors.New("invalid file name")
	ErrNotCSV           = errors.New("file is not a csv")
	ErrUnknownCSVFormat = errors.New("csv format not recognized")
	ErrFileNotFound     = errors.New("file not found")
)

// Save valida y escribe un CSV subido por un administrador.
func (s *FilesService) Save(name string, content []byte) (domain.SourceFormat, error) {
	if name != filepath.Base(name) || strings.Contains(name, "..") || name == "" {
		return domain.FormatUnknown, ErrBadFileName
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return domain.FormatUnknown, ErrNotCSV
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return domain.FormatUnknown, fmt.Errorf("%w: %v", ErrUnknownCSVFormat, err)
	}
	format := DetectFormat(CanonicalHeader(header))
	if format == domain.FormatUnknown {
		return format, ErrUnknownCSVFormat
	}

	path := filepath.Join(s.responsesDir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return format, fmt.Errorf("write %s: %w", name, err)
	}
	s.logger.Info("response file uploaded",
		zap.String("name", name),
		zap.String("format", string(format)),
		zap.Int("bytes", len(content)),
	)
	return format, nil
}

// Delete borra un archivo de respuestas por nombre.
func (s *FilesService) Delete(name string) error {
	if name != filepath.Base(name) || strings.Contains(name, "..") || name == "" {
		return ErrBadFileName
	}
	err := os.Remove(filepath.Join(s.responsesDir, name))
	if os.IsNotExist(err) {
		return ErrFileNotFound
	}
	if err == nil {
		s.logger.Info("response file deleted", zap.String("name", name))
	}
	return err
}
