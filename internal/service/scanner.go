package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirectoryScanner enumera archivos de respuestas en el directorio
// configurado y calcula el fingerprint del snapshot.
type DirectoryScanner struct{}

func NewDirectoryScanner() *DirectoryScanner {
	return &DirectoryScanner{}
}

// ScanResult es el listado determinista de candidatos mas el fingerprint
// del estado del directorio: set de tuplas (nombre, mtime, tamano).
type ScanResult struct {
	Paths       []string
	Fingerprint string
}

// Scan lista los .csv en orden lexicografico por nombre. Un directorio
// inexistente o ilegible es error de configuracion, fatal para el request
// pero no para el proceso; archivos individuales malos no cortan el scan.
func (s *DirectoryScanner) Scan(dir string) (ScanResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ScanResult{}, fmt.Errorf("read responses dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	fingerparts := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		names = append(names, name)
		if info, err := e.Info(); err == nil {
			fingerparts = append(fingerparts, fmt.Sprintf("%s|%d|%d", name, info.ModTime().UnixNano(), info.Size()))
		} else {
			fingerparts = append(fingerparts, name)
		}
	}
	sort.Strings(names)
	sort.Strings(fingerparts)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}

	sum := sha256.Sum256([]byte(strings.Join(fingerparts, "\n")))
	return ScanResult{
		Paths:       paths,
		Fingerprint: hex.EncodeToString(sum[:]),
	}, nil
}
