// Package model holds the filesystem model registry: versioned
// artifacts with manifests, plus the active-version pointer the
// serving path reads.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoActive is returned when no model has been promoted yet.
var ErrNoActive = errors.New("no active model")

const (
	manifestFile = "manifest.json"
	payloadFile  = "model.json"
	activeFile   = "active"
)

// Metrics are the holdout evaluation scores recorded with an artifact.
// Both are lower-is-better.
type Metrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
}

// Artifact describes one trained model version.
type Artifact struct {
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	Metrics     Metrics   `json:"metrics"`
	RowsTrained int       `json:"rows_trained"`

	// FamilyEncoding is the label encoder the model was trained with.
	// It is persisted with the artifact so inference encodes families
	// identically.
	FamilyEncoding map[string]int `json:"family_encoding"`
}

// Candidate is a freshly trained model awaiting registration.
type Candidate struct {
	Metrics        Metrics
	RowsTrained    int
	FamilyEncoding map[string]int
	Payload        []byte
}

// Registry stores artifacts under <dir>/<version>/ with an "active"
// pointer file. Old versions are never deleted, so rollback is a
// pointer rewrite.
type Registry struct {
	dir string
}

func NewRegistry(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	return &Registry{dir: dir}, nil
}

// Put registers a candidate under a fresh version without promoting it.
func (r *Registry) Put(_ context.Context, candidate Candidate) (Artifact, error) {
	version := fmt.Sprintf("v%s", time.Now().UTC().Format("20060102-150405.000000"))
	versionDir := filepath.Join(r.dir, version)
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create version dir: %w", err)
	}

	artifact := Artifact{
		Version:        version,
		CreatedAt:      time.Now().UTC(),
		Metrics:        candidate.Metrics,
		RowsTrained:    candidate.RowsTrained,
		FamilyEncoding: candidate.FamilyEncoding,
	}

	manifest, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(versionDir, manifestFile), manifest, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(versionDir, payloadFile), candidate.Payload, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write payload: %w", err)
	}

	slog.Info("[Registry] Registered model version",
		"version", version,
		"rmse", candidate.Metrics.RMSE,
		"mae", candidate.Metrics.MAE,
		"rows_trained", candidate.RowsTrained,
	)
	return artifact, nil
}

// Promote flips the active pointer to version. The pointer is written
// to a temp file and renamed, so readers never observe a partial write.
func (r *Registry) Promote(version string) error {
	versionDir := filepath.Join(r.dir, version)
	if _, err := os.Stat(filepath.Join(versionDir, manifestFile)); err != nil {
		return fmt.Errorf("version %q not registered: %w", version, err)
	}

	tmp, err := os.CreateTemp(r.dir, activeFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp pointer: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(version + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp pointer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp pointer: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(r.dir, activeFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("swap active pointer: %w", err)
	}

	slog.Info("[Registry] Promoted model version", "version", version)
	return nil
}

// Active returns the currently promoted artifact, or ErrNoActive.
func (r *Registry) Active(_ context.Context) (Artifact, error) {
	raw, err := os.ReadFile(filepath.Join(r.dir, activeFile))
	if errors.Is(err, os.ErrNotExist) {
		return Artifact{}, ErrNoActive
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("read active pointer: %w", err)
	}

	version := strings.TrimSpace(string(raw))
	if version == "" {
		return Artifact{}, ErrNoActive
	}
	return r.manifest(version)
}

// Payload returns the stored model payload for a version.
func (r *Registry) Payload(version string) ([]byte, error) {
	payload, err := os.ReadFile(filepath.Join(r.dir, version, payloadFile))
	if err != nil {
		return nil, fmt.Errorf("read payload for %q: %w", version, err)
	}
	return payload, nil
}

func (r *Registry) manifest(version string) (Artifact, error) {
	raw, err := os.ReadFile(filepath.Join(r.dir, version, manifestFile))
	if err != nil {
		return Artifact{}, fmt.Errorf("read manifest for %q: %w", version, err)
	}
	var artifact Artifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return Artifact{}, fmt.Errorf("parse manifest for %q: %w", version, err)
	}
	return artifact, nil
}
