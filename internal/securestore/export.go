package securestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
)

const artifactContentType = "application/json"

var ErrInvalidImport = errors.New("invalid backup file format")

// Artifact is a downloadable JSON document.
type Artifact struct {
	Filename    string
	ContentType string
	Content     []byte
}

type UserExport struct {
	UserID         string          `json:"userId"`
	ExportDate     time.Time       `json:"exportDate"`
	Progression    json.RawMessage `json:"progression"`
	WorkoutHistory json.RawMessage `json:"workoutHistory"`
	Version        string          `json:"version"`
}

type FullBackup struct {
	Timestamp time.Time                  `json:"timestamp"`
	Version   string                     `json:"version"`
	Data      map[string]json.RawMessage `json:"data"`
}

func (s *Store) ExportUserData(ctx context.Context, userID string) (*Artifact, error) {
	now := s.NowFunc()
	export := UserExport{
		UserID:         userID,
		ExportDate:     now.UTC(),
		Progression:    s.rawOrNull(ctx, ProgressionKey(userID)),
		WorkoutHistory: s.rawOrNull(ctx, WorkoutHistoryKey(userID)),
		Version:        formatVersion,
	}

	content, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}

	return &Artifact{
		Filename:    fmt.Sprintf("gym-tracker-backup-%s-%d.json", userID, now.UnixMilli()),
		ContentType: artifactContentType,
		Content:     content,
	}, nil
}

// ImportUserData restores progression and workout history from an export
// document. The whole document is validated before anything is written.
func (s *Store) ImportUserData(ctx context.Context, r io.Reader, userID string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read import: %w", err)
	}

	var userData UserExport
	if err := json.Unmarshal(content, &userData); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidImport, err)
	}
	if userData.UserID == "" || userData.Version == "" {
		return fmt.Errorf("%w: missing userId or version", ErrInvalidImport)
	}

	hasProgression := !isNullJSON(userData.Progression)
	hasHistory := !isNullJSON(userData.WorkoutHistory)
	if hasProgression && !isJSONKind(userData.Progression, '{') {
		return fmt.Errorf("%w: progression is not an object", ErrInvalidImport)
	}
	if hasHistory && !isJSONKind(userData.WorkoutHistory, '[') {
		return fmt.Errorf("%w: workoutHistory is not a list", ErrInvalidImport)
	}

	if hasProgression {
		if err := s.SetItem(ctx, ProgressionKey(userID), userData.Progression); err != nil {
			return fmt.Errorf("import progression: %w", err)
		}
	}
	if hasHistory {
		if err := s.SetItem(ctx, WorkoutHistoryKey(userID), userData.WorkoutHistory); err != nil {
			return fmt.Errorf("import workout history: %w", err)
		}
	}

	log.Infof("store: user data imported for [%s] (exported by [%s])", userID, userData.UserID)
	return nil
}

// CreateFullBackup dumps every readable record except the installation secret
// and the backup shadows.
func (s *Store) CreateFullBackup(ctx context.Context) (*Artifact, error) {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	data := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		if key == EncryptionKeyName || IsBackupKey(key) {
			continue
		}
		var raw json.RawMessage
		if err := s.GetItem(ctx, key, &raw); err != nil {
			log.Warnf("store: full backup skips [%s]: %s", key, err)
			continue
		}
		if isNullJSON(raw) {
			continue
		}
		data[key] = raw
	}

	now := s.NowFunc()
	content, err := json.MarshalIndent(FullBackup{
		Timestamp: now.UTC(),
		Version:   formatVersion,
		Data:      data,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal full backup: %w", err)
	}

	return &Artifact{
		Filename:    fmt.Sprintf("gym-tracker-full-backup-%d.json", now.UnixMilli()),
		ContentType: artifactContentType,
		Content:     content,
	}, nil
}

func (s *Store) rawOrNull(ctx context.Context, key string) json.RawMessage {
	var raw json.RawMessage
	if err := s.GetItem(ctx, key, &raw); err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warnf("store: export skips [%s]: %s", key, err)
		}
		return nil
	}
	return raw
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func isJSONKind(raw json.RawMessage, opening byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == opening
}
