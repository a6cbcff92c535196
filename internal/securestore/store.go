package securestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const DefaultCapacityBytes = 5 * 1024 * 1024

var (
	ErrNotFound  = errors.New("item not found")
	ErrCorrupted = errors.New("item corrupted")
)

// Validator is implemented by stored types that can check their own shape.
// A failed validation on read is treated the same as a decoding failure.
type Validator interface {
	Validate() error
}

type backupRecord struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Version   string          `json:"version"`
}

type Stats struct {
	Used       int64   `json:"used"`
	Total      int64   `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Store is the encrypted key-value store. Every write of K also refreshes the
// K_backup shadow, and a failed read of K gets one recovery pass from it.
type Store struct {
	backend       Backend
	cipher        *Cipher
	capacityBytes int64
	metrics       *metrics.Manager

	// ability to inject the clock (for unit testing)
	NowFunc func() time.Time
}

func NewStore(
	backend Backend,
	cipher *Cipher,
	capacityBytes int64,
	metricsManager *metrics.Manager,
) *Store {
	if capacityBytes <= 0 {
		capacityBytes = DefaultCapacityBytes
	}
	return &Store{
		backend:       backend,
		cipher:        cipher,
		capacityBytes: capacityBytes,
		metrics:       metricsManager,
		NowFunc:       time.Now,
	}
}

func (s *Store) SetItem(ctx context.Context, key string, value any) error {
	valueJson, err := json.Marshal(value)
	if err != nil {
		log.Errorf("store: marshal [%s]: %s", key, err)
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	if err := s.backend.Set(ctx, key, s.cipher.Encrypt(valueJson)); err != nil {
		log.Errorf("store: write [%s]: %s", key, err)
		return fmt.Errorf("write %s: %w", key, err)
	}

	backupJson, err := json.Marshal(backupRecord{
		Data:      valueJson,
		Timestamp: s.NowFunc().UTC(),
		Version:   formatVersion,
	})
	if err != nil {
		log.Errorf("store: marshal backup [%s]: %s", key, err)
		return fmt.Errorf("marshal backup %s: %w", key, err)
	}

	if err := s.backend.Set(ctx, BackupKey(key), s.cipher.Encrypt(backupJson)); err != nil {
		log.Errorf("store: write backup [%s]: %s", key, err)
		return fmt.Errorf("write backup %s: %w", key, err)
	}

	return nil
}

// GetItem decodes the record stored under key into dst, which must be a
// non-nil pointer. It returns ErrNotFound when there is no primary record and
// ErrCorrupted when neither the primary nor its backup can be decoded.
func (s *Store) GetItem(ctx context.Context, key string, dst any) error {
	encrypted, found, err := s.backend.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if !found {
		return ErrNotFound
	}

	decodeErr := s.decode(encrypted, dst)
	if decodeErr == nil {
		return nil
	}

	log.Warnf("store: [%s] unreadable, trying backup: %s", key, decodeErr)
	if err := s.recoverFromBackup(ctx, key, dst); err != nil {
		log.Errorf("store: recover [%s] from backup: %s", key, err)
		s.countRecovery("failed")
		return fmt.Errorf("%w: %s", ErrCorrupted, key)
	}

	s.countRecovery("recovered")
	return nil
}

func (s *Store) recoverFromBackup(ctx context.Context, key string, dst any) error {
	encrypted, found, err := s.backend.Get(ctx, BackupKey(key))
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if !found {
		return errors.New("no backup")
	}

	plain, err := s.cipher.Decrypt(encrypted)
	if err != nil {
		return err
	}

	var backup backupRecord
	if err := json.Unmarshal(plain, &backup); err != nil {
		return fmt.Errorf("unmarshal backup record: %w", err)
	}
	if len(backup.Data) == 0 {
		return errors.New("empty backup record")
	}

	resetValue(dst)
	if err := unmarshalAndValidate(backup.Data, dst); err != nil {
		return err
	}

	log.Infof("store: recovered [%s] from backup taken at %s", key, backup.Timestamp.Format(time.RFC3339))

	// re-establish the primary slot, not fatal for the caller if it fails
	if err := s.SetItem(ctx, key, backup.Data); err != nil {
		log.Errorf("store: repair primary [%s]: %s", key, err)
	}

	return nil
}

func (s *Store) decode(encrypted string, dst any) error {
	plain, err := s.cipher.Decrypt(encrypted)
	if err != nil {
		return err
	}
	if len(plain) == 0 {
		return fmt.Errorf("%w: empty payload", ErrCorrupted)
	}
	return unmarshalAndValidate(plain, dst)
}

func unmarshalAndValidate(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: unmarshal: %s", ErrCorrupted, err)
	}
	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: invalid shape: %s", ErrCorrupted, err)
		}
	}
	return nil
}

// resetValue zeroes whatever a failed decode might have left in dst.
func resetValue(dst any) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return
	}
	rv.Elem().Set(reflect.Zero(rv.Elem().Type()))
}

// Get is the typed variant of Store.GetItem.
func Get[T any](ctx context.Context, s *Store, key string) (T, error) {
	var value T
	err := s.GetItem(ctx, key, &value)
	return value, err
}

// ValidateData reports whether the record under key is readable and passes
// the given check.
func ValidateData[T any](ctx context.Context, s *Store, key string, validator func(T) bool) bool {
	value, err := Get[T](ctx, s, key)
	if err != nil {
		return false
	}
	return validator(value)
}

func (s *Store) RemoveItem(ctx context.Context, key string) error {
	return multierr.Combine(
		s.backend.Remove(ctx, key),
		s.backend.Remove(ctx, BackupKey(key)),
	)
}

// Clear removes every record, keeping only the installation secret.
func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}

	var errs error
	for _, key := range keys {
		if key == EncryptionKeyName {
			continue
		}
		errs = multierr.Append(errs, s.backend.Remove(ctx, key))
	}

	return errs
}

// StorageStats approximates the used storage as the sum of key and value lengths.
func (s *Store) StorageStats(ctx context.Context) (Stats, error) {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list keys: %w", err)
	}

	var used int64
	for _, key := range keys {
		value, found, err := s.backend.Get(ctx, key)
		if err != nil {
			return Stats{}, fmt.Errorf("read %s: %w", key, err)
		}
		if !found {
			continue
		}
		used += int64(len(key) + len(value))
	}

	return Stats{
		Used:       used,
		Total:      s.capacityBytes,
		Percentage: float64(used) / float64(s.capacityBytes) * 100,
	}, nil
}

func (s *Store) countRecovery(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.CounterStoreRecoveries.WithLabelValues(result).Inc()
}
