package securestore

import "strings"

const (
	EncryptionKeyName = "__gym_encryption_key__"
	LoginAttemptsKey  = "loginAttempts"
	UsersKey          = "users"

	backupSuffix  = "_backup"
	formatVersion = "1.0"
)

func ProgressionKey(userID string) string {
	return "progression_" + userID
}

func WorkoutHistoryKey(userID string) string {
	return "workoutHistory_" + userID
}

func WeightTrackingKey(userID string) string {
	return "weightTracking_" + userID
}

func PendingSyncKey(userID string) string {
	return "pendingSync_" + userID
}

func BackupKey(key string) string {
	return key + backupSuffix
}

func IsBackupKey(key string) bool {
	return strings.HasSuffix(key, backupSuffix)
}
