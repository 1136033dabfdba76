package models

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/register_backend/config"
)

// TerminalSetting is a small local key/value table holding state that must
// survive restarts: the terminal identifier (written once), the last-RAZ
// cutoff timestamp and the guard display mode.
type TerminalSetting struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	settingKeyTerminalID = "terminal_id"
	settingKeyLastRAZ    = "last_raz_cutoff_unix"
	settingKeyGuardMode  = "guard_mode"
)

var (
	terminalIDOnce sync.Once
	terminalID     string
)

// TerminalID returns the durable per-terminal identifier, generating and
// storing one on first run.
func TerminalID() string {
	terminalIDOnce.Do(func() {
		id, err := getOrCreateSetting(context.Background(), settingKeyTerminalID, uuid.NewString)
		if err != nil {
			log.Fatalf("failed to load terminal identifier: %v", err)
		}
		terminalID = id
	})
	return terminalID
}

// ResetTerminalIDForTest clears the cached identifier. Tests that swap the
// local store need this; production code never calls it.
func ResetTerminalIDForTest() {
	terminalIDOnce = sync.Once{}
	terminalID = ""
}

func getOrCreateSetting(ctx context.Context, key string, generate func() string) (string, error) {
	db := config.GetLocalDB()

	var setting TerminalSetting
	err := db.WithContext(ctx).Where("`key` = ?", key).Take(&setting).Error
	if err == nil {
		return setting.Value, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	setting = TerminalSetting{Key: key, Value: generate()}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&setting).Error; err != nil {
		return "", err
	}
	// Re-read in case a concurrent writer won the conflict.
	if err := db.WithContext(ctx).Where("`key` = ?", key).Take(&setting).Error; err != nil {
		return "", err
	}
	return setting.Value, nil
}

func setSetting(ctx context.Context, key string, value string) error {
	setting := TerminalSetting{Key: key, Value: value}
	return config.GetLocalDB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&setting).Error
}

// GetLastRAZCutoff returns the timestamp of the last executed daily RAZ.
// Zero means no RAZ has ever run, so everything counts toward "today".
func GetLastRAZCutoff(ctx context.Context) (time.Time, error) {
	var setting TerminalSetting
	err := config.GetLocalDB().WithContext(ctx).
		Where("`key` = ?", settingKeyLastRAZ).Take(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	unix, err := strconv.ParseInt(setting.Value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(unix, 0), nil
}

func SetLastRAZCutoff(ctx context.Context, at time.Time) error {
	return setSetting(ctx, settingKeyLastRAZ, strconv.FormatInt(at.Unix(), 10))
}

func GetGuardMode(ctx context.Context) (GuardMode, error) {
	var setting TerminalSetting
	err := config.GetLocalDB().WithContext(ctx).
		Where("`key` = ?", settingKeyGuardMode).Take(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return GuardModeAlwaysPrompt, nil
		}
		return "", err
	}
	return GuardMode(setting.Value), nil
}

func SetGuardMode(ctx context.Context, mode GuardMode) error {
	return setSetting(ctx, settingKeyGuardMode, string(mode))
}
