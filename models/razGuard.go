package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/register_backend/config"
)

// RAZGuardState tracks the mandatory view/print/notify steps in front of a
// reset, keyed by (session_id, local_date). A new calendar day gets a fresh
// row, which is what resets the gate at local midnight.
type RAZGuardState struct {
	SessionId  string     `gorm:"primaryKey;size:64" json:"session_id"`
	LocalDate  string     `gorm:"primaryKey;size:10" json:"local_date"`
	Viewed     bool       `gorm:"not null;default:false" json:"viewed"`
	Printed    bool       `gorm:"not null;default:false" json:"printed"`
	EmailSent  bool       `gorm:"not null;default:false" json:"email_sent"`
	Executed   bool       `gorm:"not null;default:false" json:"executed"`
	Acked      bool       `gorm:"not null;default:false" json:"acked"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// LocalDateKey formats the calendar-day portion of the guard key.
func LocalDateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func GetRAZGuardState(ctx context.Context, sessionId string, localDate string) (*RAZGuardState, error) {
	var state RAZGuardState
	err := config.GetLocalDB().WithContext(ctx).
		Where("session_id = ? AND local_date = ?", sessionId, localDate).
		Take(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &RAZGuardState{SessionId: sessionId, LocalDate: localDate}, nil
		}
		return nil, err
	}
	return &state, nil
}

func SaveRAZGuardState(ctx context.Context, state *RAZGuardState) error {
	return config.GetLocalDB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}, {Name: "local_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"viewed", "printed", "email_sent", "executed", "acked", "executed_at", "updated_at",
			}),
		}).Create(state).Error
}

// ClearRAZGuardStates drops guard rows for a session, used when the guard
// display mode changes (the gate restarts from scratch).
func ClearRAZGuardStates(ctx context.Context, sessionId string) error {
	return config.GetLocalDB().WithContext(ctx).
		Where("session_id = ?", sessionId).
		Delete(&RAZGuardState{}).Error
}
