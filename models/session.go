package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

// Session bounds the reporting window and gates the end-of-session reset.
// At most one session is open at a time; closing stamps the totals as a
// historical snapshot and stops "session" attribution until a new one opens.
type Session struct {
	ID            string          `gorm:"primaryKey;size:64" json:"id"`
	EventName     string          `gorm:"size:255;not null" json:"event_name"`
	EventStart    time.Time       `gorm:"not null" json:"event_start"`
	EventEnd      time.Time       `gorm:"not null" json:"event_end"`
	OpenedAt      time.Time       `gorm:"not null" json:"opened_at"`
	ClosedAt      *time.Time      `json:"closed_at,omitempty"`
	Status        SessionStatus   `gorm:"size:16;not null;index" json:"status"`
	ClosingTotals decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"closing_totals"`
	ClosingCount  int             `gorm:"default:0" json:"closing_count"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSession struct {
	EventName  string    `json:"event_name" binding:"required"`
	EventStart time.Time `json:"event_start" binding:"required"`
	EventEnd   time.Time `json:"event_end" binding:"required"`
}

type SessionClosingTotals struct {
	TotalAmount decimal.Decimal `json:"total_amount"`
	SaleCount   int             `json:"sale_count"`
}

// OpenSession creates or updates the single active session row.
func OpenSession(ctx context.Context, input *NewSession) (*Session, error) {
	if strings.TrimSpace(input.EventName) == "" {
		return nil, &utils.ValidationError{Field: "event_name", Reason: "required"}
	}
	if !input.EventEnd.After(input.EventStart) {
		return nil, &utils.ValidationError{Field: "event_end", Reason: "must be after event_start"}
	}

	db := config.GetLocalDB()

	existing, err := GetActiveSession(ctx)
	if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, err
	}

	if existing != nil {
		if err := db.WithContext(ctx).Model(&Session{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"event_name":  strings.TrimSpace(input.EventName),
				"event_start": input.EventStart,
				"event_end":   input.EventEnd,
			}).Error; err != nil {
			return nil, err
		}
		return GetSession(ctx, existing.ID)
	}

	session := &Session{
		ID:         uuid.NewString(),
		EventName:  strings.TrimSpace(input.EventName),
		EventStart: input.EventStart,
		EventEnd:   input.EventEnd,
		OpenedAt:   time.Now(),
		Status:     SessionStatusOpen,
	}
	if err := db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// CloseSession marks the window closed. Sales are not deleted here; only
// the end-of-session reset purges them.
func CloseSession(ctx context.Context, totals SessionClosingTotals) (*Session, error) {
	session, err := GetActiveSession(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := config.GetLocalDB().WithContext(ctx).Model(&Session{}).
		Where("id = ?", session.ID).
		Updates(map[string]interface{}{
			"status":         SessionStatusClosed,
			"closed_at":      &now,
			"closing_totals": totals.TotalAmount,
			"closing_count":  totals.SaleCount,
		}).Error; err != nil {
		return nil, err
	}
	return GetSession(ctx, session.ID)
}

func GetSession(ctx context.Context, id string) (*Session, error) {
	var session Session
	err := config.GetLocalDB().WithContext(ctx).Where("id = ?", id).Take(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &session, nil
}

func GetActiveSession(ctx context.Context) (*Session, error) {
	var session Session
	err := config.GetLocalDB().WithContext(ctx).
		Where("status = ?", SessionStatusOpen).
		Order("opened_at DESC").
		Take(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &session, nil
}

// UpsertRemoteSession mirrors a session row learned from the shared store,
// so every terminal agrees on the reporting window.
func UpsertRemoteSession(ctx context.Context, session Session) error {
	return config.GetLocalDB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&session).Error
}
