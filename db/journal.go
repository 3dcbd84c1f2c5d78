package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jacekjursza/codehem/models"
)

// Journal appends workspace sessions and applied patches to the database.
type Journal struct {
	db *gorm.DB
}

// NewJournal wraps an open, migrated connection.
func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// Open connects to the configured database and returns a journal over it.
func Open(cfg Config) (*Journal, error) {
	conn, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	return NewJournal(conn), nil
}

// StartSession records a workspace being opened.
func (j *Journal) StartSession(root string, files, elements int, info map[string]any) (*models.Session, error) {
	meta, err := toJSON(info)
	if err != nil {
		return nil, err
	}
	session := &models.Session{
		ID:              uuid.NewString(),
		Root:            root,
		FilesIndexed:    files,
		ElementsIndexed: elements,
		ClientInfo:      meta,
	}
	if err := j.db.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}
	return session, nil
}

// EndSession stamps the end time of a session.
func (j *Journal) EndSession(id string) error {
	now := time.Now()
	return j.db.Model(&models.Session{}).Where("id = ?", id).Update("ended_at", &now).Error
}

// Record appends a patch record, assigning an ID when missing, and bumps
// the owning session's patch count.
func (j *Journal) Record(rec *models.PatchRecord, meta map[string]any) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if meta != nil {
		data, err := toJSON(meta)
		if err != nil {
			return err
		}
		rec.Meta = data
	}

	return j.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to record patch: %w", err)
		}
		if rec.SessionID == "" {
			return nil
		}
		return tx.Model(&models.Session{}).
			Where("id = ?", rec.SessionID).
			UpdateColumn("patches_count", gorm.Expr("patches_count + ?", 1)).Error
	})
}

// History returns the most recent patches of file, newest first. An empty
// file returns patches of every file.
func (j *Journal) History(file string, limit int) ([]models.PatchRecord, error) {
	q := j.db.Order("applied_at DESC")
	if file != "" {
		q = q.Where("file = ?", file)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var records []models.PatchRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return records, nil
}

// Close releases the underlying connection.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toJSON(v map[string]any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return datatypes.JSON(data), nil
}
