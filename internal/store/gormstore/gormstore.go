// Package gormstore is the relational persistence driver. The DSN selects
// the dialect: sqlite for single-binary deployments and tests, mysql when a
// server DSN is configured.
package gormstore

import (
	"context"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/JoseManaure/portfolio-server/internal/store"
)

func timeFromNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

type transcriptRow struct {
	ID        string `gorm:"primaryKey;size:26"`
	SessionID string `gorm:"type:varchar(64);index"`
	Prompt    string `gorm:"type:text;not null"`
	Reply     string `gorm:"type:text;not null"`
	Source    string `gorm:"type:varchar(32);index;not null"`
	CreatedAt int64  `gorm:"autoCreateTime:nano;index"`
}

func (transcriptRow) TableName() string { return "chat_transcripts" }

type visitorRow struct {
	VisitorID string `gorm:"primaryKey;size:36"`
	IP        string `gorm:"type:varchar(64)"`
	UserAgent string `gorm:"type:varchar(512)"`
	Country   string `gorm:"type:varchar(64)"`
	City      string `gorm:"type:varchar(64)"`
	Lat       float64
	Lon       float64
	HasLoc    bool
	CreatedAt int64 `gorm:"autoCreateTime:nano"`
}

func (visitorRow) TableName() string { return "visitors" }

// Store implements store.Store on gorm.
type Store struct {
	db *gorm.DB
}

// Open connects, migrates and returns the driver. A DSN containing a mysql
// tcp() address selects the mysql dialect, anything else opens sqlite.
func Open(dsn string) (*Store, error) {
	var dialector gorm.Dialector
	if strings.Contains(dsn, "@tcp(") {
		dialector = mysql.Open(dsn)
	} else {
		dialector = gormsqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&transcriptRow{}, &visitorRow{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-open gorm handle. Used by tests.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&transcriptRow{}, &visitorRow{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// CreateTranscript implements store.Store.
func (s *Store) CreateTranscript(ctx context.Context, t *store.Transcript) error {
	if t.ID == "" {
		t.ID = store.NewID()
	}
	row := transcriptRow{
		ID:        t.ID,
		SessionID: t.SessionID,
		Prompt:    t.Prompt,
		Reply:     t.Reply,
		Source:    t.Source,
		CreatedAt: t.CreatedAt.UnixNano(),
	}
	if t.CreatedAt.IsZero() {
		row.CreatedAt = 0 // let gorm fill it
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	t.CreatedAt = timeFromNano(row.CreatedAt)
	return nil
}

// ListTranscripts implements store.Store. ULIDs sort lexicographically by
// creation time, so id ordering is creation ordering.
func (s *Store) ListTranscripts(ctx context.Context, f store.Filter) ([]store.Transcript, error) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := s.db.WithContext(ctx).Model(&transcriptRow{}).Order("id DESC").Limit(limit)
	if f.SessionID != "" {
		q = q.Where("session_id = ?", f.SessionID)
	}
	if f.BeforeID != "" {
		q = q.Where("id < ?", f.BeforeID)
	}

	var rows []transcriptRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]store.Transcript, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.Transcript{
			ID:        r.ID,
			SessionID: r.SessionID,
			Prompt:    r.Prompt,
			Reply:     r.Reply,
			Source:    r.Source,
			CreatedAt: timeFromNano(r.CreatedAt),
		})
	}
	return out, nil
}

// CreateVisitor implements store.Store.
func (s *Store) CreateVisitor(ctx context.Context, v *store.Visitor) error {
	row := visitorRow{
		VisitorID: v.VisitorID,
		IP:        v.IP,
		UserAgent: v.UserAgent,
		CreatedAt: v.CreatedAt.UnixNano(),
	}
	if v.CreatedAt.IsZero() {
		row.CreatedAt = 0
	}
	if v.Location != nil {
		row.Country = v.Location.Country
		row.City = v.Location.City
		row.Lat = v.Location.Lat
		row.Lon = v.Location.Lon
		row.HasLoc = true
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// SetVisitorLocation implements store.Store.
func (s *Store) SetVisitorLocation(ctx context.Context, visitorID string, loc store.Location) error {
	return s.db.WithContext(ctx).Model(&visitorRow{}).
		Where("visitor_id = ?", visitorID).
		Updates(map[string]any{
			"country": loc.Country,
			"city":    loc.City,
			"lat":     loc.Lat,
			"lon":     loc.Lon,
			"has_loc": true,
		}).Error
}

// Close implements store.Store.
func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
