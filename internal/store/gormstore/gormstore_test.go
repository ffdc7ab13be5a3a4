package gormstore

import (
	"context"
	"fmt"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/JoseManaure/portfolio-server/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := NewWithDB(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestCreateAndListTranscripts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tr := &store.Transcript{
			SessionID: "s1",
			Prompt:    fmt.Sprintf("pregunta %d", i),
			Reply:     fmt.Sprintf("respuesta %d", i),
			Source:    store.SourceModel,
		}
		if err := s.CreateTranscript(ctx, tr); err != nil {
			t.Fatalf("create transcript %d: %v", i, err)
		}
		if tr.ID == "" {
			t.Fatalf("expected generated id")
		}
	}

	got, err := s.ListTranscripts(ctx, store.Filter{SessionID: "s1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 transcripts, got %d", len(got))
	}
	// Newest first.
	if got[0].Prompt != "pregunta 2" || got[2].Prompt != "pregunta 0" {
		t.Fatalf("unexpected order: first=%q last=%q", got[0].Prompt, got[2].Prompt)
	}
}

func TestListTranscriptsPagination(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		tr := &store.Transcript{SessionID: "s1", Prompt: "p", Reply: "r", Source: store.SourceDictionary}
		if err := s.CreateTranscript(ctx, tr); err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, tr.ID)
	}

	page, err := s.ListTranscripts(ctx, store.Filter{SessionID: "s1", Limit: 2, BeforeID: ids[4]})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 records, got %d", len(page))
	}
	if page[0].ID != ids[3] || page[1].ID != ids[2] {
		t.Fatalf("unexpected page ids: %v", []string{page[0].ID, page[1].ID})
	}
}

func TestListTranscriptsFiltersBySession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, sid := range []string{"a", "a", "b"} {
		if err := s.CreateTranscript(ctx, &store.Transcript{SessionID: sid, Prompt: "p", Reply: "r", Source: store.SourceModel}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := s.ListTranscripts(ctx, store.Filter{SessionID: "a"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 transcripts for session a, got %d", len(got))
	}
}

func TestVisitorLocationUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v := &store.Visitor{VisitorID: "v-1", IP: "1.2.3.4", UserAgent: "test-agent"}
	if err := s.CreateVisitor(ctx, v); err != nil {
		t.Fatalf("create visitor: %v", err)
	}

	loc := store.Location{Country: "Chile", City: "Santiago", Lat: -33.45, Lon: -70.66}
	if err := s.SetVisitorLocation(ctx, "v-1", loc); err != nil {
		t.Fatalf("set location: %v", err)
	}

	var row visitorRow
	if err := s.db.Where("visitor_id = ?", "v-1").First(&row).Error; err != nil {
		t.Fatalf("load visitor: %v", err)
	}
	if !row.HasLoc || row.City != "Santiago" || row.Country != "Chile" {
		t.Fatalf("location not stored: %+v", row)
	}
}
