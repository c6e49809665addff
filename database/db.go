package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"tripplanner/models"
)

// ─── Models ──────────────────────────────────────────────────────────────────

// SavedPlan is a plan document stored under a session id.
type SavedPlan struct {
	ID        string       `json:"id"`
	Plan      *models.Plan `json:"plan"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type Itinerary struct {
	ID           string    `json:"id"`
	PlanID       string    `json:"plan_id"`
	PDFData      []byte    `json:"pdf_data,omitempty"` // stored in DB, no filesystem needed
	TravelerName string    `json:"traveler_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store keeps plans and generated itineraries in Postgres or SQLite.
type Store struct {
	db     *sql.DB
	driver string
}

// ─── Init ─────────────────────────────────────────────────────────────────────

// Open connects to the database and runs the migrations. driver is
// "postgres" or "sqlite".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// one writer at a time; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	// The database may take a moment to be ready after a deploy.
	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		log.Printf("⏳ Waiting for database... attempt %d/10: %v", i+1, err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Println("✅ Database connected and migrated")
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ─── Migrations ───────────────────────────────────────────────────────────────

func (s *Store) Migrate(ctx context.Context) error {
	blob := "BYTEA"
	if s.driver == "sqlite" {
		blob = "BLOB"
	}
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			id         TEXT PRIMARY KEY,
			plan_json  TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS itineraries (
			id            TEXT PRIMARY KEY,
			plan_id       TEXT NOT NULL REFERENCES plans(id),
			pdf_data      ` + blob + `,
			traveler_name TEXT,
			created_at    TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_itineraries_plan_id
			ON itineraries(plan_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── CRUD ─────────────────────────────────────────────────────────────────────

// SavePlan inserts or replaces the plan stored under id.
func (s *Store) SavePlan(ctx context.Context, id string, p *models.Plan, at time.Time) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO plans (id, plan_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET plan_json = excluded.plan_json, updated_at = excluded.updated_at`),
		id, string(data), at.UTC())
	return err
}

// GetPlan loads a plan and reconciles its ledger.
func (s *Store) GetPlan(ctx context.Context, id string) (*SavedPlan, error) {
	var (
		data string
		sp   = &SavedPlan{ID: id}
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT plan_json, updated_at FROM plans WHERE id = ?`), id).
		Scan(&data, &sp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: plan %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	sp.Plan, err = DecodePlan([]byte(data))
	if err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Store) SaveItinerary(ctx context.Context, i *Itinerary) error {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO itineraries (id, plan_id, pdf_data, traveler_name, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		i.ID, i.PlanID, i.PDFData, i.TravelerName, i.CreatedAt.UTC())
	return err
}

func (s *Store) GetItinerary(ctx context.Context, id string) (*Itinerary, error) {
	i := &Itinerary{}
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, plan_id, pdf_data, traveler_name, created_at
		FROM itineraries WHERE id = ?`), id).
		Scan(&i.ID, &i.PlanID, &i.PDFData, &i.TravelerName, &i.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: itinerary %s", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return i, nil
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// rebind turns "?" placeholders into "$1", "$2", ... for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
