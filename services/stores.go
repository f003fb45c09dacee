package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/feedback"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
)

// ErrNotFound is returned by store lookups when no row matches.
var ErrNotFound = errors.New("not found")

// ReleaseStore persists release metadata.
type ReleaseStore interface {
	SaveRelease(rel *release.Release) error
	GetRelease(id string) (*release.Release, error)
	GetReleaseByVersion(version string) (*release.Release, error)
	ListReleases(channel release.Channel, publishedOnly bool) ([]*release.Release, error)
	DeleteRelease(id string) error
	Close() error
}

// FeedbackStore persists feedback reports.
type FeedbackStore interface {
	SaveReport(report *StoredReport) error
	GetReport(id string) (*StoredReport, error)
	ListReports(filter ReportFilter) ([]*StoredReport, error)
	Close() error
}

// ReportFilter narrows a feedback listing. Zero values match everything.
type ReportFilter struct {
	Type  feedback.Type
	Since time.Time
	// Limit caps the result set. Zero means the default of 1000.
	Limit int
}

// LatestRelease returns the newest published release on a channel, or
// ErrNotFound when the channel has none. Ordering is semantic version
// precedence, not the insertion order of the store.
func LatestRelease(store ReleaseStore, channel release.Channel) (*release.Release, error) {
	releases, err := store.ListReleases(channel, true)
	if err != nil {
		return nil, err
	}

	var latest *release.Release
	for _, rel := range releases {
		if latest == nil {
			latest = rel
			continue
		}
		newer, err := release.IsNewer(rel.Version, latest.Version)
		if err != nil {
			continue
		}
		if newer {
			latest = rel
		}
	}

	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

// PostgresStore implements ReleaseStore and FeedbackStore with PostgreSQL
// persistence.
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// ConnectionString returns the PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(config *PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS releases (
		id VARCHAR(64) PRIMARY KEY,
		version VARCHAR(64) NOT NULL UNIQUE,
		channel VARCHAR(16) NOT NULL,
		notes TEXT,
		release_date TIMESTAMP WITH TIME ZONE,
		publisher_key VARCHAR(128),
		published BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_releases_channel ON releases(channel);
	CREATE INDEX IF NOT EXISTS idx_releases_published ON releases(published);

	CREATE TABLE IF NOT EXISTS release_artifacts (
		release_id VARCHAR(64) NOT NULL REFERENCES releases(id) ON DELETE CASCADE,
		filename VARCHAR(255) NOT NULL,
		platform VARCHAR(16) NOT NULL,
		size BIGINT NOT NULL,
		sha512 VARCHAR(128) NOT NULL,
		store_only BOOLEAN NOT NULL DEFAULT FALSE,
		cid VARCHAR(128),
		gateway_url VARCHAR(512),
		magnet TEXT,
		PRIMARY KEY (release_id, filename)
	);

	CREATE TABLE IF NOT EXISTS feedback_reports (
		id VARCHAR(64) PRIMARY KEY,
		received_at TIMESTAMP WITH TIME ZONE NOT NULL,
		remote_addr VARCHAR(64),
		report_type VARCHAR(32) NOT NULL,
		rating INT NOT NULL,
		report JSONB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_type ON feedback_reports(report_type);
	CREATE INDEX IF NOT EXISTS idx_feedback_received ON feedback_reports(received_at);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveRelease persists a release and its artifact rows. Saving again with the
// same ID replaces the artifact set.
func (s *PostgresStore) SaveRelease(rel *release.Release) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
	INSERT INTO releases
		(id, version, channel, notes, release_date, publisher_key, published, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	ON CONFLICT (id) DO UPDATE SET
		version = EXCLUDED.version,
		channel = EXCLUDED.channel,
		notes = EXCLUDED.notes,
		release_date = EXCLUDED.release_date,
		publisher_key = EXCLUDED.publisher_key,
		published = EXCLUDED.published,
		updated_at = NOW()
	`

	_, err = tx.ExecContext(ctx, query,
		rel.ID,
		rel.Version,
		string(rel.Channel),
		rel.Notes,
		rel.Date,
		rel.PublisherKey,
		rel.Published,
	)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM release_artifacts WHERE release_id = $1", rel.ID); err != nil {
		return err
	}

	for _, art := range rel.Artifacts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO release_artifacts
				(release_id, filename, platform, size, sha512, store_only, cid, gateway_url, magnet)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			rel.ID,
			art.Filename,
			string(art.Platform),
			art.Size,
			art.SHA512,
			art.StoreOnly,
			art.CID,
			art.GatewayURL,
			art.Magnet,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetRelease retrieves a release by ID.
func (s *PostgresStore) GetRelease(id string) (*release.Release, error) {
	return s.getRelease("id = $1", id)
}

// GetReleaseByVersion retrieves a release by its version string.
func (s *PostgresStore) GetReleaseByVersion(version string) (*release.Release, error) {
	return s.getRelease("version = $1", version)
}

func (s *PostgresStore) getRelease(where string, arg any) (*release.Release, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rel := &release.Release{}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, version, channel, notes, release_date, publisher_key, published
		FROM releases WHERE `+where, arg)

	var channel string
	var date sql.NullTime
	if err := row.Scan(&rel.ID, &rel.Version, &channel, &rel.Notes, &date, &rel.PublisherKey, &rel.Published); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rel.Channel = release.Channel(channel)
	if date.Valid {
		rel.Date = date.Time
	}

	artifacts, err := s.loadArtifacts(ctx, rel.ID)
	if err != nil {
		return nil, err
	}
	rel.Artifacts = artifacts
	return rel, nil
}

func (s *PostgresStore) loadArtifacts(ctx context.Context, releaseID string) ([]release.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename, platform, size, sha512, store_only, cid, gateway_url, magnet
		FROM release_artifacts WHERE release_id = $1 ORDER BY filename
	`, releaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []release.Artifact
	for rows.Next() {
		var art release.Artifact
		var platform string
		if err := rows.Scan(&art.Filename, &platform, &art.Size, &art.SHA512, &art.StoreOnly, &art.CID, &art.GatewayURL, &art.Magnet); err != nil {
			return nil, fmt.Errorf("scanning artifact row: %w", err)
		}
		art.Platform = release.Platform(platform)
		artifacts = append(artifacts, art)
	}
	return artifacts, rows.Err()
}

// ListReleases retrieves releases on a channel, newest insert first. An empty
// channel matches all channels.
func (s *PostgresStore) ListReleases(channel release.Channel, publishedOnly bool) ([]*release.Release, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version, channel, notes, release_date, publisher_key, published
		FROM releases
		WHERE ($1 = '' OR channel = $1) AND (NOT $2 OR published)
		ORDER BY created_at DESC
	`, string(channel), publishedOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var releases []*release.Release
	for rows.Next() {
		rel := &release.Release{}
		var ch string
		var date sql.NullTime
		if err := rows.Scan(&rel.ID, &rel.Version, &ch, &rel.Notes, &date, &rel.PublisherKey, &rel.Published); err != nil {
			return nil, fmt.Errorf("scanning release row: %w", err)
		}
		rel.Channel = release.Channel(ch)
		if date.Valid {
			rel.Date = date.Time
		}
		releases = append(releases, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rel := range releases {
		artifacts, err := s.loadArtifacts(ctx, rel.ID)
		if err != nil {
			return nil, err
		}
		rel.Artifacts = artifacts
	}
	return releases, nil
}

// DeleteRelease removes a release and its artifact rows.
func (s *PostgresStore) DeleteRelease(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, "DELETE FROM releases WHERE id = $1", id)
	return err
}

// SaveReport persists a feedback report.
func (s *PostgresStore) SaveReport(report *StoredReport) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	body, err := json.Marshal(&report.Report)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO feedback_reports (id, received_at, remote_addr, report_type, rating, report)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		report.ID,
		report.ReceivedAt,
		report.RemoteAddr,
		string(report.Report.Type),
		report.Report.Rating,
		body,
	)
	return err
}

// GetReport retrieves a feedback report by ID.
func (s *PostgresStore) GetReport(id string) (*StoredReport, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, received_at, remote_addr, report FROM feedback_reports WHERE id = $1
	`, id)
	return scanReport(row.Scan)
}

// ListReports retrieves feedback reports matching the filter, newest first.
func (s *PostgresStore) ListReports(filter ReportFilter) ([]*StoredReport, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, received_at, remote_addr, report
		FROM feedback_reports
		WHERE ($1 = '' OR report_type = $1) AND received_at >= $2
		ORDER BY received_at DESC
		LIMIT $3
	`, string(filter.Type), filter.Since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*StoredReport
	for rows.Next() {
		report, err := scanReport(rows.Scan)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func scanReport(scan func(...any) error) (*StoredReport, error) {
	report := &StoredReport{}
	var body []byte
	if err := scan(&report.ID, &report.ReceivedAt, &report.RemoteAddr, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning report row: %w", err)
	}
	if err := json.Unmarshal(body, &report.Report); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return report, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// InMemoryStore implements ReleaseStore and FeedbackStore for testing without
// a database.
type InMemoryStore struct {
	mu       sync.RWMutex
	releases map[string]*release.Release
	reports  map[string]*StoredReport
}

// NewInMemoryStore creates an in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		releases: make(map[string]*release.Release),
		reports:  make(map[string]*StoredReport),
	}
}

// SaveRelease stores a release in memory.
func (s *InMemoryStore) SaveRelease(rel *release.Release) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases[rel.ID] = rel
	return nil
}

// GetRelease returns a stored release by ID.
func (s *InMemoryStore) GetRelease(id string) (*release.Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.releases[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rel, nil
}

// GetReleaseByVersion returns a stored release by version.
func (s *InMemoryStore) GetReleaseByVersion(version string) (*release.Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rel := range s.releases {
		if rel.Version == version {
			return rel, nil
		}
	}
	return nil, ErrNotFound
}

// ListReleases returns stored releases on a channel.
func (s *InMemoryStore) ListReleases(channel release.Channel, publishedOnly bool) ([]*release.Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var releases []*release.Release
	for _, rel := range s.releases {
		if channel != "" && rel.Channel != channel {
			continue
		}
		if publishedOnly && !rel.Published {
			continue
		}
		releases = append(releases, rel)
	}
	sort.Slice(releases, func(i, j int) bool {
		return releases[i].Version < releases[j].Version
	})
	return releases, nil
}

// DeleteRelease removes a stored release.
func (s *InMemoryStore) DeleteRelease(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.releases, id)
	return nil
}

// SaveReport stores a feedback report in memory.
func (s *InMemoryStore) SaveReport(report *StoredReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.ID] = report
	return nil
}

// GetReport returns a stored feedback report by ID.
func (s *InMemoryStore) GetReport(id string) (*StoredReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	return report, nil
}

// ListReports returns stored feedback reports matching the filter.
func (s *InMemoryStore) ListReports(filter ReportFilter) ([]*StoredReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}

	var reports []*StoredReport
	for _, report := range s.reports {
		if filter.Type != "" && report.Report.Type != filter.Type {
			continue
		}
		if !filter.Since.IsZero() && report.ReceivedAt.Before(filter.Since) {
			continue
		}
		reports = append(reports, report)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].ReceivedAt.After(reports[j].ReceivedAt)
	})
	if len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
