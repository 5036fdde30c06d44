// Package repo provides read-only access to the telemetry store. The engine
// never writes through it; analyses are recomputed, not persisted here.
package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orbitalworks/satlink-rca/internal/config"
	"github.com/orbitalworks/satlink-rca/internal/models"
	"github.com/orbitalworks/satlink-rca/internal/utils"
)

// Store is the PostgreSQL-backed metrics repository.
type Store struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
	logger       *slog.Logger
}

// NewStore opens a pooled connection to the telemetry database.
func NewStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = 5 * time.Minute
	poolCfg.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	return &Store{pool: pool, queryTimeout: cfg.QueryTimeout, logger: logger}, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// NetworkLinks returns all links belonging to a network.
func (s *Store) NetworkLinks(ctx context.Context, networkID string) ([]models.LinkRef, error) {
	const op = "repo.NetworkLinks"

	id, err := parseID(networkID)
	if err != nil {
		return nil, utils.NewAppError(op, utils.KindEntityNotFound, "unknown network "+networkID, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM networks WHERE network_id = $1)`, id).Scan(&exists)
	if err != nil {
		return nil, unavailable(op, err)
	}
	if !exists {
		return nil, utils.NewAppError(op, utils.KindEntityNotFound, "unknown network "+networkID, nil)
	}

	return s.queryLinks(ctx, op,
		`SELECT link_id, site_id, network_id, satellite, link_name
		   FROM links WHERE network_id = $1 ORDER BY link_id`, id)
}

// HubLinks returns all links terminating at a hub site. Non-hub sites are
// rejected as unknown: the hub-antenna scope only exists for hubs.
func (s *Store) HubLinks(ctx context.Context, siteID string) ([]models.LinkRef, error) {
	const op = "repo.HubLinks"

	id, err := parseID(siteID)
	if err != nil {
		return nil, utils.NewAppError(op, utils.KindEntityNotFound, "unknown site "+siteID, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var siteType string
	err = s.pool.QueryRow(ctx,
		`SELECT COALESCE(site_type, '') FROM sites WHERE site_id = $1`, id).Scan(&siteType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, utils.NewAppError(op, utils.KindEntityNotFound, "unknown site "+siteID, nil)
	}
	if err != nil {
		return nil, unavailable(op, err)
	}
	if !strings.Contains(strings.ToLower(siteType), "hub") {
		return nil, utils.NewAppError(op, utils.KindEntityNotFound,
			fmt.Sprintf("site %s is not a hub antenna site", siteID), nil)
	}

	return s.queryLinks(ctx, op,
		`SELECT link_id, site_id, network_id, satellite, link_name
		   FROM links WHERE site_id = $1 ORDER BY link_id`, id)
}

// SatelliteLinks returns all links tagged with a satellite name. Satellites
// have no table of their own; a name no link carries is an unknown entity.
func (s *Store) SatelliteLinks(ctx context.Context, satellite string) ([]models.LinkRef, error) {
	const op = "repo.SatelliteLinks"

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	links, err := s.queryLinks(ctx, op,
		`SELECT link_id, site_id, network_id, satellite, link_name
		   FROM links WHERE satellite = $1 ORDER BY link_id`, satellite)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, utils.NewAppError(op, utils.KindEntityNotFound, "unknown satellite "+satellite, nil)
	}
	return links, nil
}

// Link returns the topology record for one link.
func (s *Store) Link(ctx context.Context, linkID string) (models.LinkRef, error) {
	const op = "repo.Link"

	id, err := parseID(linkID)
	if err != nil {
		return models.LinkRef{}, utils.NewAppError(op, utils.KindEntityNotFound, "unknown link "+linkID, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		`SELECT link_id, site_id, network_id, satellite, link_name
		   FROM links WHERE link_id = $1`, id)

	ref, err := scanLinkRef(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.LinkRef{}, utils.NewAppError(op, utils.KindEntityNotFound, "unknown link "+linkID, nil)
	}
	if err != nil {
		return models.LinkRef{}, unavailable(op, err)
	}
	return ref, nil
}

// ListNetworks returns all network identifiers, for sweep scheduling.
func (s *Store) ListNetworks(ctx context.Context) ([]string, error) {
	const op = "repo.ListNetworks"

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT network_id FROM networks ORDER BY network_id`)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable(op, err)
		}
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return ids, nil
}

// FetchSeriesBatch returns the grade series for every requested link since
// the cutoff, ascending by timestamp, keyed by link id. One bounded windowed
// query regardless of how many links the scope spans.
func (s *Store) FetchSeriesBatch(ctx context.Context, linkIDs []string, since time.Time) (map[string][]models.MetricSample, error) {
	const op = "repo.FetchSeriesBatch"

	if len(linkIDs) == 0 {
		return map[string][]models.MetricSample{}, nil
	}

	ids := make([]int64, 0, len(linkIDs))
	for _, raw := range linkIDs {
		id, err := parseID(raw)
		if err != nil {
			return nil, utils.NewAppError(op, utils.KindEntityNotFound, "unknown link "+raw, nil)
		}
		ids = append(ids, id)
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT link_id, ts, grade, availability,
		        COALESCE(ib_degradation, 0), COALESCE(ob_degradation, 0),
		        COALESCE(ib_instability, 0), COALESCE(ob_instability, 0),
		        COALESCE(up_time, 0), COALESCE(latency, 0), COALESCE(congestion, 0)
		   FROM link_grades
		  WHERE link_id = ANY($1) AND ts >= $2
		  ORDER BY link_id, ts`, ids, since.UTC())
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	series := make(map[string][]models.MetricSample, len(linkIDs))
	for rows.Next() {
		var linkID int64
		sample := models.MetricSample{EntityType: models.EntityTypeLink}
		if err := rows.Scan(
			&linkID, &sample.Timestamp, &sample.Grade, &sample.Availability,
			&sample.IBDegradation, &sample.OBDegradation,
			&sample.IBInstability, &sample.OBInstability,
			&sample.UpTime, &sample.Latency, &sample.Congestion,
		); err != nil {
			return nil, unavailable(op, err)
		}
		sample.EntityID = strconv.FormatInt(linkID, 10)
		series[sample.EntityID] = append(series[sample.EntityID], sample)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return series, nil
}

func (s *Store) queryLinks(ctx context.Context, op, query string, arg any) ([]models.LinkRef, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var links []models.LinkRef
	for rows.Next() {
		ref, err := scanLinkRef(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		links = append(links, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return links, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLinkRef(row rowScanner) (models.LinkRef, error) {
	var (
		linkID, siteID, networkID int64
		satellite, linkName       *string
	)
	if err := row.Scan(&linkID, &siteID, &networkID, &satellite, &linkName); err != nil {
		return models.LinkRef{}, err
	}
	ref := models.LinkRef{
		LinkID:    strconv.FormatInt(linkID, 10),
		SiteID:    strconv.FormatInt(siteID, 10),
		NetworkID: strconv.FormatInt(networkID, 10),
	}
	if satellite != nil {
		ref.Satellite = *satellite
	}
	if linkName != nil {
		ref.LinkName = *linkName
	}
	return ref, nil
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

func unavailable(op string, err error) error {
	return utils.NewAppError(op, utils.KindRepositoryUnavailable, "telemetry store query failed", err)
}
