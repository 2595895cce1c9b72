package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/treykane/gostly/internal/model"
)

// HostMappings returns every mapping ordered by hostname.
func (s *DB) HostMappings(ctx context.Context) ([]model.HostMapping, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, hostname, ip, port, protocol, active FROM host_mappings ORDER BY hostname`)
	if err != nil {
		return nil, fmt.Errorf("list host mappings: %w", err)
	}
	defer rows.Close()

	out := []model.HostMapping{}
	for rows.Next() {
		var m model.HostMapping
		var proto string
		if err := rows.Scan(&m.ID, &m.Hostname, &m.IP, &m.Port, &proto, &m.Active); err != nil {
			return nil, err
		}
		m.Protocol = model.Protocol(proto)
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertHostMapping inserts m when m.ID is zero and updates the row otherwise.
// Hostnames are stored lowercase and must be unique. The stored id is
// returned.
func (s *DB) UpsertHostMapping(ctx context.Context, m model.HostMapping) (int64, error) {
	host := strings.ToLower(strings.TrimSpace(m.Hostname))
	if m.ID == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO host_mappings (hostname, ip, port, protocol, active) VALUES (?, ?, ?, ?, ?)`,
			host, m.IP, m.Port, string(m.Protocol), m.Active,
		)
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrHostnameTaken, host)
		}
		if err != nil {
			return 0, fmt.Errorf("insert host mapping: %w", err)
		}
		return res.LastInsertId()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE host_mappings SET hostname = ?, ip = ?, port = ?, protocol = ?, active = ? WHERE id = ?`,
		host, m.IP, m.Port, string(m.Protocol), m.Active, m.ID,
	)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("%w: %s", ErrHostnameTaken, host)
	}
	if err != nil {
		return 0, fmt.Errorf("update host mapping: %w", err)
	}
	if err := affectedOne(res); err != nil {
		return 0, err
	}
	return m.ID, nil
}

func (s *DB) DeleteHostMapping(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM host_mappings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete host mapping: %w", err)
	}
	return affectedOne(res)
}
