package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/treykane/gostly/internal/model"
)

const profileColumns = `id, name, type, listen, remote, username, password`

// Profiles returns every stored profile ordered by id. Status is always
// stopped; the caller overlays the live process state.
func (s *DB) Profiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := []model.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *DB) Profile(ctx context.Context, id int64) (model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, ErrNotFound
	}
	return p, err
}

// AddProfile inserts d and returns the assigned id.
func (s *DB) AddProfile(ctx context.Context, d model.ProfileDraft) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (name, type, listen, remote, username, password) VALUES (?, ?, ?, ?, ?, ?)`,
		d.Name, string(d.Type), d.Listen, d.Remote, d.Username, d.Password,
	)
	if err != nil {
		return 0, fmt.Errorf("insert profile: %w", err)
	}
	return res.LastInsertId()
}

func (s *DB) UpdateProfile(ctx context.Context, p model.Profile) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET name = ?, type = ?, listen = ?, remote = ?, username = ?, password = ? WHERE id = ?`,
		p.Name, string(p.Type), p.Listen, p.Remote, p.Username, p.Password, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return affectedOne(res)
}

func (s *DB) DeleteProfile(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return affectedOne(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(sc scanner) (model.Profile, error) {
	var p model.Profile
	var typ string
	if err := sc.Scan(&p.ID, &p.Name, &typ, &p.Listen, &p.Remote, &p.Username, &p.Password); err != nil {
		return model.Profile{}, err
	}
	p.Type = model.ProfileType(typ)
	p.Status = model.StatusStopped
	return p, nil
}
