package store

import (
	"context"

	"github.com/vehicleplus/sums/core/model"
)

// Administrative inserts for reference data the engine itself never creates:
// features, vehicle models, units, devices and their pairings. Used by the
// migrate command and by tests.

func (s *SQLiteStore) InsertFeature(ctx context.Context, f model.Feature) (int64, error) {
	released := 0
	if f.Released {
		released = 1
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO features (app_id, name, description, image, released, release_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		f.AppID, f.Name, f.Description, f.Image, released, f.ReleaseAt.Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) InsertModel(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO models (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) AddCompatibility(ctx context.Context, modelID, featureID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO model_features (model_id, feature_id) VALUES (?, ?)
         ON CONFLICT (model_id, feature_id) DO NOTHING`, modelID, featureID)
	return err
}

func (s *SQLiteStore) InsertUnit(ctx context.Context, u model.Unit) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO units (mac, model_id) VALUES (?, ?)`, u.MAC, u.ModelID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) InsertDevice(ctx context.Context, d model.Device) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (id, notification_token) VALUES (?, ?)`, d.ID, d.NotificationToken)
	return err
}

func (s *SQLiteStore) PairDevice(ctx context.Context, p model.Pairing) error {
	primary := 0
	if p.Primary {
		primary = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_units (device_id, unit_id, is_primary) VALUES (?, ?, ?)`,
		p.DeviceID, p.UnitID, primary)
	return err
}
