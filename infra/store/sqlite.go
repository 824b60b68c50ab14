// Package store provides the SQLite implementation of the catalog stores.
// Every per-record mutation is a single conditional statement so concurrent
// request handlers and the release sweep cannot produce lost updates on a
// (unit, feature) key.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vehicleplus/sums/core/catalog"
	"github.com/vehicleplus/sums/core/model"
)

// Config defines the SQLite store settings.
type Config struct {
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Path == "" {
		c.Path = "sums.db"
	}
}

// SQLiteStore implements catalog.Store on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func encodeList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeList(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var v []string
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil
	}
	return v
}

func scanApp(row interface{ Scan(...any) error }) (model.App, error) {
	var (
		a                 model.App
		released, updated int64
		env, ports, vols  string
	)
	err := row.Scan(&a.ID, &a.Repo, &a.Tag, &a.Digest, &released, &updated, &env, &ports, &vols)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.App{}, catalog.ErrNotFound
		}
		return model.App{}, err
	}
	a.ReleasedAt = time.Unix(released, 0).UTC()
	a.LatestUpdate = time.Unix(updated, 0).UTC()
	a.Environment = decodeList(env)
	a.Ports = decodeList(ports)
	a.Volumes = decodeList(vols)
	return a, nil
}

const appColumns = `id, repo, tag, digest, released_at, latest_update, environment, ports, volumes`

func (s *SQLiteStore) AppByID(ctx context.Context, id int64) (model.App, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+appColumns+` FROM apps WHERE id = ?`, id)
	return scanApp(row)
}

func (s *SQLiteStore) AppByRepoTag(ctx context.Context, repo, tag string) (model.App, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+appColumns+` FROM apps WHERE repo = ? AND tag = ?`, repo, tag)
	return scanApp(row)
}

func (s *SQLiteStore) InsertApp(ctx context.Context, app model.App) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO apps (repo, tag, digest, released_at, latest_update, environment, ports, volumes)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		app.Repo, app.Tag, app.Digest, app.ReleasedAt.Unix(), app.LatestUpdate.Unix(),
		encodeList(app.Environment), encodeList(app.Ports), encodeList(app.Volumes))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) TouchApp(ctx context.Context, repo, tag string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE apps SET latest_update = ? WHERE repo = ? AND tag = ?`, at.Unix(), repo, tag)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func scanFeature(row interface{ Scan(...any) error }) (model.Feature, error) {
	var (
		f         model.Feature
		released  int64
		releaseAt int64
	)
	err := row.Scan(&f.ID, &f.AppID, &f.Name, &f.Description, &f.Image, &released, &releaseAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Feature{}, catalog.ErrNotFound
		}
		return model.Feature{}, err
	}
	f.Released = released != 0
	f.ReleaseAt = time.Unix(releaseAt, 0).UTC()
	return f, nil
}

const featureColumns = `id, app_id, name, description, image, released, release_at`

func (s *SQLiteStore) FeatureByID(ctx context.Context, id int64) (model.Feature, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+featureColumns+` FROM features WHERE id = ?`, id)
	return scanFeature(row)
}

func (s *SQLiteStore) FeaturesForModel(ctx context.Context, modelID int64) ([]model.Feature, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, f.app_id, f.name, f.description, f.image, f.released, f.release_at
         FROM features f
         JOIN model_features mf ON mf.feature_id = f.id
         WHERE mf.model_id = ?
         ORDER BY f.id`, modelID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) IsCompatible(ctx context.Context, modelID, featureID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM model_features WHERE model_id = ? AND feature_id = ?`, modelID, featureID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) DueFeatures(ctx context.Context, now time.Time) ([]model.Feature, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+featureColumns+` FROM features WHERE released = 0 AND release_at <= ? ORDER BY id`,
		now.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) MarkFeatureReleased(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE features SET released = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) UnitByMAC(ctx context.Context, mac string) (model.Unit, error) {
	var u model.Unit
	err := s.db.QueryRowContext(ctx,
		`SELECT id, mac, model_id FROM units WHERE mac = ?`, mac).Scan(&u.ID, &u.MAC, &u.ModelID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Unit{}, catalog.ErrNotFound
	}
	if err != nil {
		return model.Unit{}, err
	}
	return u, nil
}

func (s *SQLiteStore) DeviceByID(ctx context.Context, id string) (model.Device, error) {
	var d model.Device
	err := s.db.QueryRowContext(ctx,
		`SELECT id, notification_token FROM devices WHERE id = ?`, id).Scan(&d.ID, &d.NotificationToken)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Device{}, catalog.ErrNotFound
	}
	if err != nil {
		return model.Device{}, err
	}
	return d, nil
}

func (s *SQLiteStore) UnitForDevice(ctx context.Context, deviceID string) (model.Unit, error) {
	var u model.Unit
	err := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.mac, u.model_id
         FROM units u
         JOIN device_units du ON du.unit_id = u.id
         WHERE du.device_id = ? AND du.is_primary = 1`, deviceID).Scan(&u.ID, &u.MAC, &u.ModelID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Unit{}, catalog.ErrNotFound
	}
	if err != nil {
		return model.Unit{}, err
	}
	return u, nil
}

func (s *SQLiteStore) ModelsForFeature(ctx context.Context, featureID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model_id FROM model_features WHERE feature_id = ? ORDER BY model_id`, featureID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (s *SQLiteStore) UnitsByModels(ctx context.Context, modelIDs []int64) ([]model.Unit, error) {
	if len(modelIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(modelIDs))
	for i, id := range modelIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mac, model_id FROM units WHERE model_id IN (`+placeholders(len(modelIDs))+`) ORDER BY id`,
		args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Unit
	for rows.Next() {
		var u model.Unit
		if err := rows.Scan(&u.ID, &u.MAC, &u.ModelID); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) DevicesForUnits(ctx context.Context, unitIDs []int64) ([]model.Device, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(unitIDs))
	for i, id := range unitIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT d.id, d.notification_token
         FROM devices d
         JOIN device_units du ON du.device_id = d.id
         WHERE du.unit_id IN (`+placeholders(len(unitIDs))+`)
         ORDER BY d.id`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Device
	for rows.Next() {
		var d model.Device
		if err := rows.Scan(&d.ID, &d.NotificationToken); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) InstallationsForUnit(ctx context.Context, unitID int64) ([]model.Installation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_id, feature_id, active, up_to_date, removing
         FROM unit_features WHERE unit_id = ? ORDER BY feature_id`, unitID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Installation
	for rows.Next() {
		var inst model.Installation
		if err := rows.Scan(&inst.UnitID, &inst.FeatureID, &inst.Active, &inst.UpToDate, &inst.Removing); err != nil {
			return nil, err
		}
		res = append(res, inst)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) Installation(ctx context.Context, unitID, featureID int64) (model.Installation, error) {
	var inst model.Installation
	err := s.db.QueryRowContext(ctx,
		`SELECT unit_id, feature_id, active, up_to_date, removing
         FROM unit_features WHERE unit_id = ? AND feature_id = ?`, unitID, featureID).
		Scan(&inst.UnitID, &inst.FeatureID, &inst.Active, &inst.UpToDate, &inst.Removing)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Installation{}, catalog.ErrNotFound
	}
	if err != nil {
		return model.Installation{}, err
	}
	return inst, nil
}

func (s *SQLiteStore) CreateInstallation(ctx context.Context, unitID, featureID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO unit_features (unit_id, feature_id) VALUES (?, ?)
         ON CONFLICT (unit_id, feature_id) DO NOTHING`, unitID, featureID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) ReinstateInstallation(ctx context.Context, unitID, featureID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE unit_features SET active = 0, up_to_date = 0, removing = 0
         WHERE unit_id = ? AND feature_id = ? AND removing = 1`, unitID, featureID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) RequestRemoval(ctx context.Context, unitID, featureID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE unit_features SET removing = 1
         WHERE unit_id = ? AND feature_id = ? AND removing = 0`, unitID, featureID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	// Distinguish "already marked" from "no record at all".
	if _, err := s.Installation(ctx, unitID, featureID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *SQLiteStore) AckInstall(ctx context.Context, unitID, featureID int64) error {
	return s.ackUpdateStmt(ctx,
		`UPDATE unit_features SET active = 1, up_to_date = 1 WHERE unit_id = ? AND feature_id = ?`,
		unitID, featureID)
}

func (s *SQLiteStore) AckUpdate(ctx context.Context, unitID, featureID int64) error {
	return s.ackUpdateStmt(ctx,
		`UPDATE unit_features SET up_to_date = 1 WHERE unit_id = ? AND feature_id = ?`,
		unitID, featureID)
}

func (s *SQLiteStore) AckRemoval(ctx context.Context, unitID, featureID int64) error {
	return s.ackUpdateStmt(ctx,
		`DELETE FROM unit_features WHERE unit_id = ? AND feature_id = ? AND removing = 1`,
		unitID, featureID)
}

func (s *SQLiteStore) ackUpdateStmt(ctx context.Context, stmt string, unitID, featureID int64) error {
	res, err := s.db.ExecContext(ctx, stmt, unitID, featureID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) MarkStaleByApp(ctx context.Context, appID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE unit_features SET up_to_date = 0
         WHERE up_to_date = 1
           AND feature_id IN (SELECT id FROM features WHERE app_id = ?)`, appID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
