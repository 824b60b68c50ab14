package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vehicleplus/sums/core/catalog"
	"github.com/vehicleplus/sums/core/model"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sums.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}

func TestSQLiteAppRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	id, err := s.InsertApp(ctx, model.App{
		Repo:        "navigation",
		Tag:         "1.0",
		Digest:      "sha256:abc",
		ReleasedAt:  at,
		Environment: []string{"MODE=prod"},
		Ports:       []string{"8080:8080"},
		Volumes:     []string{"/data:/data"},
	})
	if err != nil {
		t.Fatalf("insert app: %v", err)
	}

	a, err := s.AppByID(ctx, id)
	if err != nil {
		t.Fatalf("app by id: %v", err)
	}
	if a.Repo != "navigation" || a.Digest != "sha256:abc" || !a.ReleasedAt.Equal(at) {
		t.Fatalf("unexpected app %#v", a)
	}
	if len(a.Environment) != 1 || len(a.Ports) != 1 || len(a.Volumes) != 1 {
		t.Fatalf("lists lost in round trip: %#v", a)
	}

	if _, err := s.AppByRepoTag(ctx, "navigation", "1.0"); err != nil {
		t.Fatalf("app by repo+tag: %v", err)
	}
	if _, err := s.AppByRepoTag(ctx, "navigation", "2.0"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("unknown tag: %v", err)
	}

	later := at.Add(time.Hour)
	if err := s.TouchApp(ctx, "navigation", "1.0", later); err != nil {
		t.Fatalf("touch: %v", err)
	}
	a, _ = s.AppByID(ctx, id)
	if !a.LatestUpdate.Equal(later) {
		t.Fatalf("latest update not persisted: %#v", a)
	}
	if err := s.TouchApp(ctx, "ghost", "1.0", later); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("touch unknown app: %v", err)
	}
}

func TestSQLiteCompatibilityMatrix(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	appID, _ := s.InsertApp(ctx, model.App{Repo: "navigation", Tag: "1.0"})
	featureID, err := s.InsertFeature(ctx, model.Feature{
		AppID:       appID,
		Name:        "park-assist",
		Description: "parks itself",
		Image:       []byte{0x89, 'P', 'N', 'G'},
		ReleaseAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("insert feature: %v", err)
	}
	modelID, err := s.InsertModel(ctx, "sedan-mk2")
	if err != nil {
		t.Fatalf("insert model: %v", err)
	}
	if err := s.AddCompatibility(ctx, modelID, featureID); err != nil {
		t.Fatalf("add compatibility: %v", err)
	}

	f, err := s.FeatureByID(ctx, featureID)
	if err != nil || f.Name != "park-assist" || len(f.Image) != 4 {
		t.Fatalf("feature round trip: %v %#v", err, f)
	}

	feats, err := s.FeaturesForModel(ctx, modelID)
	if err != nil || len(feats) != 1 || feats[0].ID != featureID {
		t.Fatalf("features for model: %v %#v", err, feats)
	}
	ok, _ := s.IsCompatible(ctx, modelID, featureID)
	if !ok {
		t.Fatalf("expected compatible")
	}
	ok, _ = s.IsCompatible(ctx, modelID+1, featureID)
	if ok {
		t.Fatalf("expected incompatible")
	}

	models, err := s.ModelsForFeature(ctx, featureID)
	if err != nil || len(models) != 1 || models[0] != modelID {
		t.Fatalf("models for feature: %v %#v", err, models)
	}
}

func TestSQLiteReleaseGate(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now()

	appID, _ := s.InsertApp(ctx, model.App{Repo: "navigation", Tag: "1.0"})
	dueID, _ := s.InsertFeature(ctx, model.Feature{AppID: appID, Name: "due", ReleaseAt: now.Add(-time.Hour)})
	_, _ = s.InsertFeature(ctx, model.Feature{AppID: appID, Name: "future", ReleaseAt: now.Add(time.Hour)})

	due, err := s.DueFeatures(ctx, now)
	if err != nil || len(due) != 1 || due[0].ID != dueID {
		t.Fatalf("due features: %v %#v", err, due)
	}
	if err := s.MarkFeatureReleased(ctx, dueID); err != nil {
		t.Fatalf("mark released: %v", err)
	}
	due, _ = s.DueFeatures(ctx, now)
	if len(due) != 0 {
		t.Fatalf("released feature still due")
	}
	if err := s.MarkFeatureReleased(ctx, 9999); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("mark unknown feature: %v", err)
	}
}

func TestSQLiteFleet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	modelID, _ := s.InsertModel(ctx, "sedan-mk2")
	unitID, err := s.InsertUnit(ctx, model.Unit{MAC: "AA:BB:CC", ModelID: modelID})
	if err != nil {
		t.Fatalf("insert unit: %v", err)
	}
	if err := s.InsertDevice(ctx, model.Device{ID: "d1", NotificationToken: "tok1"}); err != nil {
		t.Fatalf("insert device: %v", err)
	}
	if err := s.PairDevice(ctx, model.Pairing{DeviceID: "d1", UnitID: unitID, Primary: true}); err != nil {
		t.Fatalf("pair: %v", err)
	}
	_ = s.InsertDevice(ctx, model.Device{ID: "d2"})
	_ = s.PairDevice(ctx, model.Pairing{DeviceID: "d2", UnitID: unitID, Primary: false})

	u, err := s.UnitByMAC(ctx, "AA:BB:CC")
	if err != nil || u.ID != unitID || u.ModelID != modelID {
		t.Fatalf("unit by mac: %v %#v", err, u)
	}
	if _, err := s.UnitByMAC(ctx, "FF:FF:FF"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("unknown mac: %v", err)
	}

	d, err := s.DeviceByID(ctx, "d1")
	if err != nil || d.NotificationToken != "tok1" {
		t.Fatalf("device by id: %v %#v", err, d)
	}

	u, err = s.UnitForDevice(ctx, "d1")
	if err != nil || u.ID != unitID {
		t.Fatalf("unit for device: %v %#v", err, u)
	}
	if _, err := s.UnitForDevice(ctx, "d2"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("non-primary pairing resolved: %v", err)
	}

	units, err := s.UnitsByModels(ctx, []int64{modelID})
	if err != nil || len(units) != 1 {
		t.Fatalf("units by models: %v %#v", err, units)
	}
	devices, err := s.DevicesForUnits(ctx, []int64{unitID})
	if err != nil || len(devices) != 2 {
		t.Fatalf("devices for units: %v %#v", err, devices)
	}
	if devices, _ := s.DevicesForUnits(ctx, nil); devices != nil {
		t.Fatalf("empty input should yield nil")
	}
}

func TestSQLiteInstallationLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	modelID, _ := s.InsertModel(ctx, "sedan-mk2")
	unitID, _ := s.InsertUnit(ctx, model.Unit{MAC: "AA:BB:CC", ModelID: modelID})
	appID, _ := s.InsertApp(ctx, model.App{Repo: "navigation", Tag: "1.0"})
	featureID, _ := s.InsertFeature(ctx, model.Feature{AppID: appID, Name: "navigation", ReleaseAt: time.Now()})

	created, err := s.CreateInstallation(ctx, unitID, featureID)
	if err != nil || !created {
		t.Fatalf("create: %v created=%v", err, created)
	}
	created, err = s.CreateInstallation(ctx, unitID, featureID)
	if err != nil || created {
		t.Fatalf("duplicate create: %v created=%v", err, created)
	}

	inst, err := s.Installation(ctx, unitID, featureID)
	if err != nil || inst.Active || inst.UpToDate || inst.Removing {
		t.Fatalf("fresh record: %v %#v", err, inst)
	}

	if err := s.AckInstall(ctx, unitID, featureID); err != nil {
		t.Fatalf("ack install: %v", err)
	}
	inst, _ = s.Installation(ctx, unitID, featureID)
	if !inst.Settled() {
		t.Fatalf("expected settled, got %#v", inst)
	}

	n, err := s.MarkStaleByApp(ctx, appID)
	if err != nil || n != 1 {
		t.Fatalf("mark stale: %v n=%d", err, n)
	}
	inst, _ = s.Installation(ctx, unitID, featureID)
	if inst.UpToDate {
		t.Fatalf("record should be stale")
	}
	if err := s.AckUpdate(ctx, unitID, featureID); err != nil {
		t.Fatalf("ack update: %v", err)
	}
	inst, _ = s.Installation(ctx, unitID, featureID)
	if !inst.UpToDate {
		t.Fatalf("update ack must restore currency")
	}

	requested, err := s.RequestRemoval(ctx, unitID, featureID)
	if err != nil || !requested {
		t.Fatalf("request removal: %v requested=%v", err, requested)
	}
	requested, err = s.RequestRemoval(ctx, unitID, featureID)
	if err != nil || requested {
		t.Fatalf("repeat removal request: %v requested=%v", err, requested)
	}
	if _, err := s.RequestRemoval(ctx, unitID, featureID+1); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("removal of absent record: %v", err)
	}

	ok, err := s.ReinstateInstallation(ctx, unitID, featureID)
	if err != nil || !ok {
		t.Fatalf("reinstate: %v ok=%v", err, ok)
	}
	inst, _ = s.Installation(ctx, unitID, featureID)
	if inst.Active || inst.UpToDate || inst.Removing {
		t.Fatalf("reinstated record should be a fresh pending install: %#v", inst)
	}

	_, _ = s.RequestRemoval(ctx, unitID, featureID)
	if err := s.AckRemoval(ctx, unitID, featureID); err != nil {
		t.Fatalf("ack removal: %v", err)
	}
	if _, err := s.Installation(ctx, unitID, featureID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("record should be deleted")
	}
	if err := s.AckRemoval(ctx, unitID, featureID); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("removal ack without record: %v", err)
	}

	insts, err := s.InstallationsForUnit(ctx, unitID)
	if err != nil || len(insts) != 0 {
		t.Fatalf("installations for unit: %v %#v", err, insts)
	}
}
