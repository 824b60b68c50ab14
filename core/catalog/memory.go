package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vehicleplus/sums/core/model"
)

type instKey struct {
	unit    int64
	feature int64
}

// MemoryStore is a mutex-guarded in-memory Store used by tests and local
// development.
type MemoryStore struct {
	mu        sync.RWMutex
	nextAppID int64
	apps      map[int64]model.App
	features  map[int64]model.Feature
	edges     map[int64][]int64 // modelID -> featureIDs
	units     map[int64]model.Unit
	devices   map[string]model.Device
	pairings  []model.Pairing
	installs  map[instKey]model.Installation
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextAppID: 1,
		apps:      map[int64]model.App{},
		features:  map[int64]model.Feature{},
		edges:     map[int64][]int64{},
		units:     map[int64]model.Unit{},
		devices:   map[string]model.Device{},
		installs:  map[instKey]model.Installation{},
	}
}

// AddFeature seeds a feature into the catalog.
func (s *MemoryStore) AddFeature(f model.Feature) {
	s.mu.Lock()
	s.features[f.ID] = f
	s.mu.Unlock()
}

// AddCompatibility seeds a model-feature edge.
func (s *MemoryStore) AddCompatibility(modelID, featureID int64) {
	s.mu.Lock()
	s.edges[modelID] = append(s.edges[modelID], featureID)
	s.mu.Unlock()
}

// AddUnit seeds a vehicle unit.
func (s *MemoryStore) AddUnit(u model.Unit) {
	s.mu.Lock()
	s.units[u.ID] = u
	s.mu.Unlock()
}

// AddDevice seeds a mobile device.
func (s *MemoryStore) AddDevice(d model.Device) {
	s.mu.Lock()
	s.devices[d.ID] = d
	s.mu.Unlock()
}

// Pair seeds a device-unit pairing.
func (s *MemoryStore) Pair(p model.Pairing) {
	s.mu.Lock()
	s.pairings = append(s.pairings, p)
	s.mu.Unlock()
}

func (s *MemoryStore) AppByID(_ context.Context, id int64) (model.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[id]
	if !ok {
		return model.App{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) AppByRepoTag(_ context.Context, repo, tag string) (model.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.apps {
		if a.Repo == repo && a.Tag == tag {
			return a, nil
		}
	}
	return model.App{}, ErrNotFound
}

func (s *MemoryStore) InsertApp(_ context.Context, app model.App) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app.ID = s.nextAppID
	s.nextAppID++
	s.apps[app.ID] = app
	return app.ID, nil
}

func (s *MemoryStore) TouchApp(_ context.Context, repo, tag string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.apps {
		if a.Repo == repo && a.Tag == tag {
			a.LatestUpdate = at
			s.apps[id] = a
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) FeatureByID(_ context.Context, id int64) (model.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.features[id]
	if !ok {
		return model.Feature{}, ErrNotFound
	}
	return f, nil
}

func (s *MemoryStore) FeaturesForModel(_ context.Context, modelID int64) ([]model.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Feature
	for _, fid := range s.edges[modelID] {
		if f, ok := s.features[fid]; ok {
			res = append(res, f)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) IsCompatible(_ context.Context, modelID, featureID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fid := range s.edges[modelID] {
		if fid == featureID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) DueFeatures(_ context.Context, now time.Time) ([]model.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Feature
	for _, f := range s.features {
		if !f.Released && !f.ReleaseAt.After(now) {
			res = append(res, f)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) MarkFeatureReleased(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.features[id]
	if !ok {
		return ErrNotFound
	}
	f.Released = true
	s.features[id] = f
	return nil
}

func (s *MemoryStore) UnitByMAC(_ context.Context, mac string) (model.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.units {
		if u.MAC == mac {
			return u, nil
		}
	}
	return model.Unit{}, ErrNotFound
}

func (s *MemoryStore) DeviceByID(_ context.Context, id string) (model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[id]
	if !ok {
		return model.Device{}, ErrNotFound
	}
	return d, nil
}

func (s *MemoryStore) UnitForDevice(_ context.Context, deviceID string) (model.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pairings {
		if p.DeviceID == deviceID && p.Primary {
			if u, ok := s.units[p.UnitID]; ok {
				return u, nil
			}
		}
	}
	return model.Unit{}, ErrNotFound
}

func (s *MemoryStore) ModelsForFeature(_ context.Context, featureID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []int64
	for modelID, fids := range s.edges {
		for _, fid := range fids {
			if fid == featureID {
				res = append(res, modelID)
				break
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res, nil
}

func (s *MemoryStore) UnitsByModels(_ context.Context, modelIDs []int64) ([]model.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Unit
	for _, u := range s.units {
		for _, mid := range modelIDs {
			if u.ModelID == mid {
				res = append(res, u)
				break
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) DevicesForUnits(_ context.Context, unitIDs []int64) ([]model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := map[string]bool{}
	var res []model.Device
	for _, p := range s.pairings {
		for _, uid := range unitIDs {
			if p.UnitID == uid && !seen[p.DeviceID] {
				if d, ok := s.devices[p.DeviceID]; ok {
					seen[d.ID] = true
					res = append(res, d)
				}
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) InstallationsForUnit(_ context.Context, unitID int64) ([]model.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Installation
	for k, inst := range s.installs {
		if k.unit == unitID {
			res = append(res, inst)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].FeatureID < res[j].FeatureID })
	return res, nil
}

func (s *MemoryStore) Installation(_ context.Context, unitID, featureID int64) (model.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.installs[instKey{unitID, featureID}]
	if !ok {
		return model.Installation{}, ErrNotFound
	}
	return inst, nil
}

func (s *MemoryStore) CreateInstallation(_ context.Context, unitID, featureID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := instKey{unitID, featureID}
	if _, ok := s.installs[k]; ok {
		return false, nil
	}
	s.installs[k] = model.Installation{UnitID: unitID, FeatureID: featureID}
	return true, nil
}

func (s *MemoryStore) ReinstateInstallation(_ context.Context, unitID, featureID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := instKey{unitID, featureID}
	inst, ok := s.installs[k]
	if !ok || !inst.Removing {
		return false, nil
	}
	s.installs[k] = model.Installation{UnitID: unitID, FeatureID: featureID}
	return true, nil
}

func (s *MemoryStore) RequestRemoval(_ context.Context, unitID, featureID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := instKey{unitID, featureID}
	inst, ok := s.installs[k]
	if !ok {
		return false, ErrNotFound
	}
	if inst.Removing {
		return false, nil
	}
	inst.Removing = true
	s.installs[k] = inst
	return true, nil
}

func (s *MemoryStore) AckInstall(_ context.Context, unitID, featureID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := instKey{unitID, featureID}
	inst, ok := s.installs[k]
	if !ok {
		return ErrNotFound
	}
	inst.Active = true
	inst.UpToDate = true
	s.installs[k] = inst
	return nil
}

func (s *MemoryStore) AckUpdate(_ context.Context, unitID, featureID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := instKey{unitID, featureID}
	inst, ok := s.installs[k]
	if !ok {
		return ErrNotFound
	}
	inst.UpToDate = true
	s.installs[k] = inst
	return nil
}

func (s *MemoryStore) AckRemoval(_ context.Context, unitID, featureID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := instKey{unitID, featureID}
	inst, ok := s.installs[k]
	if !ok || !inst.Removing {
		return ErrNotFound
	}
	delete(s.installs, k)
	return nil
}

func (s *MemoryStore) MarkStaleByApp(_ context.Context, appID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, inst := range s.installs {
		f, ok := s.features[inst.FeatureID]
		if !ok || f.AppID != appID {
			continue
		}
		if inst.UpToDate {
			inst.UpToDate = false
			s.installs[k] = inst
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
