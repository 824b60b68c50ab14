package model

import (
	"fmt"
	"time"
)

// App is a named, tagged container image tracked from registry events.
type App struct {
	ID           int64     `json:"id"`
	Repo         string    `json:"repo"`
	Tag          string    `json:"tag"`
	Digest       string    `json:"digest"`
	ReleasedAt   time.Time `json:"released_at"`
	LatestUpdate time.Time `json:"latest_update"`
	Environment  []string  `json:"environment,omitempty"`
	Ports        []string  `json:"ports,omitempty"`
	Volumes      []string  `json:"volumes,omitempty"`
}

// ImageRef returns the pullable image reference for the app on the given
// registry host.
func (a App) ImageRef(registry string) string {
	return fmt.Sprintf("%s/%s:%s", registry, a.Repo, a.Tag)
}

// Feature is a distributable capability backed by exactly one App.
// Released is the catalog-wide release gate flipped by the release publisher;
// it is unrelated to any per-unit installation flag.
type Feature struct {
	ID          int64     `json:"id"`
	AppID       int64     `json:"app_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Image       []byte    `json:"-"`
	Released    bool      `json:"released"`
	ReleaseAt   time.Time `json:"release_at"`
}

// VehicleModel is static reference data identifying a vehicle model.
type VehicleModel struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Unit is a physical vehicle head unit (TCU), authenticated by MAC address.
type Unit struct {
	ID      int64  `json:"id"`
	MAC     string `json:"mac"`
	ModelID int64  `json:"model_id"`
}

// Device is a mobile client, optionally carrying a push notification token.
type Device struct {
	ID                string `json:"id"`
	NotificationToken string `json:"notification_token,omitempty"`
}

// Pairing links a device to a unit. Primary marks the active pairing used to
// resolve the device's unit.
type Pairing struct {
	DeviceID string `json:"device_id"`
	UnitID   int64  `json:"unit_id"`
	Primary  bool   `json:"primary"`
}

// Installation is the per-(unit, feature) record tracking desired and actual
// state. Absence of a record means "not installed". Active flips true once the
// unit confirmed the feature is running; UpToDate once it confirmed it runs
// the latest catalog revision. Removing marks a pending soft uninstall that
// the unit still has to acknowledge.
type Installation struct {
	UnitID    int64 `json:"unit_id"`
	FeatureID int64 `json:"feature_id"`
	Active    bool  `json:"active"`
	UpToDate  bool  `json:"up_to_date"`
	Removing  bool  `json:"removing"`
}

// Settled reports whether the record needs no action from the unit.
func (i Installation) Settled() bool {
	return i.Active && i.UpToDate && !i.Removing
}
