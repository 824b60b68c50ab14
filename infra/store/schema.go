package store

const schema = `
CREATE TABLE IF NOT EXISTS apps (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    repo TEXT NOT NULL,
    tag TEXT NOT NULL,
    digest TEXT NOT NULL DEFAULT '',
    released_at INTEGER NOT NULL,
    latest_update INTEGER NOT NULL,
    environment TEXT NOT NULL DEFAULT '[]',
    ports TEXT NOT NULL DEFAULT '[]',
    volumes TEXT NOT NULL DEFAULT '[]',
    UNIQUE (repo, tag)
);
CREATE TABLE IF NOT EXISTS features (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    app_id INTEGER NOT NULL REFERENCES apps(id),
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    image BLOB,
    released INTEGER NOT NULL DEFAULT 0,
    release_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS models (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS model_features (
    model_id INTEGER NOT NULL REFERENCES models(id),
    feature_id INTEGER NOT NULL REFERENCES features(id),
    PRIMARY KEY (model_id, feature_id)
);
CREATE TABLE IF NOT EXISTS units (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    mac TEXT NOT NULL UNIQUE,
    model_id INTEGER NOT NULL REFERENCES models(id)
);
CREATE TABLE IF NOT EXISTS devices (
    id TEXT PRIMARY KEY,
    notification_token TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS device_units (
    device_id TEXT NOT NULL REFERENCES devices(id),
    unit_id INTEGER NOT NULL REFERENCES units(id),
    is_primary INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (device_id, unit_id)
);
CREATE TABLE IF NOT EXISTS unit_features (
    unit_id INTEGER NOT NULL REFERENCES units(id),
    feature_id INTEGER NOT NULL REFERENCES features(id),
    active INTEGER NOT NULL DEFAULT 0,
    up_to_date INTEGER NOT NULL DEFAULT 0,
    removing INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (unit_id, feature_id)
);
`
