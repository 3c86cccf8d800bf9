package prefs

import (
	"context"
	"encoding/json"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/errors"
	"codeberg.org/mutker/vehiclectl/internal/heating"
	"codeberg.org/mutker/vehiclectl/internal/logger"
)

const (
	keyHeating   = "heating"
	keyDriveMode = "drive_mode"
)

type store struct {
	repo Repository
	log  logger.Logger
}

// No-op implementation
type noopStore struct{}

// NewStore opens the preference database, or returns a no-op store when
// preferences are disabled.
func NewStore(cfg Config, log logger.Logger) (Store, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Preference store disabled, using no-op store")
		return &noopStore{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create preference repository")
		return nil, err
	}

	return NewStoreWithRepository(repo, log), nil
}

// NewStoreWithRepository wraps an existing repository. A nil log uses the
// package default.
func NewStoreWithRepository(repo Repository, log logger.Logger) Store {
	if log == nil {
		log = logger.New("prefs")
	}
	return &store{repo: repo, log: log}
}

func (s *store) LoadHeating(ctx context.Context) (heating.Settings, bool, error) {
	errFactory := errors.New()

	raw, ok, err := s.repo.Get(ctx, keyHeating)
	if err != nil || !ok {
		return heating.Settings{}, false, err
	}

	settings := heating.DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return heating.Settings{}, false, errFactory.Wrap(ErrInvalidRecord, err).WithMessage("heating settings")
	}
	if err := settings.Validate(); err != nil {
		return heating.Settings{}, false, errFactory.Wrap(ErrInvalidRecord, err)
	}

	return settings, true, nil
}

func (s *store) SaveHeating(ctx context.Context, settings heating.Settings) error {
	errFactory := errors.New()

	if err := settings.Validate(); err != nil {
		return errFactory.Wrap(ErrInvalidRecord, err)
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return errFactory.Wrap(ErrInvalidRecord, err)
	}
	if err := s.repo.Put(ctx, keyHeating, string(data)); err != nil {
		return err
	}
	s.log.Debug().RawJSON("settings", data).Msg("Heating settings saved")

	return nil
}

func (s *store) LoadDriveMode(ctx context.Context) (catalog.DriveMode, bool, error) {
	raw, ok, err := s.repo.Get(ctx, keyDriveMode)
	if err != nil || !ok {
		return catalog.ModeUnknown, false, err
	}

	m := catalog.ModeFromKey(raw)
	if !m.IsKnown() {
		s.log.Warn().Str("value", raw).Msg("Ignoring unknown saved drive mode")
		return catalog.ModeUnknown, false, nil
	}

	return m, true, nil
}

func (s *store) SaveDriveMode(ctx context.Context, m catalog.DriveMode) error {
	if !m.IsKnown() {
		return errors.New().WithData(ErrInvalidRecord, m.Key())
	}
	return s.repo.Put(ctx, keyDriveMode, m.Key())
}

func (s *store) Close() error {
	return s.repo.Close()
}

func (*store) IsEnabled() bool {
	return true
}

// No-op implementation
func (*noopStore) LoadHeating(_ context.Context) (heating.Settings, bool, error) {
	return heating.Settings{}, false, nil
}

func (*noopStore) SaveHeating(_ context.Context, _ heating.Settings) error {
	return nil
}

func (*noopStore) LoadDriveMode(_ context.Context) (catalog.DriveMode, bool, error) {
	return catalog.ModeUnknown, false, nil
}

func (*noopStore) SaveDriveMode(_ context.Context, _ catalog.DriveMode) error {
	return nil
}

func (*noopStore) Close() error {
	return nil
}

func (*noopStore) IsEnabled() bool {
	return false
}
