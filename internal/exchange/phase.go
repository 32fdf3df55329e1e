package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"koon/internal/docstore"
	"koon/pkg/types"
)

const (
	collectionSettings = "settings"
	settingsDocID      = "material_exchange"
)

// Phase returns the current exchange phase. The settings document is
// created lazily: until someone flips the switch, the platform is in its
// donation-collection phase.
func (s *Service) Phase(ctx context.Context) (*types.ExchangePhaseSetting, error) {
	doc, err := s.store.Get(ctx, collectionSettings, settingsDocID)
	if errors.Is(err, docstore.ErrNotFound) {
		return &types.ExchangePhaseSetting{Phase: types.PhaseDonation}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange phase setting: %w", err)
	}

	var setting types.ExchangePhaseSetting
	if err := json.Unmarshal(doc.Data, &setting); err != nil {
		return nil, fmt.Errorf("decode exchange phase setting: %w", err)
	}
	if !setting.Phase.Valid() {
		setting.Phase = types.PhaseDonation
	}

	return &setting, nil
}

// SetPhase flips the process-wide donation/exchange switch. It stamps
// lastUpdated and nothing else: existing reservations and statuses are
// untouched by a phase change.
func (s *Service) SetPhase(ctx context.Context, phase types.ExchangePhase) (*types.ExchangePhaseSetting, error) {
	if !phase.Valid() {
		return nil, types.ErrSettingInvalid
	}

	now := s.now()
	err := s.store.Upsert(ctx, collectionSettings, settingsDocID, map[string]any{
		"phase":       phase,
		"lastUpdated": now,
	}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to set exchange phase: %w", err)
	}

	return &types.ExchangePhaseSetting{Phase: phase, LastUpdated: &now}, nil
}
