package store

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"clmmstrat/pkg/types"
)

func sampleEvents(positionID string) []types.LifecycleEvent {
	return []types.LifecycleEvent{
		{
			ID: positionID + "-1", Kind: types.EventPositionOpened, PositionID: positionID, PoolID: "pool-1", Timestamp: time.Unix(1000, 0).UTC(),
			Payload: types.PositionOpenedData{TickLower: -100, TickUpper: 100, Liquidity: "1000000", EntryPrice: decimal.NewFromInt(100), EntryValueUSD: decimal.NewFromInt(10000)},
		},
		{
			ID: positionID + "-2", Kind: types.EventFeesCollected, PositionID: positionID, PoolID: "pool-1", Timestamp: time.Unix(2000, 0).UTC(),
			Payload: types.FeesCollectedData{FeesUSD: decimal.NewFromInt(25)},
		},
	}
}

func TestSaveAndLoadEvents(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	events := sampleEvents("pos-1")
	if err := s.SaveEvents("pos-1", events); err != nil {
		t.Fatalf("SaveEvents: %v", err)
	}

	loaded, err := s.LoadEvents("pos-1")
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("len(loaded) = %d, want 2", len(loaded))
	}
	if loaded[0].Kind != types.EventPositionOpened || loaded[1].Kind != types.EventFeesCollected {
		t.Errorf("unexpected event kinds: %+v", loaded)
	}

	opened, ok := loaded[0].Payload.(types.PositionOpenedData)
	if !ok {
		t.Fatalf("opened payload decoded to %T, want PositionOpenedData", loaded[0].Payload)
	}
	if !opened.EntryValueUSD.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("EntryValueUSD = %s, want 10000", opened.EntryValueUSD)
	}
	fees, ok := loaded[1].Payload.(types.FeesCollectedData)
	if !ok {
		t.Fatalf("fees payload decoded to %T, want FeesCollectedData", loaded[1].Payload)
	}
	if !fees.FeesUSD.Equal(decimal.NewFromInt(25)) {
		t.Errorf("FeesUSD = %s, want 25", fees.FeesUSD)
	}
}

func TestLoadEventsMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	loaded, err := s.LoadEvents("nonexistent")
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil for missing position, got %+v", loaded)
	}
}

func TestSaveEventsOverwrites(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_ = s.SaveEvents("pos-1", sampleEvents("pos-1"))
	_ = s.SaveEvents("pos-1", sampleEvents("pos-1")[:1])

	loaded, err := s.LoadEvents("pos-1")
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(loaded) != 1 {
		t.Errorf("len(loaded) = %d, want 1 (latest save)", len(loaded))
	}
}

func TestLoadAllEventsAcrossPositions(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_ = s.SaveEvents("pos-1", sampleEvents("pos-1"))
	_ = s.SaveEvents("pos-2", sampleEvents("pos-2"))

	all, err := s.LoadAllEvents()
	if err != nil {
		t.Fatalf("LoadAllEvents: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}
	if len(all["pos-1"]) != 2 || len(all["pos-2"]) != 2 {
		t.Errorf("unexpected event counts: %+v", all)
	}
}
