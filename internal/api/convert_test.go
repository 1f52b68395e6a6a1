package api

import (
	"encoding/json"
	"testing"
)

func TestGammaMarketToModel(t *testing.T) {
	gm := GammaMarket{
		ID:           "mkt-1",
		Question:     "Will OpTic Texas win the CDL Major?",
		ConditionID:  "cond-1",
		Outcomes:     `["Yes","No"]`,
		ClobTokenIDs: `["tok-yes","tok-no"]`,
		StartDate:    "2025-06-01T00:00:00Z",
		EndDate:      "2025-06-03T00:00:00Z",
	}
	ev := GammaEvent{ID: "ev-1", Title: "CDL Major"}

	m := gm.ToModel(ev, "cod", 1700000000)

	if m.MarketID != "mkt-1" || m.ConditionID != "cond-1" {
		t.Errorf("identity = (%s, %s), want (mkt-1, cond-1)", m.MarketID, m.ConditionID)
	}
	if m.YesTokenID != "tok-yes" || m.NoTokenID != "tok-no" {
		t.Errorf("tokens = (%s, %s), want (tok-yes, tok-no)", m.YesTokenID, m.NoTokenID)
	}
	if len(m.Outcomes) != 2 || m.Outcomes[0] != "Yes" {
		t.Errorf("outcomes = %v, want [Yes No]", m.Outcomes)
	}
	if m.EventID != "ev-1" || m.Game != "cod" || m.DiscoveredAt != 1700000000 {
		t.Errorf("event/game/discovered = (%s, %s, %d)", m.EventID, m.Game, m.DiscoveredAt)
	}
}

func TestGammaMarketToModel_UnparseableLists(t *testing.T) {
	gm := GammaMarket{ID: "mkt-2", Outcomes: "not json", ClobTokenIDs: ""}
	m := gm.ToModel(GammaEvent{}, "cs2", 0)

	if m.Outcomes != nil {
		t.Errorf("outcomes = %v, want nil", m.Outcomes)
	}
	if m.YesTokenID != "" || m.NoTokenID != "" {
		t.Errorf("tokens = (%q, %q), want empty", m.YesTokenID, m.NoTokenID)
	}
}

func TestDataTradeToModel(t *testing.T) {
	dt := DataTrade{
		ID:        "t-1",
		Timestamp: 1700000100,
		Price:     0.45,
		Size:      25,
		Side:      "buy",
		Outcome:   "Yes",
	}

	tr := dt.ToModel("mkt-1")

	if tr.TradeID != "t-1" || tr.MarketID != "mkt-1" {
		t.Errorf("ids = (%s, %s)", tr.TradeID, tr.MarketID)
	}
	if tr.Side != "BUY" {
		t.Errorf("side = %s, want BUY", tr.Side)
	}
	if tr.Price != 0.45 || tr.Size != 25 || tr.Timestamp != 1700000100 {
		t.Errorf("fields = (%v, %v, %d)", tr.Price, tr.Size, tr.Timestamp)
	}
}

func TestDataTradeToModel_SyntheticID(t *testing.T) {
	dt := DataTrade{MatchTime: 500, Price: 0.5, Amount: 3}
	tr := dt.ToModel("mkt-1")

	if tr.TradeID == "" {
		t.Fatal("TradeID empty, want synthetic id")
	}
	// Same fields must synthesize the same id so refetching is idempotent.
	if again := dt.ToModel("mkt-1"); again.TradeID != tr.TradeID {
		t.Errorf("synthetic id unstable: %s vs %s", tr.TradeID, again.TradeID)
	}
	if tr.Size != 3 {
		t.Errorf("size = %v, want 3 (amount fallback)", tr.Size)
	}
	if tr.Timestamp != 500 {
		t.Errorf("timestamp = %d, want 500 (matchTime fallback)", tr.Timestamp)
	}
}

func TestFlexTimestamp_ISO(t *testing.T) {
	var p PriceHistoryPoint
	if err := unmarshal(`{"timestamp":"2024-01-15T12:00:00Z","price":0.5}`, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Time() != 1705320000 {
		t.Errorf("Time() = %d, want 1705320000", p.Time())
	}
}

func unmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}
