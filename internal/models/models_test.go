package models

import "testing"

func TestMemberKeyRoundTrip(t *testing.T) {
	member := MemberKey("ord-7", ActionTriggerCancel)
	if member != "ord-7=TRIGGER_CANCEL" {
		t.Fatalf("member = %q", member)
	}
	id, action, err := SplitMember(member)
	if err != nil || id != "ord-7" || action != ActionTriggerCancel {
		t.Errorf("SplitMember = (%q, %q, %v)", id, action, err)
	}

	for _, bad := range []string{"", "=OPEN", "ord-7=", "ord-7"} {
		if _, _, err := SplitMember(bad); err == nil {
			t.Errorf("SplitMember(%q): expected error", bad)
		}
	}
}

func TestWatchAction(t *testing.T) {
	cases := []struct {
		status OrderStatus
		leg    IndicatorType
		want   Action
	}{
		{StatusPending, IndicatorOpen, ActionTriggerCancel},
		{StatusWaiting, IndicatorOpen, ActionOpen},
		{StatusWaiting, IndicatorTake, ActionClose},
		{StatusWaiting, IndicatorLoss, ActionClose},
		{StatusWaiting, IndicatorTrail, ActionClose},
	}
	for _, c := range cases {
		w := &WatchOrder{Status: c.status, IndicatorType: c.leg}
		if got := w.WatchAction(); got != c.want {
			t.Errorf("(%s, %s): got %s, want %s", c.status, c.leg, got, c.want)
		}
	}
}

func TestDecodeTick(t *testing.T) {
	tick, err := DecodeTick(`{"symbol": "XBT-USD", "price": 9845.5}`)
	if err != nil || tick.Symbol != "XBT-USD" || tick.Price != 9845.5 {
		t.Errorf("number price: got (%+v, %v)", tick, err)
	}
	tick, err = DecodeTick(`{"symbol": "XBT-USD", "price": "9845.5"}`)
	if err != nil || tick.Price != 9845.5 {
		t.Errorf("string price: got (%+v, %v)", tick, err)
	}
	if _, err := DecodeTick(`{"price": 1}`); err == nil {
		t.Error("expected error for missing symbol")
	}
	if _, err := DecodeTick(`{"symbol": "XBT-USD"}`); err == nil {
		t.Error("expected error for missing price")
	}
}

func TestIndicatorSignature(t *testing.T) {
	sig, values, err := IndicatorSignature(Indicator{
		"name":         "macd",
		"fastMaPeriod": 12.0,
		"slowMaPeriod": 26.0,
		"signalPeriod": 9.0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sig != "macd|12.0|26.0|9.0" {
		t.Errorf("sig = %q", sig)
	}
	if len(values) != 0 {
		t.Errorf("macd carries no value fields, got %v", values)
	}

	// string-typed config fields produce the same signature
	sig2, _, err := IndicatorSignature(Indicator{
		"name":         "macd",
		"fastMaPeriod": "12",
		"slowMaPeriod": "26",
		"signalPeriod": "9",
	})
	if err != nil || sig2 != sig {
		t.Errorf("string config: got (%q, %v), want %q", sig2, err, sig)
	}

	sig, values, err = IndicatorSignature(Indicator{
		"name":      "rsi",
		"period":    14.0,
		"overValue": 70.0,
	})
	if err != nil || sig != "rsi|14.0" {
		t.Errorf("rsi: got (%q, %v)", sig, err)
	}
	if len(values) != 1 || values[0] != 70 {
		t.Errorf("rsi values = %v, want [70]", values)
	}

	if _, _, err := IndicatorSignature(Indicator{"name": "vibes"}); err == nil {
		t.Error("expected error for unknown indicator")
	}
	if _, _, err := IndicatorSignature(Indicator{"name": "rsi"}); err == nil {
		t.Error("expected error for missing config field")
	}
	if _, _, err := IndicatorSignature(Indicator{"period": 14.0}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestDecodeOrderValidation(t *testing.T) {
	if _, err := DecodeOrder(`{"symbol": "XBT-USD"}`); err == nil {
		t.Error("expected error for missing id")
	}
	if _, err := DecodeOrder(`{"id": "ord-1"}`); err == nil {
		t.Error("expected error for missing symbol")
	}
	o, err := DecodeOrder(`{"id": "ord-1", "symbol": "XBT-USD", "active": 1, "indicators": [{"triggerPrice": "99.5"}]}`)
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := o.Indicators[0].Float("triggerPrice"); !ok || p != 99.5 {
		t.Errorf("coerced triggerPrice = (%v, %v)", p, ok)
	}
}
