package capacity

import (
	"testing"

	"github.com/BigKAA/artStore-sub005/pkg/model"
)

func TestDeriveRW(t *testing.T) {
	total := int64(2000) * gib // 2000 GiB, well above the absolute floors
	th := Derive(model.ModeRW, total)

	if want := pct(total, 0.15); th.WarningFree != want {
		t.Errorf("WarningFree = %d, want %d", th.WarningFree, want)
	}
	if want := pct(total, 0.08); th.CriticalFree != want {
		t.Errorf("CriticalFree = %d, want %d", th.CriticalFree, want)
	}
	if want := pct(total, 0.02); th.FullFree != want {
		t.Errorf("FullFree = %d, want %d", th.FullFree, want)
	}
}

func TestDeriveRWSmallSEUsesAbsoluteFloor(t *testing.T) {
	total := 100 * gib // small SE: percentage would be tiny, floor applies
	th := Derive(model.ModeRW, total)

	if th.WarningFree != 150*gib {
		t.Errorf("WarningFree = %d, want absolute floor %d", th.WarningFree, 150*gib)
	}
	if th.CriticalFree != 80*gib {
		t.Errorf("CriticalFree = %d, want absolute floor %d", th.CriticalFree, 80*gib)
	}
	if th.FullFree != 20*gib {
		t.Errorf("FullFree = %d, want absolute floor %d", th.FullFree, 20*gib)
	}
}

func TestDeriveEdit(t *testing.T) {
	total := 50 * gib
	th := Derive(model.ModeEdit, total)

	if th.WarningFree != 100*gib {
		t.Errorf("WarningFree = %d, want %d", th.WarningFree, 100*gib)
	}
	if th.CriticalFree != 50*gib {
		t.Errorf("CriticalFree = %d, want %d", th.CriticalFree, 50*gib)
	}
	if th.FullFree != 10*gib {
		t.Errorf("FullFree = %d, want %d", th.FullFree, 10*gib)
	}
}

func TestDeriveROAndARAreZeroValue(t *testing.T) {
	for _, m := range []model.Mode{model.ModeRO, model.ModeAR} {
		th := Derive(m, 1000*gib)
		if th != (model.Thresholds{}) {
			t.Errorf("Derive(%s) = %+v, want zero value", m, th)
		}
	}
}

func TestStatusForRW(t *testing.T) {
	th := Derive(model.ModeRW, 1000*gib)

	tests := []struct {
		free int64
		want model.CapacityStatus
	}{
		{free: 500 * gib, want: model.CapacityOK},
		{free: th.WarningFree, want: model.CapacityWarning},
		{free: th.CriticalFree, want: model.CapacityCritical},
		{free: th.FullFree, want: model.CapacityFull},
		{free: 0, want: model.CapacityFull},
	}

	for _, tt := range tests {
		got := StatusFor(model.ModeRW, th, tt.free)
		if got != tt.want {
			t.Errorf("StatusFor(free=%d) = %s, want %s", tt.free, got, tt.want)
		}
	}
}

func TestStatusForROAlwaysOK(t *testing.T) {
	th := Derive(model.ModeRO, 1000*gib)
	if got := StatusFor(model.ModeRO, th, 0); got != model.CapacityOK {
		t.Errorf("StatusFor(ro, free=0) = %s, want ok", got)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		used, total int64
		want        float64
	}{
		{used: 50, total: 100, want: 50.0},
		{used: 1, total: 3, want: 33.33},
		{used: 0, total: 0, want: 0},
	}

	for _, tt := range tests {
		got := Percent(tt.used, tt.total)
		if got != tt.want {
			t.Errorf("Percent(%d, %d) = %v, want %v", tt.used, tt.total, got, tt.want)
		}
	}
}
