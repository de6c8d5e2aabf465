package registry

import (
	"strconv"
	"testing"
	"time"

	"github.com/BigKAA/artStore-sub005/pkg/model"
)

func TestHashRoundTrip(t *testing.T) {
	c := &Client{}
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	r := Record{
		ID:                "se-local-01",
		Mode:              model.ModeRW,
		CapacityTotal:     1000,
		CapacityUsed:      400,
		CapacityFree:      600,
		CapacityPercent:   40.00,
		Endpoint:          "http://se-local-01:8080",
		Priority:          10,
		LastUpdated:       now,
		HealthStatus:      model.HealthHealthy,
		CapacityStatus:    model.CapacityOK,
		ThresholdWarning:  150,
		ThresholdCritical: 80,
		ThresholdFull:     20,
	}

	hash := c.toHash(r)
	strHash := make(map[string]string, len(hash))
	for k, v := range hash {
		switch vv := v.(type) {
		case string:
			strHash[k] = vv
		case int:
			strHash[k] = strconv.Itoa(vv)
		case int64:
			strHash[k] = strconv.FormatInt(vv, 10)
		}
	}

	got, err := fromHash(strHash)
	if err != nil {
		t.Fatalf("fromHash() error = %v", err)
	}
	if !got.LastUpdated.Equal(r.LastUpdated) {
		t.Errorf("LastUpdated = %v, want %v", got.LastUpdated, r.LastUpdated)
	}
	got.LastUpdated, r.LastUpdated = time.Time{}, time.Time{}
	if got != r {
		t.Errorf("round trip = %+v, want %+v", got, r)
	}
}

func TestPriorityKeyAndElementKey(t *testing.T) {
	if got, want := elementKey("se-01"), "storage:elements:se-01"; got != want {
		t.Errorf("elementKey() = %q, want %q", got, want)
	}
	if got, want := priorityKey(model.ModeRW), "storage:rw:by_priority"; got != want {
		t.Errorf("priorityKey() = %q, want %q", got, want)
	}
}
