package wal

import (
	"testing"

	"github.com/BigKAA/artStore-sub005/pkg/model"
)

func TestNewStoreComposesTableName(t *testing.T) {
	s := NewStore(nil, "se_local01")
	if s.tableName != "se_local01_wal" {
		t.Errorf("tableName = %q, want %q", s.tableName, "se_local01_wal")
	}
}

func TestWALStatusTerminal(t *testing.T) {
	tests := []struct {
		status model.WALStatus
		want   bool
	}{
		{model.WALPending, false},
		{model.WALInProgress, false},
		{model.WALCommitted, true},
		{model.WALRolledBack, true},
		{model.WALFailed, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
