package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncHistoryFinished(t *testing.T) {
	h := SyncHistory{Status: RunStatusRunning}
	assert.False(t, h.Finished())

	now := time.Now()
	h.CompletedAt = &now
	assert.True(t, h.Finished())
	assert.Equal(t, "sync_history", h.TableName())
}
