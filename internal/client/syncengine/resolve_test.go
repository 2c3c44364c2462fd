package syncengine

import (
	"testing"

	"github.com/dmitrijs2005/notesync/internal/client/models"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		local  *models.Note
		remote *models.Note
		want   Decision
	}{
		{"unknown locally", nil, &models.Note{ID: "x", UpdatedAt: 1}, DecisionApplyRemote},
		{"remote strictly newer", &models.Note{UpdatedAt: 100}, &models.Note{UpdatedAt: 200}, DecisionApplyRemote},
		{"remote older", &models.Note{UpdatedAt: 200}, &models.Note{UpdatedAt: 150}, DecisionKeepLocal},
		{"equal timestamps keep local", &models.Note{UpdatedAt: 100}, &models.Note{UpdatedAt: 100}, DecisionKeepLocal},
		{"tombstone wins over newer local", &models.Note{UpdatedAt: 900}, &models.Note{UpdatedAt: 1, IsDeleted: true}, DecisionDelete},
		{"tombstone for unknown id", nil, &models.Note{IsDeleted: true}, DecisionDelete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.local, tt.remote))
		})
	}
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "keep-local", DecisionKeepLocal.String())
	assert.Equal(t, "apply-remote", DecisionApplyRemote.String())
	assert.Equal(t, "delete", DecisionDelete.String())
	assert.Equal(t, "unknown", Decision(42).String())
}
