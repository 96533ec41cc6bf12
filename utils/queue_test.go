package utils

import (
	"testing"
	"time"

	"leadmailer/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligibleLeadIDsFilters(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	accessed := seedLead(t, db, "accessed@example.com", base, func(l *models.Lead) {
		l.AccessedPlatform = true
		l.Situation = models.SituationActive
	})
	fresh := seedLead(t, db, "fresh@example.com", base.Add(time.Hour), func(l *models.Lead) {
		l.Situation = models.SituationAbandoned
	})
	seedLead(t, db, "gone@example.com", base.Add(2*time.Hour), func(l *models.Lead) {
		l.Unsubscribed = true
	})

	ids, err := EligibleLeadIDs(db, models.AccessAll, models.SituationAll, models.NewestFirst)
	require.NoError(t, err)
	assert.Equal(t, []uint{fresh.ID, accessed.ID}, ids, "unsubscribed leads never qualify")

	ids, err = EligibleLeadIDs(db, models.AccessAccessed, models.SituationAll, models.NewestFirst)
	require.NoError(t, err)
	assert.Equal(t, []uint{accessed.ID}, ids)

	ids, err = EligibleLeadIDs(db, models.AccessNotAccessed, models.SituationAbandoned, models.OldestFirst)
	require.NoError(t, err)
	assert.Equal(t, []uint{fresh.ID}, ids)

	ids, err = EligibleLeadIDs(db, models.AccessAll, models.SituationActive, models.OldestFirst)
	require.NoError(t, err)
	assert.Equal(t, []uint{accessed.ID}, ids)
}

func TestEligibleLeadIDsOrdering(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := seedLead(t, db, "first@example.com", base, nil)
	second := seedLead(t, db, "second@example.com", base.Add(time.Minute), nil)
	// Same timestamp as second: id breaks the tie
	third := seedLead(t, db, "third@example.com", base.Add(time.Minute), nil)

	ids, err := EligibleLeadIDs(db, models.AccessAll, models.SituationAll, models.OldestFirst)
	require.NoError(t, err)
	assert.Equal(t, []uint{first.ID, second.ID, third.ID}, ids)

	ids, err = EligibleLeadIDs(db, models.AccessAll, models.SituationAll, models.NewestFirst)
	require.NoError(t, err)
	assert.Equal(t, []uint{third.ID, second.ID, first.ID}, ids)
}

func TestBuildRecipientQueueSnapshots(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a := seedLead(t, db, "a@example.com", base, nil)
	b := seedLead(t, db, "b@example.com", base.Add(time.Minute), nil)

	tr := models.Transmission{
		Name:            "Snapshot",
		Subject:         "Hi",
		Body:            "<p>Hi</p>",
		Mode:            models.ModeImmediate,
		SendOrder:       models.OldestFirst,
		AccessFilter:    models.AccessAll,
		SituationFilter: models.SituationAll,
	}
	require.NoError(t, db.Create(&tr).Error)

	total, err := BuildRecipientQueue(db, &tr)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	var rows []models.TransmissionRecipient
	require.NoError(t, db.Where("transmission_id = ?", tr.ID).Order("position ASC").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, a.ID, rows[0].LeadID)
	assert.Equal(t, 1, rows[0].Position)
	assert.Equal(t, b.ID, rows[1].LeadID)
	assert.Equal(t, 2, rows[1].Position)
	assert.Equal(t, models.RecipientPending, rows[0].Status)

	// Mark one sent, then rebuild: the queue is disposable and comes back
	// fully pending
	require.NoError(t, db.Model(&rows[0]).Update("status", models.RecipientSent).Error)

	total, err = BuildRecipientQueue(db, &tr)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	var pending int64
	require.NoError(t, db.Model(&models.TransmissionRecipient{}).
		Where("transmission_id = ? AND status = ?", tr.ID, models.RecipientPending).
		Count(&pending).Error)
	assert.EqualValues(t, 2, pending)
}

func TestBuildRecipientQueueDeterministic(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, email := range []string{"x@example.com", "y@example.com", "z@example.com"} {
		seedLead(t, db, email, base.Add(time.Duration(i)*time.Minute), nil)
	}

	tr := models.Transmission{
		Name:            "Deterministic",
		Subject:         "Hi",
		Body:            "<p>Hi</p>",
		Mode:            models.ModeImmediate,
		SendOrder:       models.NewestFirst,
		AccessFilter:    models.AccessAll,
		SituationFilter: models.SituationAll,
	}
	require.NoError(t, db.Create(&tr).Error)

	snapshot := func() []uint {
		_, err := BuildRecipientQueue(db, &tr)
		require.NoError(t, err)
		var rows []models.TransmissionRecipient
		require.NoError(t, db.Where("transmission_id = ?", tr.ID).Order("position ASC").Find(&rows).Error)
		ids := make([]uint, len(rows))
		for i, r := range rows {
			ids[i] = r.LeadID
		}
		return ids
	}

	assert.Equal(t, snapshot(), snapshot())
}
