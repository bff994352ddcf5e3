package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"newbusiness/models"
	"newbusiness/testutil"
)

func TestCalculatedNetTotal(t *testing.T) {
	row := models.SpendingData{TV: 1000}
	assert.InDelta(t, 200.0, row.CalculatedNetTotal(), 1e-9)

	row = models.SpendingData{
		TV:            100,
		Cinema:        100,
		Radio:         100,
		OutdoorStatic: 100,
		Billboard:     100,
		Internet:      100,
		Magazines:     100,
		Newspapers:    100,
		IndoorTV:      100,
	}
	assert.InDelta(t, 20+20+30+50+50+50+50+50+50, row.CalculatedNetTotal(), 1e-9)

	manual := 500.0
	row.NetTotal = &manual
	assert.Equal(t, 500.0, row.CalculatedNetTotal())

	zero := 0.0
	row.NetTotal = &zero
	assert.Equal(t, 0.0, row.CalculatedNetTotal())
}

func TestSources(t *testing.T) {
	src, ok := models.ParseSource("tv-planner")
	assert.True(t, ok)
	assert.Equal(t, models.SourceTVPlanner, src)
	assert.Equal(t, "TV Planner", src.Label())
	assert.Equal(t, "Agency CRM", models.SourceAgencyCRM.Label())

	_, ok = models.ParseSource("Agency-CRM")
	assert.False(t, ok)
}

func TestWebhookSubscribes(t *testing.T) {
	hook := models.Webhook{Events: []string{"contact.updated"}}
	assert.True(t, hook.Subscribes("contact.updated"))
	assert.False(t, hook.Subscribes("company.updated"))
}

func TestLeadStatuses(t *testing.T) {
	for _, s := range models.LeadStatuses {
		assert.True(t, models.IsValidLeadStatus(s), s)
	}
	assert.False(t, models.IsValidLeadStatus("lukewarm"))
	assert.False(t, models.IsValidLeadStatus(""))
}

func TestEnsureSystemUser(t *testing.T) {
	db := testutil.OpenDB(t)

	first, err := models.EnsureSystemUser(db, "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, models.SystemUsername, first.Username)
	assert.True(t, first.IsAdmin())
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(first.PasswordHash), []byte("s3cret-pass")))

	second, err := models.EnsureSystemUser(db, "other")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.PasswordHash, second.PasswordHash)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestContactFullName(t *testing.T) {
	c := models.Contact{FirstName: "Ona", LastName: ""}
	assert.Equal(t, "Ona", c.FullName())
	c.LastName = "Jonaitė"
	assert.Equal(t, "Ona Jonaitė", c.FullName())
}
