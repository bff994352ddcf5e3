package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"newbusiness/models"
	"newbusiness/testutil"
	"newbusiness/utils"
)

func addSpending(t *testing.T, db *gorm.DB, row models.SpendingData) {
	t.Helper()
	require.NoError(t, db.Create(&row).Error)
}

func TestListAdvertisersOrdersByLatestNetSpend(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()

	small := testutil.Advertiser(t, db, "Small")
	big := testutil.Advertiser(t, db, "Big")
	manual := testutil.Advertiser(t, db, "Manual")
	testutil.Advertiser(t, db, "Alpha")
	testutil.Advertiser(t, db, "Zulu")

	addSpending(t, db, models.SpendingData{AdvertiserID: small.ID, Year: 2024, TV: 100, GrandTotal: 100})
	// An older, larger year must not count
	addSpending(t, db, models.SpendingData{AdvertiserID: small.ID, Year: 2020, TV: 100000, GrandTotal: 100000})
	addSpending(t, db, models.SpendingData{AdvertiserID: big.ID, Year: 2024, Internet: 1000, GrandTotal: 1000})
	addSpending(t, db, models.SpendingData{AdvertiserID: manual.ID, Year: 2023, TV: 10, GrandTotal: 10, NetTotal: utils.Pointer(900.0)})

	all, total, err := ListAdvertisers(ctx, db, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	names := make([]string, 0, len(all))
	for _, a := range all {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"Manual", "Big", "Small", "Alpha", "Zulu"}, names)

	assert.Equal(t, 2024, all[1].LatestYear)
	assert.Equal(t, 1000.0, all[1].GrossSpending)
	assert.InDelta(t, 500.0, all[1].NetSpending, 1e-9)
	assert.InDelta(t, 20.0, all[2].NetSpending, 1e-9)
	assert.Nil(t, all[0].SpendingData)

	page, total, err := ListAdvertisers(ctx, db, ListFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, "Small", page[0].Name)

	page, _, err = ListAdvertisers(ctx, db, ListFilter{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestListAdvertisersFilters(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()

	acme := testutil.Advertiser(t, db, "Acme")
	require.NoError(t, db.Model(acme).Updates(map[string]interface{}{
		"current_agency": "Media House",
		"lead_status":    models.LeadStatusWarm,
	}).Error)
	testutil.Advertiser(t, db, "Beta")

	got, _, err := ListAdvertisers(ctx, db, ListFilter{Search: "media"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Acme", got[0].Name)

	got, _, err = ListAdvertisers(ctx, db, ListFilter{Status: models.LeadStatusNonQualified})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Beta", got[0].Name)

	agencies, err := Agencies(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"Media House"}, agencies)
}

func TestChangeLeadStatus(t *testing.T) {
	db := testutil.OpenDB(t)
	user := testutil.SystemUser(t, db)
	adv := testutil.Advertiser(t, db, "Acme")

	changed, err := ChangeLeadStatus(db, adv, models.LeadStatusNonQualified, user.ID, "")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = ChangeLeadStatus(db, adv, models.LeadStatusHot, user.ID, "signed brief")
	require.NoError(t, err)
	assert.True(t, changed)

	var history []models.LeadStatusHistory
	require.NoError(t, db.Where("advertiser_id = ?", adv.ID).Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, models.LeadStatusNonQualified, history[0].OldStatus)
	assert.Equal(t, models.LeadStatusHot, history[0].NewStatus)
	assert.Equal(t, "signed brief", history[0].Reason)

	var stored models.Advertiser
	require.NoError(t, db.First(&stored, adv.ID).Error)
	assert.Equal(t, models.LeadStatusHot, stored.LeadStatus)
}

func TestDeleteAdvertiser(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	user := testutil.SystemUser(t, db)

	acme := testutil.Advertiser(t, db, "Acme")
	beta := testutil.Advertiser(t, db, "Beta")
	addSpending(t, db, models.SpendingData{AdvertiserID: acme.ID, Year: 2024, TV: 1})

	contact := &models.Contact{AdvertiserID: &acme.ID, FirstName: "Ona", LastName: "J", AddedByID: user.ID}
	require.NoError(t, db.Create(contact).Error)
	other := &models.Contact{AdvertiserID: &beta.ID, FirstName: "Jonas", LastName: "P", AddedByID: user.ID}
	require.NoError(t, db.Create(other).Error)
	require.NoError(t, ReplaceLinks(db, other, []uint{acme.ID}))
	require.NoError(t, LogActivity(db, &models.Activity{AdvertiserID: acme.ID, UserID: user.ID, Description: "x"}))

	require.NoError(t, DeleteAdvertiser(ctx, db, acme.ID))
	assert.ErrorIs(t, DeleteAdvertiser(ctx, db, acme.ID), ErrNotFound)

	var kept models.Contact
	require.NoError(t, db.First(&kept, contact.ID).Error)
	assert.Nil(t, kept.AdvertiserID)

	for _, model := range []interface{}{&models.SpendingData{}, &models.Activity{}, &models.ContactAdvertiserLink{}} {
		var count int64
		require.NoError(t, db.Unscoped().Model(model).Where("advertiser_id = ?", acme.ID).Count(&count).Error)
		assert.Zero(t, count)
	}

	// Soft delete is bypassed so the name can be reused
	testutil.Advertiser(t, db, "Acme")
}

func TestRelatedAdvertisersAndContacts(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	user := testutil.SystemUser(t, db)

	acme := testutil.Advertiser(t, db, "Acme")
	beta := testutil.Advertiser(t, db, "Beta")
	gamma := testutil.Advertiser(t, db, "Gamma")

	contact := &models.Contact{AdvertiserID: &acme.ID, FirstName: "Ona", LastName: "J", AddedByID: user.ID}
	require.NoError(t, db.Create(contact).Error)
	// The primary and the repeated id are skipped
	require.NoError(t, ReplaceLinks(db, contact, []uint{gamma.ID, acme.ID, beta.ID, gamma.ID}))

	related, err := RelatedAdvertisers(ctx, db, contact)
	require.NoError(t, err)
	names := []string{}
	for _, a := range related {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"Acme", "Gamma", "Beta"}, names)

	require.NoError(t, ReplaceLinks(db, contact, []uint{beta.ID}))
	related, err = RelatedAdvertisers(ctx, db, contact)
	require.NoError(t, err)
	assert.Len(t, related, 2)

	loner := &models.Contact{FirstName: "Petras", LastName: "K", AddedByID: user.ID}
	require.NoError(t, db.Create(loner).Error)

	contacts, err := AdvertiserContacts(ctx, db, beta.ID)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, contact.ID, contacts[0].ID)

	contacts, err = AdvertiserContacts(ctx, db, gamma.ID)
	require.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestActivityMarkers(t *testing.T) {
	db := testutil.OpenDB(t)
	user := testutil.SystemUser(t, db)
	adv := testutil.Advertiser(t, db, "Acme")

	require.NoError(t, LogActivity(db, &models.Activity{
		AdvertiserID: adv.ID,
		UserID:       user.ID,
		Description:  "Created from Agency CRM company #7",
		Outcome:      "synced",
	}))

	ok, err := HasActivity(db, adv.ID, "company #7")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasNote(db, adv.ID, "Created from Agency CRM company #7", "synced")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasNote(db, adv.ID, "Created from Agency CRM company #7", "other")
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := FindAdvertiserByName(db, "Acme")
	require.NoError(t, err)
	require.NotNil(t, found)
	missing, err := FindAdvertiserByName(db, "acme")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListAdvertisersSearchFoldsNonASCII(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()

	testutil.Advertiser(t, db, "Švyturys Utenos alus")
	other := testutil.Advertiser(t, db, "Acme")
	require.NoError(t, db.Model(other).Update("current_agency", "Ėjimas Media").Error)

	got, total, err := ListAdvertisers(ctx, db, ListFilter{Search: "švyturys"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, "Švyturys Utenos alus", got[0].Name)

	got, _, err = ListAdvertisers(ctx, db, ListFilter{Search: "ĖJIMAS"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Acme", got[0].Name)
}
