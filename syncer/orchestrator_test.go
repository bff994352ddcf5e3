package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"newbusiness/config"
	"newbusiness/models"
	"newbusiness/reconcile"
	"newbusiness/testutil"
	"newbusiness/utils"
)

const testAPIKey = "test-key"

var fixedNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

// upstream serves canned JSON per path and records requested URIs.
type upstream struct {
	mu       sync.Mutex
	requests []string
	routes   map[string]interface{}
	failures map[string]int
}

func newUpstream() *upstream {
	return &upstream{routes: map[string]interface{}{}, failures: map[string]int{}}
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.requests = append(u.requests, r.URL.RequestURI())
	body, ok := u.routes[r.URL.Path]
	status := u.failures[r.URL.Path]
	u.mu.Unlock()

	if r.Header.Get("X-API-Key") != testAPIKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (u *upstream) requested() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.requests...)
}

func newTestOrchestrator(t *testing.T, baseURLs map[models.Source]string) (*Orchestrator, *gorm.DB) {
	t.Helper()
	db := testutil.OpenDB(t)
	system := testutil.SystemUser(t, db)

	sources := map[models.Source]config.SourceConfig{}
	for src, url := range baseURLs {
		sources[src] = config.SourceConfig{BaseURL: url, APIKey: testAPIKey}
	}

	o, err := NewOrchestrator(db, Config{
		Sources:         sources,
		SystemUserID:    system.ID,
		UpstreamTimeout: 5 * time.Second,
		Clock:           func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return o, db
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func countNotes(t *testing.T, db *gorm.DB, advertiserID uint, description string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Activity{}).
		Where("advertiser_id = ? AND description = ?", advertiserID, description).
		Count(&n).Error)
	return n
}

func TestRunAgencyCRM(t *testing.T) {
	up := newUpstream()
	up.routes["/companies"] = []map[string]interface{}{{"id": 1, "name": "Acme"}}
	up.routes["/brands"] = []map[string]interface{}{{"id": 2, "name": "Cola", "company_name": "Acme"}}
	up.routes["/contacts"] = []map[string]interface{}{{
		"id":         42,
		"first_name": "Jane",
		"last_name":  "Doe",
		"email":      "jane@acme.com",
		"brands":     []map[string]interface{}{{"id": 2, "name": "Acme - Cola"}, {"id": 1, "name": "Acme"}},
	}}
	invoices := make([]map[string]interface{}, 0, 60)
	for i := 0; i < 60; i++ {
		invoices = append(invoices, map[string]interface{}{
			"id":           i,
			"brand_name":   "Acme",
			"invoice_date": fmt.Sprintf("2025-%02d-%02d", i/28+1, i%28+1),
			"total_amount": 100.5,
		})
	}
	up.routes["/invoices"] = invoices
	up.failures["/status-updates"] = http.StatusInternalServerError

	srv := httptest.NewServer(up)
	defer srv.Close()

	o, db := newTestOrchestrator(t, map[models.Source]string{models.SourceAgencyCRM: srv.URL})

	var progress []Progress
	run, err := o.Run(context.Background(), models.SourceAgencyCRM, RunOptions{
		Progress: func(p Progress) { progress = append(progress, p) },
	})
	require.NoError(t, err)

	assert.Equal(t, models.SyncPartial, run.Status)
	assert.Equal(t, 1, run.ErrorCount)
	assert.Equal(t, TriggerManual, run.Trigger)
	assert.Equal(t, 1, run.Collections["companies"].Created)
	assert.Equal(t, 1, run.Collections["brands"].Created)
	assert.Equal(t, 1, run.Collections["contacts"].Created)
	assert.Equal(t, 50, run.Collections["invoices"].Fetched)
	assert.Equal(t, 50, run.Collections["invoices"].Created)
	assert.NotEmpty(t, run.Collections["status-updates"].Error)
	assert.Contains(t, up.requested(), "/status-updates?limit=100")

	require.Len(t, progress, 10)
	assert.Equal(t, StageStarted, progress[0].Stage)
	assert.Equal(t, StageFailed, progress[9].Stage)

	var stored models.SyncRun
	require.NoError(t, db.Where("run_id = ?", run.RunID).First(&stored).Error)
	assert.Equal(t, models.SyncPartial, stored.Status)
	assert.Equal(t, 50, stored.Collections["invoices"].Created)
	require.NotNil(t, stored.FinishedAt)

	acme, err := findByName(db, "Acme")
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusOurs, acme.LeadStatus)
	assert.Equal(t, AgencyOurs, acme.CurrentAgency)

	brand, err := findByName(db, "Acme - Cola")
	require.NoError(t, err)

	var contact models.Contact
	require.NoError(t, db.Where("agency_crm_id = ?", 42).First(&contact).Error)
	require.NotNil(t, contact.AdvertiserID)
	assert.Equal(t, brand.ID, *contact.AdvertiserID)

	// a second pull adds nothing new
	up.failures = map[string]int{}
	up.routes["/status-updates"] = []map[string]interface{}{}
	second, err := o.Run(context.Background(), models.SourceAgencyCRM, RunOptions{Trigger: TriggerInitial})
	require.NoError(t, err)
	assert.Equal(t, models.SyncSuccess, second.Status)
	assert.Equal(t, 50, second.Collections["invoices"].Skipped)
	assert.Equal(t, 1, second.Collections["companies"].Updated)
	assert.EqualValues(t, 1, countNotes(t, db, acme.ID, "Company synced from Agency CRM (ID: 1)"))

	var contacts int64
	require.NoError(t, db.Model(&models.Contact{}).Count(&contacts).Error)
	assert.EqualValues(t, 1, contacts)
}

func TestRunTVPlanner(t *testing.T) {
	up := newUpstream()
	up.routes["/campaigns"] = []map[string]interface{}{
		{"id": 1, "name": "Acme - Spring"},
		{"id": 2, "name": "Newco - Launch"},
	}
	up.routes["/campaigns/1/spending"] = map[string]interface{}{"total_spending": 500}
	up.routes["/campaigns/2/spending"] = map[string]interface{}{"total_spending": 2500}
	up.routes["/contacts"] = []map[string]interface{}{
		{"id": 9, "name": "Jonas Petraitis", "email": "jonas@unknown.lt", "company": "Unknown Co"},
		{"id": 10, "name": "No Email"},
	}

	srv := httptest.NewServer(up)
	defer srv.Close()

	o, db := newTestOrchestrator(t, map[models.Source]string{models.SourceTVPlanner: srv.URL})
	acme := testutil.Advertiser(t, db, "Acme")
	require.NoError(t, db.Create(&models.SpendingData{AdvertiserID: acme.ID, Year: 2025, TV: 1000}).Error)

	run, err := o.Run(context.Background(), models.SourceTVPlanner, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.SyncSuccess, run.Status)
	assert.Equal(t, 1, run.Collections["campaigns"].Created)
	assert.Equal(t, 1, run.Collections["campaigns"].Updated)
	assert.Equal(t, 1, run.Collections["contacts"].Created)
	assert.Equal(t, 1, run.Collections["contacts"].Skipped)

	var acmeRow models.SpendingData
	require.NoError(t, db.Where("advertiser_id = ? AND year = ?", acme.ID, 2025).First(&acmeRow).Error)
	assert.Equal(t, 1000.0, acmeRow.TV)

	newco, err := findByName(db, "Newco")
	require.NoError(t, err)
	assert.Equal(t, AgencyTVPlannerClient, newco.CurrentAgency)
	assert.Equal(t, models.LeadStatusWarm, newco.LeadStatus)

	var newcoRow models.SpendingData
	require.NoError(t, db.Where("advertiser_id = ? AND year = ?", newco.ID, 2025).First(&newcoRow).Error)
	assert.Equal(t, 2500.0, newcoRow.TV)
	assert.EqualValues(t, 1, countNotes(t, db, newco.ID, "TV Campaign synced: Newco - Launch"))

	company, err := findByName(db, "Unknown Co")
	require.NoError(t, err)
	assert.Equal(t, AgencyPotentialClient, company.CurrentAgency)
	assert.Equal(t, models.LeadStatusCold, company.LeadStatus)

	var contact models.Contact
	require.NoError(t, db.Where("email = ?", "jonas@unknown.lt").First(&contact).Error)
	assert.Equal(t, "Jonas", contact.FirstName)
	assert.Equal(t, "Petraitis", contact.LastName)
	assert.Nil(t, contact.AgencyCRMID)
	require.NotNil(t, contact.AdvertiserID)
	assert.Equal(t, company.ID, *contact.AdvertiserID)
}

func TestRunRequiresAPIKey(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	_, err := o.Run(context.Background(), models.SourceAgencyCRM, RunOptions{BaseURL: "http://localhost:1"})
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestRunFailsWhenEveryCollectionFails(t *testing.T) {
	up := newUpstream()
	srv := httptest.NewServer(up)
	defer srv.Close()

	o, _ := newTestOrchestrator(t, nil)
	run, err := o.Run(context.Background(), models.SourceTVPlanner, RunOptions{BaseURL: srv.URL, APIKey: "wrong"})
	require.NoError(t, err)
	assert.Equal(t, models.SyncFailed, run.Status)
	assert.Equal(t, 2, run.ErrorCount)
	assert.Contains(t, run.Collections["campaigns"].Error, "401")
}

func TestHandleCompanyEventPromotesExisting(t *testing.T) {
	o, db := newTestOrchestrator(t, nil)
	adv := testutil.Advertiser(t, db, "Acme")

	res, err := o.HandleEvent(context.Background(), models.SourceAgencyCRM, "company.updated",
		mustJSON(t, map[string]interface{}{"id": 5, "name": "Acme"}))
	require.NoError(t, err)
	assert.Equal(t, reconcile.ActionUpdated, res.Action)

	var stored models.Advertiser
	require.NoError(t, db.First(&stored, adv.ID).Error)
	assert.Equal(t, models.LeadStatusOurs, stored.LeadStatus)

	var history []models.LeadStatusHistory
	require.NoError(t, db.Where("advertiser_id = ?", adv.ID).Find(&history).Error)
	require.Len(t, history, 1)
	assert.Equal(t, models.LeadStatusNonQualified, history[0].OldStatus)
	assert.Equal(t, models.LeadStatusOurs, history[0].NewStatus)
}

func TestHandleBrandEventNamesAdvertiser(t *testing.T) {
	o, db := newTestOrchestrator(t, nil)

	_, err := o.HandleEvent(context.Background(), models.SourceAgencyCRM, "brand.created",
		mustJSON(t, map[string]interface{}{"id": 3, "name": "Fizz"}))
	require.NoError(t, err)

	adv, err := findByName(db, "Unknown - Fizz")
	require.NoError(t, err)
	assert.EqualValues(t, 1, countNotes(t, db, adv.ID, "Brand synced from Agency CRM (Brand ID: 3)"))
}

func TestHandleStatusUpdateEvent(t *testing.T) {
	o, db := newTestOrchestrator(t, nil)
	adv := testutil.Advertiser(t, db, "Acme Baltic")

	payload := mustJSON(t, map[string]interface{}{"brand_name": "Acme", "update_text": "Brief received"})
	for i := 0; i < 2; i++ {
		_, err := o.HandleEvent(context.Background(), models.SourceAgencyCRM, "status_update.created", payload)
		require.NoError(t, err)
	}

	var notes []models.Activity
	require.NoError(t, db.Where("advertiser_id = ?", adv.ID).Find(&notes).Error)
	require.Len(t, notes, 1)
	assert.Equal(t, "Status Update: Brief received", notes[0].Description)
	assert.Equal(t, "By: Unknown", notes[0].Outcome)
}

func TestHandleInvoiceEvent(t *testing.T) {
	o, db := newTestOrchestrator(t, nil)
	adv := testutil.Advertiser(t, db, "Acme")

	res, err := o.HandleEvent(context.Background(), models.SourceAgencyCRM, "invoice.created",
		[]byte(`{"brand_name":"Acme","invoice_date":"2025-03-01","total_amount":1500.50}`))
	require.NoError(t, err)
	assert.Equal(t, reconcile.ActionCreated, res.Action)
	assert.EqualValues(t, 1, countNotes(t, db, adv.ID, "Invoice: 2025-03-01 - Amount: 1500.50 EUR"))

	res, err = o.HandleEvent(context.Background(), models.SourceAgencyCRM, "invoice.created",
		[]byte(`{"brand_name":"","invoice_date":"2025-03-02","total_amount":10}`))
	require.NoError(t, err)
	assert.Equal(t, reconcile.ActionSkipped, res.Action)
}

func TestHandleUndatedInvoices(t *testing.T) {
	o, db := newTestOrchestrator(t, nil)
	adv := testutil.Advertiser(t, db, "Acme")

	send := func(body string) reconcile.Action {
		res, err := o.HandleEvent(context.Background(), models.SourceAgencyCRM, "invoice.created", []byte(body))
		require.NoError(t, err)
		return res.Action
	}

	assert.Equal(t, reconcile.ActionCreated, send(`{"brand_name":"Acme","invoice_date":"2025-03-01","total_amount":100}`))
	// An undated invoice is not swallowed by the dated note
	assert.Equal(t, reconcile.ActionCreated, send(`{"brand_name":"Acme","total_amount":200}`))
	assert.Equal(t, reconcile.ActionCreated, send(`{"brand_name":"Acme","invoice_date":"","total_amount":300}`))
	// The same undated invoice again is a duplicate
	assert.Equal(t, reconcile.ActionSkipped, send(`{"brand_name":"Acme","total_amount":200}`))

	assert.EqualValues(t, 1, countNotes(t, db, adv.ID, "Invoice:  - Amount: 200 EUR"))
	assert.EqualValues(t, 1, countNotes(t, db, adv.ID, "Invoice:  - Amount: 300 EUR"))

	var total int64
	require.NoError(t, db.Model(&models.Activity{}).Where("advertiser_id = ?", adv.ID).Count(&total).Error)
	assert.EqualValues(t, 3, total)
}

func TestHandleCampaignEventKeepsLargerSpend(t *testing.T) {
	o, db := newTestOrchestrator(t, nil)
	adv := testutil.Advertiser(t, db, "Acme")

	for _, total := range []float64{800, 300} {
		_, err := o.HandleEvent(context.Background(), models.SourceTVPlanner, "campaign.updated",
			mustJSON(t, map[string]interface{}{"id": 1, "name": "Acme-Summer", "total_spending": total}))
		require.NoError(t, err)
	}

	var row models.SpendingData
	require.NoError(t, db.Where("advertiser_id = ? AND year = ?", adv.ID, 2025).First(&row).Error)
	assert.Equal(t, 800.0, row.TV)
}

func TestHandleWaveEvent(t *testing.T) {
	o, db := newTestOrchestrator(t, nil)
	adv := testutil.Advertiser(t, db, "Acme")

	res, err := o.HandleEvent(context.Background(), models.SourceTVPlanner, "wave.created",
		mustJSON(t, map[string]interface{}{"name": "Wave 1", "campaign_name": "Acme - Spring"}))
	require.NoError(t, err)
	assert.Equal(t, reconcile.ActionUpdated, res.Action)
	assert.EqualValues(t, 1, countNotes(t, db, adv.ID, "TV Wave updated: Wave 1"))
}

func TestHandleEventIgnoresUnknown(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)

	res, err := o.HandleEvent(context.Background(), models.SourceTVPlanner, "invoice.created", []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, res.Ignored)

	res, err = o.HandleEvent(context.Background(), models.SourceAgencyCRM, "something.else", []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, res.Ignored)
}

func TestHandleEventRejectsMalformedPayload(t *testing.T) {
	o, db := newTestOrchestrator(t, nil)

	_, err := o.HandleEvent(context.Background(), models.SourceAgencyCRM, "company.created", []byte(`{"name":`))
	require.ErrorIs(t, err, utils.ErrValidation)

	_, err = o.HandleEvent(context.Background(), models.SourceAgencyCRM, "company.created", []byte(`{"id":1,"name":"  "}`))
	require.ErrorIs(t, err, utils.ErrValidation)

	var count int64
	require.NoError(t, db.Model(&models.Advertiser{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestAdvertiserPrefix(t *testing.T) {
	assert.Equal(t, "Acme", AdvertiserPrefix("Acme - Spring - 2025"))
	assert.Equal(t, "Solo", AdvertiserPrefix(" Solo "))
	assert.Equal(t, "", AdvertiserPrefix("- nothing"))
}

func findByName(db *gorm.DB, name string) (*models.Advertiser, error) {
	var adv models.Advertiser
	if err := db.Where("name = ?", name).First(&adv).Error; err != nil {
		return nil, err
	}
	return &adv, nil
}
