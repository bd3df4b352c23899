package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"leadscoring_backend/internal/leads/domain"
	"leadscoring_backend/platform/apperr"
	"leadscoring_backend/platform/logger"
)

type fakeLeadStore struct {
	leads      map[string][]domain.Lead
	getErr     map[string]error
	findErr    error
	bulkErr    error
	bulkWrites [][]LeadUpdate
}

func newFakeLeadStore() *fakeLeadStore {
	return &fakeLeadStore{
		leads:  make(map[string][]domain.Lead),
		getErr: make(map[string]error),
	}
}

func (f *fakeLeadStore) GetLeadsByClientID(ctx context.Context, clientID string) ([]domain.Lead, error) {
	if err := f.getErr[clientID]; err != nil {
		return nil, err
	}
	return f.leads[clientID], nil
}

func (f *fakeLeadStore) FindLeads(ctx context.Context, filter LeadFilter) ([]domain.Lead, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	wanted := make(map[uuid.UUID]bool, len(filter.IDs))
	for _, id := range filter.IDs {
		wanted[id] = true
	}
	var out []domain.Lead
	for _, lead := range f.leads[filter.ClientID] {
		if len(wanted) > 0 && !wanted[lead.ID] {
			continue
		}
		if filter.DateAfter != nil {
			parsed, err := domain.ParseLeadDate(lead.LeadDate)
			if err != nil || !parsed.After(*filter.DateAfter) {
				continue
			}
		}
		out = append(out, lead)
	}
	return out, nil
}

func (f *fakeLeadStore) BulkWrite(ctx context.Context, updates []LeadUpdate) (BulkWriteResult, error) {
	if f.bulkErr != nil {
		return BulkWriteResult{}, f.bulkErr
	}
	f.bulkWrites = append(f.bulkWrites, updates)
	return BulkWriteResult{ModifiedCount: len(updates)}, nil
}

func (f *fakeLeadStore) GetDistinctClientIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.leads))
	for id := range f.leads {
		ids = append(ids, id)
	}
	return ids, nil
}

type fakeRateStore struct {
	rows       map[string]map[RateKey]ConversionRate
	watermarks map[string]time.Time
	upsertErr  error
	upserts    [][]ConversionRate
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{
		rows:       make(map[string]map[RateKey]ConversionRate),
		watermarks: make(map[string]time.Time),
	}
}

func (f *fakeRateStore) GetRates(ctx context.Context, clientID string) ([]ConversionRate, error) {
	out := make([]ConversionRate, 0, len(f.rows[clientID]))
	for _, row := range f.rows[clientID] {
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeRateStore) BatchUpsert(ctx context.Context, rateRows []ConversionRate) (UpsertResult, error) {
	if f.upsertErr != nil {
		return UpsertResult{}, f.upsertErr
	}
	f.upserts = append(f.upserts, rateRows)

	var result UpsertResult
	for _, row := range rateRows {
		byKey := f.rows[row.ClientID]
		if byKey == nil {
			byKey = make(map[RateKey]ConversionRate)
			f.rows[row.ClientID] = byKey
		}
		key := RateKey{Field: row.KeyField, Name: row.KeyName}
		if _, exists := byKey[key]; exists {
			result.Updated++
		} else {
			result.NewInserts++
		}
		byKey[key] = row
		result.Total++
	}
	return result, nil
}

func (f *fakeRateStore) GetWatermark(ctx context.Context, clientID string) (*time.Time, error) {
	mark, ok := f.watermarks[clientID]
	if !ok {
		return nil, nil
	}
	return &mark, nil
}

func (f *fakeRateStore) SetWatermark(ctx context.Context, clientID string, mark time.Time) error {
	current, ok := f.watermarks[clientID]
	if !ok || mark.After(current) {
		f.watermarks[clientID] = mark
	}
	return nil
}

func newTestService(leads *fakeLeadStore, rates *fakeRateStore, parallelism int) *Service {
	return New(leads, rates, evenWeights(), parallelism, nil, logger.New("test"))
}

func TestFullRecomputeEmptyClientIsZeroResult(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	svc := newTestService(leads, rates, 1)

	result, err := svc.FullRecompute(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalProcessedLeads != 0 || result.UpdatedConversionRates != 0 || result.UpdatedLeads != 0 {
		t.Fatalf("expected zero result, got %+v", result)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected empty errors, got %v", result.Errors)
	}
	if len(rates.upserts) != 0 || len(leads.bulkWrites) != 0 {
		t.Fatal("expected no writes for an empty client")
	}
}

func TestFullRecomputeWritesRatesScoresAndWatermark(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	leads.leads["c1"] = []domain.Lead{
		makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusEstimateSet),
		makeLead("Roofing", "set-a", "ad-2", "30301", "2026-01-12", domain.StatusUnqualified),
	}
	svc := newTestService(leads, rates, 1)

	result, err := svc.FullRecompute(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalProcessedLeads != 2 {
		t.Fatalf("expected 2 processed, got %d", result.TotalProcessedLeads)
	}
	if result.UpdatedConversionRates == 0 {
		t.Fatal("expected rate rows written")
	}
	if result.UpdatedLeads != 2 {
		t.Fatalf("expected both leads rescored, got %d", result.UpdatedLeads)
	}

	stored, _ := rates.GetRates(context.Background(), "c1")
	roofing := findRow(t, stored, domain.KeyService, "Roofing")
	if roofing.PastTotalCount != 2 || roofing.PastTotalEst != 1 {
		t.Fatalf("expected 2/1 counters stored, got %d/%d", roofing.PastTotalCount, roofing.PastTotalEst)
	}

	mark, ok := rates.watermarks["c1"]
	if !ok {
		t.Fatal("expected watermark recorded")
	}
	if mark.Format("2006-01-02") != "2026-01-12" {
		t.Fatalf("expected watermark at newest lead date, got %v", mark)
	}
}

func TestFullRecomputeSecondRunPlansNoLeadWrites(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	leads.leads["c1"] = []domain.Lead{
		makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusEstimateSet),
	}
	svc := newTestService(leads, rates, 1)

	first, err := svc.FullRecompute(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Fold the planned writes back into the stored leads, as the real
	// repository would.
	for _, update := range leads.bulkWrites[0] {
		for i := range leads.leads["c1"] {
			if leads.leads["c1"][i].ID == update.ID {
				leads.leads["c1"][i].LeadScore = update.LeadScore
				leads.leads["c1"][i].ConversionRates = update.ConversionRates
			}
		}
	}

	second, err := svc.FullRecompute(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.UpdatedLeads != 0 {
		t.Fatalf("expected idempotent second recompute, got %d lead writes", second.UpdatedLeads)
	}
	if second.UpdatedConversionRates != first.UpdatedConversionRates {
		t.Fatalf("expected same rate rows rewritten, got %d vs %d", second.UpdatedConversionRates, first.UpdatedConversionRates)
	}
}

func TestIncrementalEmptyBatchIsZeroResultAndNoWrites(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	svc := newTestService(leads, rates, 1)

	result, err := svc.WeeklyIncrementalUpdate(context.Background(), "c1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalProcessedLeads != 0 || result.UpdatedConversionRates != 0 {
		t.Fatalf("expected zero result, got %+v", result)
	}
	if len(rates.upserts) != 0 {
		t.Fatal("expected no upserts for empty batch")
	}
	if len(rates.watermarks) != 0 {
		t.Fatal("expected watermark untouched for empty batch")
	}
}

func TestIncrementalMergesIntoStoredCountersAndWritesOnlyTouchedRows(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	rates.rows["c1"] = map[RateKey]ConversionRate{
		{Field: domain.KeyService, Name: "Roofing"}: {
			ClientID: "c1", KeyField: domain.KeyService, KeyName: "Roofing",
			ConversionRate: 0.5, PastTotalCount: 2, PastTotalEst: 1,
		},
		{Field: domain.KeyZip, Name: "99999"}: {
			ClientID: "c1", KeyField: domain.KeyZip, KeyName: "99999",
			ConversionRate: 1, PastTotalCount: 3, PastTotalEst: 3,
		},
	}
	batch := []domain.Lead{
		makeLead("Roofing", "set-a", "ad-1", "30301", "2026-02-01", domain.StatusJobBooked),
	}
	leads.leads["c1"] = batch
	svc := newTestService(leads, rates, 1)

	_, err := svc.WeeklyIncrementalUpdate(context.Background(), "c1", batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := rates.GetRates(context.Background(), "c1")
	roofing := findRow(t, stored, domain.KeyService, "Roofing")
	if roofing.PastTotalCount != 3 || roofing.PastTotalEst != 2 {
		t.Fatalf("expected merged 3/2 counters, got %d/%d", roofing.PastTotalCount, roofing.PastTotalEst)
	}
	if roofing.ConversionRate != 0.67 {
		t.Fatalf("expected re-derived rate 0.67, got %v", roofing.ConversionRate)
	}

	// The untouched zip row must not appear in the write set.
	if len(rates.upserts) != 1 {
		t.Fatalf("expected one upsert call, got %d", len(rates.upserts))
	}
	for _, row := range rates.upserts[0] {
		if row.KeyField == domain.KeyZip && row.KeyName == "99999" {
			t.Fatal("expected untouched row excluded from the upsert")
		}
	}
}

func TestConcurrentRunForSameClientIsRejected(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	svc := newTestService(leads, rates, 1)

	if !svc.markRunning("c1") {
		t.Fatal("expected first mark to succeed")
	}
	defer svc.markComplete("c1")

	_, err := svc.FullRecompute(context.Background(), "c1")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	// A different client is unaffected.
	if _, err := svc.FullRecompute(context.Background(), "c2"); err != nil {
		t.Fatalf("expected other client to proceed, got %v", err)
	}
}

func TestSyncClientWithoutWatermarkRunsFullRecompute(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	leads.leads["c1"] = []domain.Lead{
		makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusEstimateSet),
	}
	svc := newTestService(leads, rates, 1)

	result, err := svc.SyncClient(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalProcessedLeads != 1 {
		t.Fatalf("expected full history processed, got %d", result.TotalProcessedLeads)
	}
	if _, ok := rates.watermarks["c1"]; !ok {
		t.Fatal("expected watermark established by first sync")
	}
}

func TestSyncClientSelectsOnlyLeadsAfterWatermark(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	old := makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusEstimateSet)
	fresh := makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-20", domain.StatusJobLost)
	leads.leads["c1"] = []domain.Lead{old, fresh}
	rates.watermarks["c1"] = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	rates.rows["c1"] = map[RateKey]ConversionRate{
		{Field: domain.KeyService, Name: "Roofing"}: {
			ClientID: "c1", KeyField: domain.KeyService, KeyName: "Roofing",
			ConversionRate: 1, PastTotalCount: 1, PastTotalEst: 1,
		},
	}
	svc := newTestService(leads, rates, 1)

	result, err := svc.SyncClient(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalProcessedLeads != 1 {
		t.Fatalf("expected only the post-watermark lead in the batch, got %d", result.TotalProcessedLeads)
	}

	stored, _ := rates.GetRates(context.Background(), "c1")
	roofing := findRow(t, stored, domain.KeyService, "Roofing")
	if roofing.PastTotalCount != 2 || roofing.PastTotalEst != 1 {
		t.Fatalf("expected merged 2/1 counters, got %d/%d", roofing.PastTotalCount, roofing.PastTotalEst)
	}

	mark := rates.watermarks["c1"]
	if mark.Format("2006-01-02") != "2026-01-20" {
		t.Fatalf("expected watermark advanced to 2026-01-20, got %v", mark)
	}
}

func TestWatermarkNotAdvancedWhenUpsertFails(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	rates.upsertErr = errors.New("store down")
	leads.leads["c1"] = []domain.Lead{
		makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusEstimateSet),
	}
	svc := newTestService(leads, rates, 1)

	if _, err := svc.FullRecompute(context.Background(), "c1"); err == nil {
		t.Fatal("expected error when upsert fails")
	}
	if len(rates.watermarks) != 0 {
		t.Fatal("expected watermark untouched after failed upsert")
	}
}

func TestFleetSyncIsolatesFailingClient(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	leads.leads["good"] = []domain.Lead{
		makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusEstimateSet),
	}
	leads.leads["bad"] = []domain.Lead{
		makeLead("Siding", "set-b", "ad-2", "30302", "2026-01-06", domain.StatusJobBooked),
	}
	leads.getErr["bad"] = errors.New("tenant storage offline")
	svc := newTestService(leads, rates, 1)

	fleet, err := svc.FleetWideIncrementalSync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fleet.ProcessedClients != 1 {
		t.Fatalf("expected one processed client, got %d", fleet.ProcessedClients)
	}
	if len(fleet.Errors) != 1 || !strings.Contains(fleet.Errors[0], "client bad") {
		t.Fatalf("expected failing client recorded in errors, got %v", fleet.Errors)
	}
	if _, ok := rates.watermarks["good"]; !ok {
		t.Fatal("expected healthy client fully processed")
	}
}

func TestIncrementalForLeadIDsRejectsEmptyBatch(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	leads.leads["c1"] = []domain.Lead{
		makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusEstimateSet),
	}
	svc := newTestService(leads, rates, 1)

	_, err := svc.IncrementalForLeadIDs(context.Background(), "c1", nil)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for empty batch, got %v", err)
	}
	// An empty ID list must never widen into the client's full history.
	if len(rates.upserts) != 0 {
		t.Fatal("expected no upserts for rejected batch")
	}
}

func TestIncrementalForLeadIDsMergesOnlyNamedLeads(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	named := makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusEstimateSet)
	other := makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-06", domain.StatusEstimateSet)
	leads.leads["c1"] = []domain.Lead{named, other}
	svc := newTestService(leads, rates, 1)

	result, err := svc.IncrementalForLeadIDs(context.Background(), "c1", []uuid.UUID{named.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalProcessedLeads != 1 {
		t.Fatalf("expected only the named lead in the batch, got %d", result.TotalProcessedLeads)
	}

	stored, _ := rates.GetRates(context.Background(), "c1")
	roofing := findRow(t, stored, domain.KeyService, "Roofing")
	if roofing.PastTotalCount != 1 || roofing.PastTotalEst != 1 {
		t.Fatalf("expected 1/1 counters from the named lead, got %d/%d", roofing.PastTotalCount, roofing.PastTotalEst)
	}
}

func TestWatermarkAdvancesForTimestampLeadDates(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	batch := []domain.Lead{
		makeLead("Roofing", "set-a", "ad-1", "30301", "2026-03-14T09:30:00Z", domain.StatusEstimateSet),
	}
	svc := newTestService(leads, rates, 1)

	result, err := svc.WeeklyIncrementalUpdate(context.Background(), "c1", batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("expected timestamp-dated lead to aggregate cleanly, got %v", result.Errors)
	}

	mark, ok := rates.watermarks["c1"]
	if !ok {
		t.Fatal("expected watermark advanced for timestamp-dated lead")
	}
	if mark.Format("2006-01-02") != "2026-03-14" {
		t.Fatalf("expected watermark at 2026-03-14, got %v", mark)
	}
}

func TestFleetSyncParallelWorkersStillProcessAllClients(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		leads.leads[id] = []domain.Lead{
			makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusEstimateSet),
		}
	}
	svc := newTestService(leads, rates, 3)

	fleet, err := svc.FleetWideIncrementalSync(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fleet.ProcessedClients != 4 {
		t.Fatalf("expected all clients processed, got %d", fleet.ProcessedClients)
	}
	if len(fleet.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", fleet.Errors)
	}
}
