package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-client/internal/api/handlers"
	"github.com/dvloznov/finance-client/internal/batchimport"
	"github.com/dvloznov/finance-client/internal/domain"
	"github.com/dvloznov/finance-client/internal/jobs"
	"github.com/dvloznov/finance-client/internal/jobs/inmemory"
	"github.com/dvloznov/finance-client/internal/reports"
	"github.com/dvloznov/finance-client/internal/rules"
	"github.com/dvloznov/finance-client/internal/workflow"
)

// fakeBackend stands in for the finance REST backend.
type fakeBackend struct {
	transactions []domain.Transaction
	rules        []domain.Rule
	accounts     []domain.Account

	bulkErr error
	bulk    [][]domain.TransactionFormData
	saved   []domain.SaveTransactionRequest
}

func (b *fakeBackend) FetchTransactionsPage(ctx context.Context, filter domain.TransactionFilter, page, size int, sort string) (domain.Page[domain.Transaction], error) {
	return domain.Page[domain.Transaction]{Content: b.transactions, TotalElements: len(b.transactions), TotalPages: 1, Size: size, First: true, Last: true}, nil
}

func (b *fakeBackend) BulkUpdateTransactions(ctx context.Context, updates []domain.TransactionFormData) ([]domain.Transaction, error) {
	if b.bulkErr != nil {
		return nil, b.bulkErr
	}
	b.bulk = append(b.bulk, updates)
	return make([]domain.Transaction, len(updates)), nil
}

func (b *fakeBackend) FetchRules(ctx context.Context, kind domain.RuleKind) ([]domain.Rule, error) {
	return b.rules, nil
}

func (b *fakeBackend) FetchTransactionsInRange(ctx context.Context, start, end string) ([]domain.Transaction, error) {
	return b.transactions, nil
}

func (b *fakeBackend) FetchAccounts(ctx context.Context) ([]domain.Account, error) {
	return b.accounts, nil
}

func (b *fakeBackend) UploadCSV(ctx context.Context, accountID int64, fileName string, data []byte, bank domain.BankName) ([]domain.TransactionPreview, error) {
	if strings.Contains(fileName, "broken") {
		return nil, errors.New("parse error")
	}
	return []domain.TransactionPreview{{Date: "2025-01-02", Description: "COFFEE", Amount: decimal.NewFromInt(-4), Type: domain.TypeExpense}}, nil
}

func (b *fakeBackend) SaveImportedTransactions(ctx context.Context, accountID int64, req domain.SaveTransactionRequest) (string, error) {
	b.saved = append(b.saved, req)
	return "Saved", nil
}

type tokens string

func (t tokens) Token(context.Context) (string, error) { return string(t), nil }

type testServer struct {
	backend  *fakeBackend
	registry *batchimport.Registry
	store    *inmemory.Store
	server   *httptest.Server
}

func newTestServer(t *testing.T, token string) *testServer {
	t.Helper()

	discover := domain.BankDiscover
	backend := &fakeBackend{
		transactions: []domain.Transaction{
			{ID: 1, Date: "2025-01-05", Description: domain.StrPtr("STARBUCKS 123"), Amount: decimal.NewFromInt(-5), Type: domain.TypeExpense},
			{ID: 2, Date: "2025-01-06", Description: domain.StrPtr("PAYROLL"), Amount: decimal.NewFromInt(1000), Type: domain.TypeIncome},
		},
		rules:    []domain.Rule{{Keyword: "STARBUCKS", Value: "Starbucks", Kind: domain.RuleKindVendor}},
		accounts: []domain.Account{{ID: 9, Name: "Discover", BankName: &discover}},
	}

	applier := rules.NewApplier(backend, backend, backend)
	registry := batchimport.NewRegistry(batchimport.NewCoordinator(backend, backend, nil))
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(10, 1, store)

	dispatcher := &workflow.Dispatcher{Rules: applier, Sessions: registry, Transactions: backend}
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, queue.Start(ctx, dispatcher.Handle))

	log := zerolog.Nop()
	router := NewRouter(Handlers{
		Rules:   handlers.NewRulesHandler(applier, queue, log),
		Reports: handlers.NewReportsHandler(backend, queue, log),
		Imports: handlers.NewImportsHandler(registry, backend, queue, log),
		Jobs:    handlers.NewJobsHandler(store, log),
	}, tokens(token), log)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		_ = queue.Stop(context.Background())
	})

	return &testServer{backend: backend, registry: registry, store: store, server: srv}
}

func (ts *testServer) do(t *testing.T, method, path string, body []byte, contentType string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, ts.server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (ts *testServer) waitForJob(t *testing.T, id string) *jobs.Job {
	t.Helper()
	var job *jobs.Job
	require.Eventually(t, func() bool {
		j, err := ts.store.GetJob(context.Background(), id)
		if err != nil || !j.Finished() {
			return false
		}
		job = j
		return true
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestRouter_RequiresToken(t *testing.T) {
	ts := newTestServer(t, "")

	resp, body := ts.do(t, http.MethodGet, "/api/jobs", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Not signed in", body["error"])

	resp, body = ts.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "healthy", body["status"])
}

// previewPlan fetches the rule preview and returns its plan id.
func (ts *testServer) previewPlan(t *testing.T, kind string) string {
	t.Helper()
	resp, body := ts.do(t, http.MethodGet, "/api/rules/"+kind+"/preview", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	plan, _ := body["planId"].(string)
	require.NotEmpty(t, plan)
	return plan
}

func TestRouter_RulePreviewAndApply(t *testing.T) {
	ts := newTestServer(t, "token")

	resp, body := ts.do(t, http.MethodGet, "/api/rules/vendor/preview", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, body["count"])
	require.EqualValues(t, 2, body["scanned"])
	require.Equal(t, false, body["largeUpdate"])
	plan := body["planId"].(string)

	resp, body = ts.do(t, http.MethodPost, "/api/rules/vendor/apply", []byte(`{"planId":"`+plan+`"}`), "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, body["updated"])
	require.Len(t, ts.backend.bulk, 1)
	require.Equal(t, "Starbucks", domain.StringValue(ts.backend.bulk[0][0].VendorName))

	resp, body = ts.do(t, http.MethodGet, "/api/rules/merchant/preview", nil, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body["error"], "unknown rule kind")
}

func TestRouter_ApplyRequiresPlan(t *testing.T) {
	ts := newTestServer(t, "token")

	resp, body := ts.do(t, http.MethodPost, "/api/rules/vendor/apply", nil, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, body["error"], "planId")

	resp, _ = ts.do(t, http.MethodPost, "/api/rules/vendor/apply?async=true", nil, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, ts.backend.bulk)
}

// The user confirmed one plan; a new rule lands before they click apply.
func TestRouter_ApplyPlanChanged(t *testing.T) {
	ts := newTestServer(t, "token")
	plan := ts.previewPlan(t, "vendor")

	ts.backend.rules = append(ts.backend.rules, domain.Rule{Keyword: "PAYROLL", Value: "Employer", Kind: domain.RuleKindVendor})

	resp, body := ts.do(t, http.MethodPost, "/api/rules/vendor/apply?planId="+plan, nil, "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Empty(t, ts.backend.bulk, "a changed plan must not be persisted")

	fresh := body["preview"].(map[string]any)
	require.EqualValues(t, 2, fresh["count"])
	require.NotEqual(t, plan, fresh["planId"])

	resp, body = ts.do(t, http.MethodPost, "/api/rules/vendor/apply?planId="+fresh["planId"].(string), nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, body["updated"])
	require.Len(t, ts.backend.bulk, 1)
}

func TestRouter_ApplyPersistFailure(t *testing.T) {
	ts := newTestServer(t, "token")
	plan := ts.previewPlan(t, "vendor")
	ts.backend.bulkErr = errors.New("backend down")

	resp, body := ts.do(t, http.MethodPost, "/api/rules/vendor/apply?planId="+plan, nil, "")
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "Failed to apply vendor rules", body["error"])
}

func TestRouter_ApplyAsync(t *testing.T) {
	ts := newTestServer(t, "token")
	plan := ts.previewPlan(t, "vendor")

	resp, body := ts.do(t, http.MethodPost, "/api/rules/vendor/apply?async=true&planId="+plan, nil, "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	job := ts.waitForJob(t, body["jobId"].(string))
	require.Equal(t, jobs.JobStatusCompleted, job.Status)
	require.Len(t, ts.backend.bulk, 1)

	resp, body = ts.do(t, http.MethodGet, "/api/jobs/"+job.ID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "apply_rules", body["type"])

	resp, _ = ts.do(t, http.MethodGet, "/api/jobs/missing", nil, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_ApplyAsyncPlanChanged(t *testing.T) {
	ts := newTestServer(t, "token")

	resp, body := ts.do(t, http.MethodPost, "/api/rules/vendor/apply?async=true&planId=stale", nil, "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	job := ts.waitForJob(t, body["jobId"].(string))
	require.Equal(t, jobs.JobStatusFailed, job.Status)
	require.Contains(t, job.Error, rules.ErrPlanChanged.Error())
	require.Empty(t, ts.backend.bulk)
}

func TestRouter_Report(t *testing.T) {
	ts := newTestServer(t, "token")

	resp, body := ts.do(t, http.MethodGet, "/api/reports?start=2025-01-01&end=2025-01-31", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	var report reports.Report
	require.NoError(t, json.Unmarshal(raw, &report))
	require.True(t, report.Summary.Income.Equal(decimal.NewFromInt(1000)))
	require.Len(t, report.Months, 1)

	resp, _ = ts.do(t, http.MethodGet, "/api/reports?start=2025-02-01&end=2025-01-01", nil, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/reports/export", nil, "")
	require.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func multipartFiles(t *testing.T, names ...string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("date,amount\n"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestRouter_ImportWorkflow(t *testing.T) {
	ts := newTestServer(t, "token")

	body, contentType := multipartFiles(t, "discover-jan.csv", "broken.csv", "discover-jan.csv")
	resp, out := ts.do(t, http.MethodPost, "/api/imports", body, contentType)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, []any{"discover-jan.csv"}, out["skipped"])

	session := out["session"].(map[string]any)
	id := session["id"].(string)
	require.Len(t, session["items"], 2)

	// broken.csv has no detectable bank; preview is blocked until resolved.
	resp, out = ts.do(t, http.MethodPost, "/api/imports/"+id+"/preview", nil, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPut, "/api/imports/"+id+"/items/1/account", []byte(`{"accountId":9,"bankName":"DISCOVER"}`), "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, out = ts.do(t, http.MethodPost, "/api/imports/"+id+"/preview", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := out["result"].(map[string]any)
	require.EqualValues(t, 1, result["uploaded"])
	require.EqualValues(t, 1, result["failed"])
	require.Equal(t, "preview", out["session"].(map[string]any)["step"])

	// A rejected selection leaves the previewed item as it was.
	for _, req := range []string{
		`{"accountId":9,"bankName":"BOGUS"}`,
		`{"accountId":99}`,
	} {
		resp, _ = ts.do(t, http.MethodPut, "/api/imports/"+id+"/items/0/account", []byte(req), "application/json")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, req)

		resp, out = ts.do(t, http.MethodGet, "/api/imports/"+id, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "preview", out["step"])
		item := out["items"].([]any)[0].(map[string]any)
		require.Equal(t, "ready", item["status"], req)
		require.Equal(t, "DISCOVER", item["bankName"], req)
		require.EqualValues(t, 9, item["accountId"], req)
		require.Len(t, item["previews"], 1, req)
	}

	resp, out = ts.do(t, http.MethodPost, "/api/imports/"+id+"/save", nil, "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	job := ts.waitForJob(t, out["jobId"].(string))
	require.Equal(t, jobs.JobTypeImportSave, job.Type)
	require.Equal(t, id, job.Param(workflow.ParamSessionID))
	require.Equal(t, jobs.JobStatusCompleted, job.Status)
	require.Len(t, ts.backend.saved, 1)
	require.Equal(t, "discover-jan.csv", ts.backend.saved[0].FileName)

	resp, _ = ts.do(t, http.MethodDelete, "/api/imports/"+id+"/items/7", nil, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodDelete, "/api/imports/"+id, nil, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/api/imports/"+id, nil, "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_ImportPreviewAllFailed(t *testing.T) {
	ts := newTestServer(t, "token")

	body, contentType := multipartFiles(t, "broken-jan.csv", "broken-feb.csv")
	resp, out := ts.do(t, http.MethodPost, "/api/imports", body, contentType)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := out["session"].(map[string]any)["id"].(string)

	for _, index := range []string{"0", "1"} {
		resp, _ = ts.do(t, http.MethodPut, "/api/imports/"+id+"/items/"+index+"/account", []byte(`{"accountId":9,"bankName":"DISCOVER"}`), "application/json")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, out = ts.do(t, http.MethodPost, "/api/imports/"+id+"/preview", nil, "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NotEmpty(t, out["error"])

	result := out["result"].(map[string]any)
	require.EqualValues(t, 0, result["uploaded"])
	require.EqualValues(t, 2, result["failed"])

	session := out["session"].(map[string]any)
	require.Equal(t, "select", session["step"])
	for _, raw := range session["items"].([]any) {
		item := raw.(map[string]any)
		require.Equal(t, "error", item["status"])
		require.NotEmpty(t, item["error"])
	}
}
