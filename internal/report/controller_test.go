package report

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bim-index-api/internal/apperror"

	"github.com/gin-gonic/gin"
)

type fakeReportService struct {
	Called map[string]int

	LastNaming NamingRequest
	LastModel  string
	Compliance *ComplianceReport
	Cobie_     *FillRateReport
	Err        error
}

func (f *fakeReportService) bump(name string) {
	if f.Called == nil {
		f.Called = map[string]int{}
	}
	f.Called[name]++
}

func (f *fakeReportService) Naming(req NamingRequest) (*ComplianceReport, error) {
	f.bump("Naming")
	f.LastNaming = req
	return f.Compliance, f.Err
}

func (f *fakeReportService) FillRate(modelID uint) ([]FillRateRow, error) {
	f.bump("FillRate")
	return nil, f.Err
}

func (f *fakeReportService) Cobie(modelName string) (*FillRateReport, error) {
	f.bump("Cobie")
	f.LastModel = modelName
	return f.Cobie_, f.Err
}

func setupRouter(svc ReportServiceAPI) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, svc, func(c *gin.Context) { c.Next() })
	return r
}

func doReq(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNamingController(t *testing.T) {
	svc := &fakeReportService{Compliance: &ComplianceReport{TotalFiles: 1}}
	r := setupRouter(svc)

	w := doReq(r, http.MethodPost, "/api/reports/naming", `{"files":["a.rvt"]}`)
	if w.Code != http.StatusOK || len(svc.LastNaming.Files) != 1 || svc.LastNaming.All {
		t.Fatalf("status=%d req=%+v", w.Code, svc.LastNaming)
	}

	w = doReq(r, http.MethodPost, "/api/reports/naming?models=all", "")
	if w.Code != http.StatusOK || !svc.LastNaming.All {
		t.Fatalf("status=%d req=%+v", w.Code, svc.LastNaming)
	}

	w = doReq(r, http.MethodPost, "/api/reports/naming?models=P01-T02-ARC,%20P01-T02-MEP", "")
	if w.Code != http.StatusOK || len(svc.LastNaming.Models) != 2 || svc.LastNaming.Models[1] != "P01-T02-MEP" {
		t.Fatalf("status=%d req=%+v", w.Code, svc.LastNaming)
	}

	w = doReq(r, http.MethodPost, "/api/reports/naming", `{bad`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bind status=%d", w.Code)
	}
}

func TestNamingController_XLSX(t *testing.T) {
	svc := &fakeReportService{Compliance: &ComplianceReport{Summary: []FieldSummary{{Field: FieldFormat, Total: 1}}}}
	w := doReq(setupRouter(svc), http.MethodPost, "/api/reports/naming?models=all&format=xlsx", "")

	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("status=%d content-type=%q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "naming_compliance_") {
		t.Fatalf("disposition=%q", w.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected a zip container")
	}
}

func TestCobieController(t *testing.T) {
	svc := &fakeReportService{Cobie_: &FillRateReport{Model: "P01-T02-ARC", Rows: []FillRateRow{{DisplayName: "COBie.Type.Category", Filled: 2}}}}
	w := doReq(setupRouter(svc), http.MethodGet, "/api/reports/cobie/P01-T02-ARC", "")

	if w.Code != http.StatusOK || svc.LastModel != "P01-T02-ARC" {
		t.Fatalf("status=%d model=%q", w.Code, svc.LastModel)
	}
	if !strings.Contains(w.Body.String(), `"display_name":"COBie.Type.Category"`) {
		t.Fatalf("body=%s", w.Body.String())
	}

	svc = &fakeReportService{Err: apperror.NotFound(`model "x" not found`)}
	w = doReq(setupRouter(svc), http.MethodGet, "/api/reports/cobie/x", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}
