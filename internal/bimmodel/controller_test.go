package bimmodel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bim-index-api/internal/apperror"

	"github.com/gin-gonic/gin"
)

type fakeModelService struct {
	LastTender string
	LastName   string
	ListOut    []BimModel
	HistoryOut []BimModelVersion
	Err        error
}

func (f *fakeModelService) GetByName(name string) (*BimModel, error) {
	f.LastName = name
	if f.Err != nil {
		return nil, f.Err
	}
	return &BimModel{Name: name}, nil
}
func (f *fakeModelService) GetOrCreate(name string) (*BimModel, error) { return &BimModel{Name: name}, nil }
func (f *fakeModelService) RecordVersion(name string, rec VersionRecord) error {
	return nil
}
func (f *fakeModelService) MarkProcessed(modelID uint, version int) error { return nil }
func (f *fakeModelService) History(name string) ([]BimModelVersion, error) {
	f.LastName = name
	return f.HistoryOut, f.Err
}
func (f *fakeModelService) List(tender string) ([]BimModel, error) {
	f.LastTender = tender
	return f.ListOut, f.Err
}
func (f *fakeModelService) ModelsByID(ids []uint) (map[uint]BimModel, error) {
	return map[uint]BimModel{}, nil
}

func setupRouter(svc ModelServiceAPI) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, svc, func(c *gin.Context) { c.Next() })
	return r
}

func TestGetModels_PassesTender(t *testing.T) {
	svc := &fakeModelService{ListOut: []BimModel{{Name: "A"}}}
	r := setupRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/models?tender=P01-T02", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if svc.LastTender != "P01-T02" {
		t.Fatalf("tender=%q", svc.LastTender)
	}
}

func TestGetModelHistory(t *testing.T) {
	svc := &fakeModelService{HistoryOut: []BimModelVersion{{Version: 2}, {Version: 1}}}
	r := setupRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/models/TerminalA/history", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var out struct {
		Model string            `json:"model"`
		Data  []BimModelVersion `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Model != "TerminalA" || len(out.Data) != 2 {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestGetModel_NotFound(t *testing.T) {
	svc := &fakeModelService{Err: apperror.NotFound("model \"X\" not found")}
	r := setupRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/models/X", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
}
