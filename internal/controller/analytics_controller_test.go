package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"oee-analytics/internal/apperror"
	"oee-analytics/internal/logging"
	"oee-analytics/internal/oee"
	"oee-analytics/internal/service"

	"github.com/gin-gonic/gin"
)

// mockAnalyticsService is a mock implementation of AnalyticsService for testing
type mockAnalyticsService struct {
	analytics *service.HistoricalAnalytics
	err       error

	gotMachineID *string
	gotMonth     *time.Time
}

func (m *mockAnalyticsService) GetHistoricalAnalytics(ctx context.Context, machineID *string) (*service.HistoricalAnalytics, error) {
	m.gotMachineID = machineID
	if m.err != nil {
		return nil, m.err
	}
	return m.analytics, nil
}

func (m *mockAnalyticsService) GetMonthlyAnalytics(ctx context.Context, machineID *string, month time.Time) (*service.HistoricalAnalytics, error) {
	m.gotMachineID = machineID
	m.gotMonth = &month
	if m.err != nil {
		return nil, m.err
	}
	return m.analytics, nil
}

func setupRouter(controller *AnalyticsController) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	v1 := r.Group("/v1")
	{
		v1.GET("/analytics/historical", controller.GetHistoricalAnalytics)
	}
	return r
}

func sampleAnalytics() *service.HistoricalAnalytics {
	return &service.HistoricalAnalytics{
		Period: service.PeriodInfo{
			StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		Averages: oee.Metrics{OEE: 62.5, Availability: 80, Performance: 78.1, Quality: 100},
		Totals: service.AnalyticsTotals{
			Production: 1200,
			Records:    3,
		},
		Trend: -1.5,
		Risk:  service.RiskAssessment{Level: service.RiskMedium},
	}
}

func TestGetHistoricalAnalytics_Success(t *testing.T) {
	mockService := &mockAnalyticsService{analytics: sampleAnalytics()}
	controller := NewAnalyticsController(mockService, logging.Discard())
	router := setupRouter(controller)

	req, _ := http.NewRequest("GET", "/v1/analytics/historical", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, w.Code)
	}

	var response service.HistoricalAnalytics
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if response.Averages.OEE != 62.5 {
		t.Errorf("Expected average OEE 62.5, got %v", response.Averages.OEE)
	}
	if response.Totals.Records != 3 {
		t.Errorf("Expected 3 records, got %d", response.Totals.Records)
	}
	if mockService.gotMachineID != nil {
		t.Errorf("Expected no machine filter, got %v", *mockService.gotMachineID)
	}
	if mockService.gotMonth != nil {
		t.Errorf("Expected current month path, got month %v", mockService.gotMonth)
	}
}

func TestGetHistoricalAnalytics_WithMachineAndMonth(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantMonth time.Time
	}{
		{
			name:      "year-month",
			query:     "?machine_id=m-1&month=2024-02",
			wantMonth: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "date inside month",
			query:     "?machine_id=m-1&month=2024-02-17",
			wantMonth: time.Date(2024, 2, 17, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "RFC3339",
			query:     "?machine_id=m-1&month=2024-02-17T10:00:00Z",
			wantMonth: time.Date(2024, 2, 17, 10, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &mockAnalyticsService{analytics: sampleAnalytics()}
			router := setupRouter(NewAnalyticsController(mockService, logging.Discard()))

			req, _ := http.NewRequest("GET", "/v1/analytics/historical"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status code %d, got %d", http.StatusOK, w.Code)
			}
			if mockService.gotMachineID == nil || *mockService.gotMachineID != "m-1" {
				t.Errorf("Expected machine filter m-1, got %v", mockService.gotMachineID)
			}
			if mockService.gotMonth == nil || !mockService.gotMonth.Equal(tt.wantMonth) {
				t.Errorf("Expected month %v, got %v", tt.wantMonth, mockService.gotMonth)
			}
		})
	}
}

func TestGetHistoricalAnalytics_InvalidMonth(t *testing.T) {
	mockService := &mockAnalyticsService{}
	router := setupRouter(NewAnalyticsController(mockService, logging.Discard()))

	req, _ := http.NewRequest("GET", "/v1/analytics/historical?month=march", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status code %d, got %d", http.StatusBadRequest, w.Code)
	}

	var errorResponse map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &errorResponse); err != nil {
		t.Fatalf("Failed to unmarshal error response: %v", err)
	}
	if errorResponse["error"] != "Invalid month" {
		t.Errorf("Expected error 'Invalid month', got %v", errorResponse["error"])
	}
}

func TestGetHistoricalAnalytics_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "store unavailable",
			err:        &apperror.TerminalStoreError{Op: "list_oee_history", Primary: errors.New("primary down"), Err: errors.New("fallback down")},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "unknown machine",
			err:        apperror.NotFound("machine", "m-404"),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "validation",
			err:        apperror.Invalid("machine_id", "is required"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &mockAnalyticsService{err: tt.err}
			router := setupRouter(NewAnalyticsController(mockService, logging.Discard()))

			req, _ := http.NewRequest("GET", "/v1/analytics/historical?machine_id=m-404", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status code %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestGetHistoricalAnalytics_HidesInternalErrors(t *testing.T) {
	mockService := &mockAnalyticsService{err: errors.New("pq: password authentication failed")}
	router := setupRouter(NewAnalyticsController(mockService, logging.Discard()))

	req, _ := http.NewRequest("GET", "/v1/analytics/historical", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var errorResponse map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &errorResponse); err != nil {
		t.Fatalf("Failed to unmarshal error response: %v", err)
	}
	if errorResponse["message"] != "Failed to retrieve analytics data" {
		t.Errorf("Expected generic message, got %v", errorResponse["message"])
	}
}

func TestParseISO8601Date(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "date only", input: "2024-03-15", want: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "RFC3339 with offset", input: "2024-03-15T10:00:00+02:00", want: time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)},
		{name: "no zone", input: "2024-03-15T10:00:00", want: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)},
		{name: "garbage", input: "15/03/2024", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseISO8601Date(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseISO8601Date(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseISO8601Date(%q) unexpected error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseISO8601Date(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
