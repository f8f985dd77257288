package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blumarkets/hram/internal/modules/scoring"
)

type recordingApplier struct {
	applied []scoring.Result
	err     error
}

func (a *recordingApplier) ApplyRiskResult(result scoring.Result) error {
	if a.err != nil {
		return a.err
	}
	a.applied = append(a.applied, result)
	return nil
}

func setupRouter(t *testing.T) (chi.Router, *recordingApplier) {
	t.Helper()
	applier := &recordingApplier{}
	r := chi.NewRouter()
	NewHandler(scoring.DefaultQuestionnaire(), applier, zerolog.Nop()).RegisterRoutes(r)
	return r, applier
}

func TestGetQuestionnaire(t *testing.T) {
	router, _ := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/risk/questionnaire", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"questions"`)
	assert.Contains(t, rec.Body.String(), `"profiles"`)
}

func TestScoreDoesNotApply(t *testing.T) {
	router, applier := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/risk/score",
		strings.NewReader(`{"answers":{}}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"score"`)
	assert.Contains(t, rec.Body.String(), `"target_pct"`)
	assert.Empty(t, applier.applied)
}

func TestApplyInstallsTargets(t *testing.T) {
	router, applier := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/risk/apply",
		strings.NewReader(`{"answers":{}}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, applier.applied, 1)
	assert.NotEmpty(t, applier.applied[0].TargetPct)
}

func TestScoreRejectsBadBody(t *testing.T) {
	router, applier := setupRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/risk/score",
		strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, applier.applied)
}

func TestApplyFailureReturns500(t *testing.T) {
	router, applier := setupRouter(t)
	applier.err = assert.AnError

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/risk/apply",
		strings.NewReader(`{"answers":{}}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
