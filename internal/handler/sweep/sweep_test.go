package sweep

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/escrow-backend/internal/ledger"
	"github.com/dwarvesf/escrow-backend/internal/sweeper"
	"github.com/dwarvesf/escrow-backend/internal/types/environments"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/view"
)

type stubSweeper struct {
	report *sweeper.Report
	err    error
}

func (s *stubSweeper) Sweep(ctx context.Context) (*sweeper.Report, error) {
	return s.report, s.err
}

func (s *stubSweeper) WatchFinalized(ctx context.Context, client ledger.IClient) error {
	return nil
}

func trigger(t *testing.T, s sweeper.ISweeper) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/admin/sweep", New(s, logger.New(environments.Test)).Trigger)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/sweep", nil))
	return w
}

func TestTrigger(t *testing.T) {
	report := &sweeper.Report{ExpiredOrders: sweeper.StepReport{Processed: 2}}

	w := trigger(t, &stubSweeper{report: report})

	require.Equal(t, http.StatusOK, w.Code)
	var resp view.Response[sweeper.Report]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Data.ExpiredOrders.Processed)
}

func TestTrigger_InProgress(t *testing.T) {
	w := trigger(t, &stubSweeper{err: sweeper.ErrSweepInProgress})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTrigger_ListingFailure(t *testing.T) {
	w := trigger(t, &stubSweeper{report: &sweeper.Report{}, err: errors.New("connection reset")})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
