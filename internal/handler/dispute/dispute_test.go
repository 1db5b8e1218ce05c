package dispute

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/escrow-backend/internal/dispute"
	"github.com/dwarvesf/escrow-backend/internal/model"
	disputestore "github.com/dwarvesf/escrow-backend/internal/store/dispute"
	"github.com/dwarvesf/escrow-backend/internal/types/environments"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/view"
)

type mockDispute struct {
	mock.Mock
	dispute.IDispute
}

func (m *mockDispute) Open(ctx context.Context, req dispute.OpenRequest) (*model.Dispute, error) {
	args := m.Called(req)
	return disputeOrNil(args.Get(0)), args.Error(1)
}

func (m *mockDispute) Respond(ctx context.Context, req dispute.RespondRequest) (*model.Dispute, error) {
	args := m.Called(req)
	return disputeOrNil(args.Get(0)), args.Error(1)
}

func (m *mockDispute) Vote(ctx context.Context, req dispute.VoteRequest) (*model.Dispute, error) {
	args := m.Called(req)
	return disputeOrNil(args.Get(0)), args.Error(1)
}

func (m *mockDispute) Get(ctx context.Context, disputeID uint64) (*model.Dispute, error) {
	args := m.Called(disputeID)
	return disputeOrNil(args.Get(0)), args.Error(1)
}

func (m *mockDispute) GetByBiz(ctx context.Context, domain model.DisputeDomain, bizID string) (*model.Dispute, error) {
	args := m.Called(domain, bizID)
	return disputeOrNil(args.Get(0)), args.Error(1)
}

func (m *mockDispute) ListByAccount(ctx context.Context, filter disputestore.ListFilter) ([]*model.Dispute, int64, error) {
	args := m.Called(filter)
	return args.Get(0).([]*model.Dispute), args.Get(1).(int64), args.Error(2)
}

func disputeOrNil(v interface{}) *model.Dispute {
	if v == nil {
		return nil
	}
	return v.(*model.Dispute)
}

func setup(t *testing.T) (*gin.Engine, *mockDispute) {
	gin.SetMode(gin.TestMode)
	m := new(mockDispute)
	t.Cleanup(func() { m.AssertExpectations(t) })
	h := New(m, logger.New(environments.Test), nil)

	r := gin.New()
	r.POST("/disputes", h.Open)
	r.GET("/disputes", h.ListDisputes)
	r.GET("/disputes/:id", h.GetDispute)
	r.POST("/disputes/:id/respond", h.Respond)
	r.POST("/disputes/:id/votes", h.Vote)
	r.GET("/disputes/biz/:domain/:bizId", h.GetByBiz)
	return r, m
}

func serve(t *testing.T, r *gin.Engine, method, path, body string) (int, view.Response[map[string]any]) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp view.Response[map[string]any]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestOpen(t *testing.T) {
	r, m := setup(t)
	m.On("Open", mock.MatchedBy(func(req dispute.OpenRequest) bool {
		return req.Domain == model.DisputeDomainOtc && req.BizID == "12" &&
			req.Complainant == "buyer" && req.Deposit.Equal(decimal.NewFromInt(100)) &&
			len(req.EvidenceCIDs) == 1
	})).Return(&model.Dispute{ID: 1, Domain: model.DisputeDomainOtc, BizID: "12", Status: model.DisputeStatusSubmitted}, nil)

	code, resp := serve(t, r, http.MethodPost, "/disputes",
		`{"domain":"otc","biz_id":"12","complainant":"buyer","deposit":"100","evidence_cids":["bafkreidpgkdasegkb6zkedd73ikdmzvqtw7y3njdqgk4scsyn62uf7ymvu"],"reason":"paid, never released"}`)

	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, "submitted", resp.Data["status"])
	assert.EqualValues(t, 1, resp.Data["dispute_id"])
}

func TestOpen_AlreadyDisputed(t *testing.T) {
	r, m := setup(t)
	m.On("Open", mock.Anything).Return(nil, errors.Wrap(model.ErrAlreadyDisputed, "otc:12"))

	code, resp := serve(t, r, http.MethodPost, "/disputes", `{"domain":"otc","biz_id":"12","complainant":"buyer","deposit":"100"}`)

	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, resp.Error, "already disputed")
	assert.NotNil(t, resp.Request)
}

func TestRespond_TakesIDFromPath(t *testing.T) {
	r, m := setup(t)
	m.On("Respond", mock.MatchedBy(func(req dispute.RespondRequest) bool {
		return req.DisputeID == 5 && req.Respondent == "seller"
	})).Return(&model.Dispute{ID: 5, Status: model.DisputeStatusResponded}, nil)

	code, resp := serve(t, r, http.MethodPost, "/disputes/5/respond", `{"respondent":"seller","deposit":"100"}`)

	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, "responded", resp.Data["status"])
}

func TestVote(t *testing.T) {
	r, m := setup(t)
	resolved := &model.Dispute{ID: 5, Status: model.DisputeStatusResolvedSettlement, ComplainantShareBps: 4000}
	resolved.SetArbitrators([]string{"arb-1"})
	m.On("Vote", dispute.VoteRequest{
		DisputeID:           5,
		Arbitrator:          "arb-1",
		Verdict:             model.VerdictSettlement,
		ComplainantShareBps: 4000,
	}).Return(resolved, nil)

	code, resp := serve(t, r, http.MethodPost, "/disputes/5/votes", `{"arbitrator":"arb-1","verdict":"settlement","complainant_share_bps":4000}`)

	require.Equal(t, http.StatusOK, code, resp.Error)
	assert.Equal(t, "resolved_settlement", resp.Data["status"])
	assert.Equal(t, []interface{}{"arb-1"}, resp.Data["arbitrators"])
}

func TestVote_OffPanel(t *testing.T) {
	r, m := setup(t)
	m.On("Vote", mock.Anything).Return(nil, model.Validationf("arb-9 is not on the panel"))

	code, _ := serve(t, r, http.MethodPost, "/disputes/5/votes", `{"arbitrator":"arb-9","verdict":"complainant_win"}`)

	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetByBiz(t *testing.T) {
	r, m := setup(t)
	m.On("GetByBiz", model.DisputeDomainSwap, "44").Return(&model.Dispute{ID: 2, Domain: model.DisputeDomainSwap, BizID: "44"}, nil)

	code, resp := serve(t, r, http.MethodGet, "/disputes/biz/swap/44", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "44", resp.Data["biz_id"])

	code, _ = serve(t, r, http.MethodGet, "/disputes/biz/lottery/44", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetDispute(t *testing.T) {
	r, m := setup(t)
	m.On("Get", uint64(3)).Return(nil, errors.Wrap(model.ErrNotFound, "dispute 3"))

	code, _ := serve(t, r, http.MethodGet, "/disputes/3", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = serve(t, r, http.MethodGet, "/disputes/0", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListDisputes(t *testing.T) {
	r, m := setup(t)
	m.On("ListByAccount", disputestore.ListFilter{Account: "buyer", Domain: model.DisputeDomainOtc, Limit: 100, Offset: 5}).
		Return([]*model.Dispute{{ID: 1}}, int64(6), nil)

	code, _ := serve(t, r, http.MethodGet, "/disputes", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp := serve(t, r, http.MethodGet, "/disputes?account=buyer&domain=otc&limit=500&offset=5", "")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 6, resp.Data["total"])
	assert.Len(t, resp.Data["disputes"], 1)
}
