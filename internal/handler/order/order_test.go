package order_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/dwarvesf/escrow-backend/internal/handler/order"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/otc"
	"github.com/dwarvesf/escrow-backend/internal/store/otcorder"
	"github.com/dwarvesf/escrow-backend/internal/types/environments"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/view"
)

// MockOtc overrides the calls the handler makes; the embedded interface
// panics on anything else.
type MockOtc struct {
	mock.Mock
	otc.IOtc
}

func (m *MockOtc) CreateOrder(ctx context.Context, req otc.CreateOrderRequest) (*model.OtcOrder, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OtcOrder), args.Error(1)
}

func (m *MockOtc) MarkPaid(ctx context.Context, orderID uint64, buyer, paymentRef string) (*model.OtcOrder, error) {
	args := m.Called(orderID, buyer, paymentRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OtcOrder), args.Error(1)
}

func (m *MockOtc) Cancel(ctx context.Context, orderID uint64, caller string) (*model.OtcOrder, error) {
	args := m.Called(orderID, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OtcOrder), args.Error(1)
}

func (m *MockOtc) Get(ctx context.Context, orderID uint64) (*model.OtcOrder, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OtcOrder), args.Error(1)
}

func (m *MockOtc) ListByAccount(ctx context.Context, filter otcorder.ListFilter) ([]*model.OtcOrder, int64, error) {
	args := m.Called(filter)
	return args.Get(0).([]*model.OtcOrder), args.Get(1).(int64), args.Error(2)
}

var _ = Describe("Order handler", func() {
	var (
		mockOtc *MockOtc
		router  *gin.Engine
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		mockOtc = new(MockOtc)
		h := order.New(mockOtc, logger.New(environments.Test), nil)

		router = gin.New()
		router.POST("/orders", h.CreateOrder)
		router.GET("/orders", h.ListOrders)
		router.GET("/orders/:id", h.GetOrder)
		router.POST("/orders/:id/paid", h.MarkPaid)
		router.POST("/orders/:id/cancel", h.Cancel)
	})

	AfterEach(func() {
		mockOtc.AssertExpectations(GinkgoT())
	})

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decode := func(w *httptest.ResponseRecorder) view.Response[map[string]any] {
		var resp view.Response[map[string]any]
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return resp
	}

	Context("CreateOrder", func() {
		It("passes the parsed order to the otc engine", func() {
			mockOtc.On("CreateOrder", mock.MatchedBy(func(req otc.CreateOrderRequest) bool {
				return req.Buyer == "buyer" && req.Seller == "seller" &&
					req.Qty.Equal(decimal.NewFromInt(50)) &&
					req.Amount.Equal(decimal.NewFromInt(500)) &&
					req.TTL == time.Minute
			})).Return(&model.OtcOrder{ID: 7, Buyer: "buyer", Seller: "seller", State: model.OtcOrderStateCreated}, nil)

			w := serve(http.MethodPost, "/orders", `{"buyer":"buyer","seller":"seller","qty":"50","amount":"500","ttl_seconds":60}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp.Error).To(BeEmpty())
			Expect(resp.Data["state"]).To(Equal(string(model.OtcOrderStateCreated)))
		})

		It("rejects a body without buyer", func() {
			w := serve(http.MethodPost, "/orders", `{"seller":"seller","qty":"50","amount":"500"}`)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			mockOtc.AssertNotCalled(GinkgoT(), "CreateOrder", mock.Anything)
		})

		It("maps insufficient balance to 402", func() {
			mockOtc.On("CreateOrder", mock.Anything).
				Return(nil, errors.Wrap(model.ErrInsufficientBalance, "seller"))

			w := serve(http.MethodPost, "/orders", `{"buyer":"buyer","seller":"seller","qty":"50","amount":"500"}`)

			Expect(w.Code).To(Equal(http.StatusPaymentRequired))
			Expect(decode(w).Error).To(ContainSubstring("insufficient balance"))
		})
	})

	Context("transitions", func() {
		It("rejects a non numeric id", func() {
			w := serve(http.MethodPost, "/orders/abc/paid", `{"buyer":"buyer"}`)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("marks the order paid", func() {
			mockOtc.On("MarkPaid", uint64(3), "buyer", "bank-ref-1").
				Return(&model.OtcOrder{ID: 3, State: model.OtcOrderStatePaidOrCommitted}, nil)

			w := serve(http.MethodPost, "/orders/3/paid", `{"buyer":"buyer","payment_ref":"bank-ref-1"}`)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(decode(w).Data["state"]).To(Equal(string(model.OtcOrderStatePaidOrCommitted)))
		})

		It("maps an invalid transition to 409", func() {
			mockOtc.On("Cancel", uint64(3), "seller").
				Return(nil, model.InvalidTransitionf("seller cannot cancel a paid order"))

			w := serve(http.MethodPost, "/orders/3/cancel", `{"caller":"seller"}`)

			Expect(w.Code).To(Equal(http.StatusConflict))
		})
	})

	Context("queries", func() {
		It("returns 404 for an unknown order", func() {
			mockOtc.On("Get", uint64(99)).Return(nil, errors.Wrap(model.ErrNotFound, "order 99"))

			w := serve(http.MethodGet, "/orders/99", "")

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("requires an account to list", func() {
			w := serve(http.MethodGet, "/orders", "")

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("lists with the default page", func() {
			mockOtc.On("ListByAccount", otcorder.ListFilter{Account: "buyer", Limit: 20}).
				Return([]*model.OtcOrder{{ID: 1}, {ID: 2}}, int64(2), nil)

			w := serve(http.MethodGet, "/orders?account=buyer", "")

			Expect(w.Code).To(Equal(http.StatusOK))
			resp := decode(w)
			Expect(resp.Data["total"]).To(BeEquivalentTo(2))
			Expect(resp.Data["orders"]).To(HaveLen(2))
		})
	})
})
