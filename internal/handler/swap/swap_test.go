package swap_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/gin-gonic/gin"
	"github.com/lightningnetwork/lnd/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/dwarvesf/escrow-backend/internal/escrow"
	"github.com/dwarvesf/escrow-backend/internal/events"
	swaphandler "github.com/dwarvesf/escrow-backend/internal/handler/swap"
	"github.com/dwarvesf/escrow-backend/internal/ledger"
	"github.com/dwarvesf/escrow-backend/internal/maker"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/oracle"
	"github.com/dwarvesf/escrow-backend/internal/store"
	"github.com/dwarvesf/escrow-backend/internal/store/storetest"
	"github.com/dwarvesf/escrow-backend/internal/swap"
	"github.com/dwarvesf/escrow-backend/internal/types/environments"
	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/view"
)

type MockOracle struct {
	mock.Mock
	oracle.IOracle
}

func (m *MockOracle) Verify(ctx context.Context, txHash, expectedAddress string, expectedAmount decimal.Decimal) (*oracle.VerificationResult, error) {
	args := m.Called(txHash, expectedAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oracle.VerificationResult), args.Error(1)
}

var (
	txHash    = strings.Repeat("ab", 32)
	staleHash = strings.Repeat("cd", 32)
)

var _ = Describe("Swap handler", func() {
	var (
		router     *gin.Engine
		mockOracle *MockOracle
		escrowSvc  *escrow.Escrow
		address    string
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		ctx := context.Background()
		db := storetest.NewDB(GinkgoT())
		l := logger.New(environments.Test)
		st := store.New()

		escrowSvc = escrow.New(db, st, ledger.NewNopClient(), l, nil)
		makers := maker.New(db, st, l)
		mockOracle = new(MockOracle)
		svc := swap.New(db, st, escrowSvc, makers, mockOracle, events.NewMemoryPublisher(), l,
			clock.NewTestClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
			config.SwapConfig{Timeout: 2 * time.Hour, VerificationWindow: 30 * time.Minute}, nil)

		payload := make([]byte, 20)
		for i := range payload {
			payload[i] = byte(0x30 + i)
		}
		address = base58.CheckEncode(payload, 0x41)

		_, err := makers.Register(ctx, maker.RegisterRequest{ID: "maker", Name: "Maker", PaymentChannel: "trc20"})
		Expect(err).NotTo(HaveOccurred())
		_, err = escrowSvc.Credit(ctx, "user", decimal.NewFromInt(1000))
		Expect(err).NotTo(HaveOccurred())

		h := swaphandler.New(svc, l, nil)
		router = gin.New()
		router.POST("/swaps", h.CreateSwap)
		router.GET("/swaps", h.ListSwaps)
		router.GET("/swaps/:id", h.GetSwap)
		router.POST("/swaps/:id/tx-hash", h.SubmitTxHash)
		router.POST("/swaps/:id/verify", h.Verify)
		router.POST("/admin/swaps/:id/verification", h.ApplyVerification)
	})

	serve := func(method, path, body string) (int, view.Response[map[string]any]) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var resp view.Response[map[string]any]
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		return w.Code, resp
	}

	create := func() string {
		code, resp := serve(http.MethodPost, "/swaps", fmt.Sprintf(
			`{"user":"user","maker_id":"maker","cos_amount":"400","usdt_amount":"10000000","usdt_address":%q}`, address))
		Expect(code).To(Equal(http.StatusOK), resp.Error)
		Expect(resp.Data["status"]).To(Equal(string(model.SwapStatusPending)))
		return fmt.Sprintf("/swaps/%v", resp.Data["swap_id"])
	}

	It("locks the user's COS on create", func() {
		create()

		account, err := escrowSvc.GetAccount(context.Background(), "user")
		Expect(err).NotTo(HaveOccurred())
		Expect(account.Available.String()).To(Equal("600"))
		Expect(account.Locked.String()).To(Equal("400"))
	})

	It("rejects a swap beyond the user's balance", func() {
		code, _ := serve(http.MethodPost, "/swaps", fmt.Sprintf(
			`{"user":"user","maker_id":"maker","cos_amount":"4000","usdt_amount":"10000000","usdt_address":%q}`, address))

		Expect(code).To(Equal(http.StatusPaymentRequired))
	})

	It("completes after the oracle confirms the transfer", func() {
		path := create()

		code, resp := serve(http.MethodPost, path+"/tx-hash", `{"maker_id":"maker","tx_hash":"0x`+strings.ToUpper(txHash)+`"}`)
		Expect(code).To(Equal(http.StatusOK), resp.Error)
		Expect(resp.Data["status"]).To(Equal(string(model.SwapStatusAwaitingVerification)))
		Expect(resp.Data["trc20_tx_hash"]).To(Equal(txHash))

		mockOracle.On("Verify", txHash, address).Return(&oracle.VerificationResult{
			Status: oracle.VerificationConfirmed,
			TxHash: txHash,
		}, nil).Once()

		code, resp = serve(http.MethodPost, path+"/verify", "")
		Expect(code).To(Equal(http.StatusOK), resp.Error)
		Expect(resp.Data["swap"]).To(HaveKeyWithValue("status", string(model.SwapStatusCompleted)))

		account, err := escrowSvc.GetAccount(context.Background(), "maker")
		Expect(err).NotTo(HaveOccurred())
		Expect(account.Available.String()).To(Equal("400"))
		mockOracle.AssertExpectations(GinkgoT())
	})

	It("reports an unreachable oracle as a bad gateway and keeps the swap open", func() {
		path := create()
		code, _ := serve(http.MethodPost, path+"/tx-hash", `{"maker_id":"maker","tx_hash":"`+txHash+`"}`)
		Expect(code).To(Equal(http.StatusOK))

		mockOracle.On("Verify", txHash, address).Return(nil, errors.New("trongrid unavailable")).Once()

		code, resp := serve(http.MethodPost, path+"/verify", "")
		Expect(code).To(Equal(http.StatusBadGateway))
		Expect(resp.Error).To(ContainSubstring("trongrid unavailable"))

		code, resp = serve(http.MethodGet, path, "")
		Expect(code).To(Equal(http.StatusOK))
		Expect(resp.Data["status"]).To(Equal(string(model.SwapStatusAwaitingVerification)))
	})

	It("only lets the swap's maker submit a transfer", func() {
		path := create()

		code, _ := serve(http.MethodPost, path+"/tx-hash", `{"maker_id":"someone","tx_hash":"`+txHash+`"}`)

		Expect(code).To(Equal(http.StatusBadRequest))
	})

	It("refuses to verify before a transfer is submitted", func() {
		path := create()

		code, _ := serve(http.MethodPost, path+"/verify", "")

		Expect(code).To(Equal(http.StatusConflict))
		mockOracle.AssertNotCalled(GinkgoT(), "Verify", mock.Anything, mock.Anything)
	})

	It("rejects relayer results for a replaced transfer", func() {
		path := create()
		code, _ := serve(http.MethodPost, path+"/tx-hash", `{"maker_id":"maker","tx_hash":"`+staleHash+`"}`)
		Expect(code).To(Equal(http.StatusOK))
		code, _ = serve(http.MethodPost, path+"/tx-hash", `{"maker_id":"maker","tx_hash":"`+txHash+`"}`)
		Expect(code).To(Equal(http.StatusOK))

		code, _ = serve(http.MethodPost, "/admin"+path+"/verification", `{"tx_hash":"`+staleHash+`","status":"confirmed"}`)
		Expect(code).To(Equal(http.StatusConflict))

		code, resp := serve(http.MethodPost, "/admin"+path+"/verification", `{"tx_hash":"`+txHash+`","status":"amount_mismatch"}`)
		Expect(code).To(Equal(http.StatusOK), resp.Error)
		Expect(resp.Data["status"]).To(Equal(string(model.SwapStatusVerificationFailed)))
	})

	It("rejects an unknown relayer status", func() {
		path := create()

		code, _ := serve(http.MethodPost, "/admin"+path+"/verification", `{"tx_hash":"`+txHash+`","status":"maybe"}`)

		Expect(code).To(Equal(http.StatusBadRequest))
	})

	It("lists swaps by maker", func() {
		create()
		create()

		code, _ := serve(http.MethodGet, "/swaps", "")
		Expect(code).To(Equal(http.StatusBadRequest))

		code, resp := serve(http.MethodGet, "/swaps?maker_id=maker&limit=1", "")
		Expect(code).To(Equal(http.StatusOK))
		Expect(resp.Data["total"]).To(BeEquivalentTo(2))
		Expect(resp.Data["swaps"]).To(HaveLen(1))
	})
})
