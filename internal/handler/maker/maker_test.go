package maker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	makersvc "github.com/dwarvesf/escrow-backend/internal/maker"
	"github.com/dwarvesf/escrow-backend/internal/store"
	"github.com/dwarvesf/escrow-backend/internal/store/storetest"
	"github.com/dwarvesf/escrow-backend/internal/types/environments"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
	"github.com/dwarvesf/escrow-backend/internal/view"
)

type MakerHandlerSuite struct {
	suite.Suite
	router *gin.Engine
}

func TestMakerHandlerSuite(t *testing.T) {
	suite.Run(t, new(MakerHandlerSuite))
}

func (s *MakerHandlerSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	l := logger.New(environments.Test)
	registry := makersvc.New(storetest.NewDB(s.T()), store.New(), l)
	h := New(registry, l, nil)

	s.router = gin.New()
	s.router.POST("/makers", h.Register)
	s.router.GET("/makers", h.ListMakers)
	s.router.GET("/makers/:id", h.GetMaker)
	s.router.PUT("/makers/:id", h.Update)
	s.router.POST("/makers/:id/pause", h.Pause)
	s.router.POST("/makers/:id/resume", h.Resume)
	s.router.GET("/makers/:id/quote", h.Quote)
	s.router.POST("/admin/makers/:id/suspend", h.Suspend)
	s.router.POST("/admin/makers/:id/unsuspend", h.Unsuspend)
}

func (s *MakerHandlerSuite) serve(method, path, body string) (int, view.Response[map[string]any]) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp view.Response[map[string]any]
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func (s *MakerHandlerSuite) register(id string) {
	code, resp := s.serve(http.MethodPost, "/makers",
		`{"id":"`+id+`","name":"Maker `+id+`","sell_premium_bps":150,"buy_premium_bps":-50,"payment_channel":"bank transfer"}`)
	s.Require().Equal(http.StatusOK, code, resp.Error)
}

func (s *MakerHandlerSuite) TestRegisterAndGet() {
	s.register("alice")

	code, resp := s.serve(http.MethodGet, "/makers/alice", "")
	s.Equal(http.StatusOK, code)
	s.Equal("Maker alice", resp.Data["name"])
}

func (s *MakerHandlerSuite) TestRegister_Duplicate() {
	s.register("alice")

	code, _ := s.serve(http.MethodPost, "/makers",
		`{"id":"alice","name":"again","payment_channel":"bank transfer"}`)
	s.Equal(http.StatusBadRequest, code)
}

func (s *MakerHandlerSuite) TestGet_Unknown() {
	code, _ := s.serve(http.MethodGet, "/makers/nobody", "")
	s.Equal(http.StatusNotFound, code)
}

func (s *MakerHandlerSuite) TestQuote() {
	s.register("alice")

	code, resp := s.serve(http.MethodGet, "/makers/alice/quote?side=sell&amount=1000", "")
	s.Require().Equal(http.StatusOK, code, resp.Error)
	s.Equal("1015", resp.Data["quoted_price"])

	code, resp = s.serve(http.MethodGet, "/makers/alice/quote?side=buy&amount=1000", "")
	s.Require().Equal(http.StatusOK, code, resp.Error)
	s.Equal("995", resp.Data["quoted_price"])
}

func (s *MakerHandlerSuite) TestQuote_Rejects() {
	s.register("alice")

	for _, path := range []string{
		"/makers/alice/quote?side=sell&amount=abc",
		"/makers/alice/quote?side=sell&amount=-5",
		"/makers/alice/quote?side=hold&amount=10",
	} {
		code, _ := s.serve(http.MethodGet, path, "")
		s.Equal(http.StatusBadRequest, code, path)
	}
}

func (s *MakerHandlerSuite) TestPauseBlocksQuotes() {
	s.register("alice")

	code, resp := s.serve(http.MethodPost, "/makers/alice/pause", "")
	s.Require().Equal(http.StatusOK, code)
	s.Equal(true, resp.Data["service_paused"])

	code, _ = s.serve(http.MethodGet, "/makers/alice/quote?side=sell&amount=1000", "")
	s.Equal(http.StatusBadRequest, code)

	code, _ = s.serve(http.MethodPost, "/makers/alice/resume", "")
	s.Require().Equal(http.StatusOK, code)

	code, _ = s.serve(http.MethodGet, "/makers/alice/quote?side=sell&amount=1000", "")
	s.Equal(http.StatusOK, code)
}

func (s *MakerHandlerSuite) TestSuspend() {
	s.register("alice")
	s.register("bob")

	code, _ := s.serve(http.MethodPost, "/admin/makers/alice/suspend", `{}`)
	s.Equal(http.StatusBadRequest, code)

	code, _ = s.serve(http.MethodPost, "/admin/makers/alice/suspend", `{"reason":"fraud report"}`)
	s.Require().Equal(http.StatusOK, code)

	code, resp := s.serve(http.MethodGet, "/makers?active_only=true", "")
	s.Require().Equal(http.StatusOK, code)
	s.EqualValues(1, resp.Data["total"])

	code, _ = s.serve(http.MethodPost, "/admin/makers/alice/unsuspend", "")
	s.Require().Equal(http.StatusOK, code)

	_, resp = s.serve(http.MethodGet, "/makers?active_only=true", "")
	s.EqualValues(2, resp.Data["total"])
}

func (s *MakerHandlerSuite) TestUpdate() {
	s.register("alice")

	code, resp := s.serve(http.MethodPut, "/makers/alice", `{"sell_premium_bps":300}`)
	s.Require().Equal(http.StatusOK, code, resp.Error)
	s.EqualValues(300, resp.Data["sell_premium_bps"])
	s.EqualValues(-50, resp.Data["buy_premium_bps"])
}
