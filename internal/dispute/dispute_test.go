package dispute_test

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/lightningnetwork/lnd/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/dispute"
	"github.com/dwarvesf/escrow-backend/internal/escrow"
	"github.com/dwarvesf/escrow-backend/internal/events"
	"github.com/dwarvesf/escrow-backend/internal/ledger"
	"github.com/dwarvesf/escrow-backend/internal/maker"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/otc"
	"github.com/dwarvesf/escrow-backend/internal/store"
	disputestore "github.com/dwarvesf/escrow-backend/internal/store/dispute"
	"github.com/dwarvesf/escrow-backend/internal/store/storetest"
	"github.com/dwarvesf/escrow-backend/internal/swap"
	"github.com/dwarvesf/escrow-backend/internal/types/environments"
	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

const (
	receiptCID = "bafkreidpgkdasegkb6zkedd73ikdmzvqtw7y3njdqgk4scsyn62uf7ymvu"
	chatCID    = "bafkreify2mxbtaglu27lsuzfkte6z7z32wmjxr4bywuw32y2esa7nofzo4"
	readmeCID  = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
)

var start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func amt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

var _ = Describe("Engine", func() {
	var (
		ctx       context.Context
		clk       *clock.TestClock
		db        *gorm.DB
		st        *store.Store
		esc       *escrow.Escrow
		orders    *otc.Otc
		makers    *maker.Registry
		swaps     *swap.Swap
		publisher *events.MemoryPublisher
		engine    *dispute.Engine
		cfg       config.DisputeConfig
	)

	build := func() {
		db = storetest.NewDB(GinkgoT())
		l := logger.New(environments.Test)
		st = store.New()
		esc = escrow.New(db, st, ledger.NewNopClient(), l, nil)
		publisher = events.NewMemoryPublisher()
		makers = maker.New(db, st, l)
		orders = otc.New(db, st, esc, makers, publisher, l, clk, config.OtcConfig{OrderTTL: time.Hour}, nil)
		// the oracle is never consulted once a swap is under dispute
		swaps = swap.New(db, st, esc, makers, nil, publisher, l, clk, config.SwapConfig{
			Timeout:            2 * time.Hour,
			VerificationWindow: 30 * time.Minute,
		}, nil)
		engine = dispute.New(db, st, esc, map[model.DisputeDomain]dispute.Subject{
			model.DisputeDomainOtc:        orders,
			model.DisputeDomainSwap:       swaps,
			model.DisputeDomainDivination: dispute.NewLockSubject(model.DisputeDomainDivination, esc),
		}, publisher, l, clk, cfg, nil)
	}

	credit := func(account string, v int64) {
		_, err := esc.Credit(ctx, account, amt(v))
		Expect(err).NotTo(HaveOccurred())
	}

	balances := func(account string) (string, string) {
		acc, err := esc.GetAccount(ctx, account)
		Expect(err).NotTo(HaveOccurred())
		return acc.Available.String(), acc.Locked.String()
	}

	createOrder := func() *model.OtcOrder {
		order, err := orders.CreateOrder(ctx, otc.CreateOrderRequest{Buyer: "buyer", Seller: "seller", Qty: amt(100), Amount: amt(500)})
		Expect(err).NotTo(HaveOccurred())
		return order
	}

	openOnOrder := func(order *model.OtcOrder, complainant string) *model.Dispute {
		d, err := engine.Open(ctx, dispute.OpenRequest{
			Domain:       model.DisputeDomainOtc,
			BizID:        strconv.FormatUint(order.ID, 10),
			Complainant:  complainant,
			Deposit:      amt(100),
			EvidenceCIDs: []string{receiptCID},
			Reason:       "payment never arrived",
		})
		Expect(err).NotTo(HaveOccurred())
		return d
	}

	// toArbitration walks a dispute through response and mediation.
	toArbitration := func(d *model.Dispute) *model.Dispute {
		_, err := engine.Respond(ctx, dispute.RespondRequest{DisputeID: d.ID, Respondent: d.Respondent, Deposit: amt(100), EvidenceCIDs: []string{chatCID}})
		Expect(err).NotTo(HaveOccurred())

		clk.SetTime(clk.Now().Add(cfg.MediationStartDelay))
		d, err = engine.StartMediation(ctx, d.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Status).To(Equal(model.DisputeStatusMediating))

		clk.SetTime(clk.Now().Add(cfg.MediationWindow + time.Second))
		d, err = engine.Escalate(ctx, d.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(d.Status).To(Equal(model.DisputeStatusArbitrating))
		return d
	}

	BeforeEach(func() {
		ctx = context.Background()
		clk = clock.NewTestClock(start)
		cfg = config.DisputeConfig{
			MinDeposit:          amt(100),
			ResponseWindow:      24 * time.Hour,
			MediationStartDelay: time.Hour,
			MediationWindow:     72 * time.Hour,
			ArbitrationWindow:   48 * time.Hour,
			LoserSlashBps:       10000,
			Arbitrators:         []string{"arb-1", "arb-2", "arb-3"},
			ArbitratorSelection: dispute.SelectionRoundRobin,
			PanelSize:           1,
			Quorum:              1,
		}
		build()
		credit("seller", 1000)
		credit("buyer", 100)
	})

	Describe("#Open", func() {
		It("should lock the complainant deposit and mark the order disputed", func() {
			order := createOrder()
			d := openOnOrder(order, "seller")

			Expect(d.Status).To(Equal(model.DisputeStatusSubmitted))
			Expect(d.Respondent).To(Equal("buyer"))
			Expect(d.DeadlineAt).To(BeTemporally("==", start.Add(24*time.Hour)))

			available, locked := balances("seller")
			Expect(available).To(Equal("800"))
			Expect(locked).To(Equal("200"))

			order, err := orders.Get(ctx, order.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(order.State).To(Equal(model.OtcOrderStateDisputed))

			evidence, err := engine.ListEvidence(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(evidence).To(HaveLen(1))
			Expect(evidence[0].CID).To(Equal(receiptCID))
			Expect(publisher.Types()).To(ContainElement(events.DisputeOpened))
		})

		It("should allow a single open dispute per business entity", func() {
			order := createOrder()
			openOnOrder(order, "seller")

			_, err := engine.Open(ctx, dispute.OpenRequest{
				Domain:      model.DisputeDomainOtc,
				BizID:       strconv.FormatUint(order.ID, 10),
				Complainant: "buyer",
				Deposit:     amt(100),
			})
			Expect(errors.Is(err, model.ErrAlreadyDisputed)).To(BeTrue())

			available, _ := balances("buyer")
			Expect(available).To(Equal("100"))
		})

		It("should report a second active dispute row as a duplicated key", func() {
			order := createOrder()
			d := openOnOrder(order, "seller")

			activeKey := model.DisputeActiveKey(model.DisputeDomainOtc, d.BizID)
			_, err := st.Dispute.Create(db, &model.Dispute{
				Domain:             model.DisputeDomainOtc,
				BizID:              d.BizID,
				Complainant:        "buyer",
				Respondent:         "seller",
				DepositComplainant: amt(100),
				DepositRespondent:  decimal.Zero,
				Status:             model.DisputeStatusSubmitted,
				DeadlineAt:         start.Add(24 * time.Hour),
				ActiveKey:          &activeKey,
			})
			Expect(errors.Is(err, gorm.ErrDuplicatedKey)).To(BeTrue(), "got %v", err)
		})

		DescribeTable("should reject invalid requests",
			func(mutate func(req *dispute.OpenRequest), target error) {
				order := createOrder()
				req := dispute.OpenRequest{
					Domain:      model.DisputeDomainOtc,
					BizID:       strconv.FormatUint(order.ID, 10),
					Complainant: "seller",
					Deposit:     amt(100),
				}
				mutate(&req)

				_, err := engine.Open(ctx, req)
				Expect(errors.Is(err, target)).To(BeTrue(), "got %v", err)

				available, locked := balances("seller")
				Expect(available).To(Equal("900"))
				Expect(locked).To(Equal("100"))
			},
			Entry("deposit below minimum", func(req *dispute.OpenRequest) { req.Deposit = amt(99) }, model.ErrValidation),
			Entry("fractional deposit", func(req *dispute.OpenRequest) { req.Deposit = decimal.RequireFromString("100.5") }, model.ErrValidation),
			Entry("malformed cid", func(req *dispute.OpenRequest) { req.EvidenceCIDs = []string{"not-a-cid"} }, model.ErrValidation),
			Entry("unknown domain", func(req *dispute.OpenRequest) { req.Domain = "lottery" }, model.ErrValidation),
			Entry("domain without subject", func(req *dispute.OpenRequest) { req.Domain = model.DisputeDomainMatchmaking }, model.ErrValidation),
			Entry("stranger complainant", func(req *dispute.OpenRequest) { req.Complainant = "stranger" }, model.ErrValidation),
			Entry("unknown order", func(req *dispute.OpenRequest) { req.BizID = "999" }, model.ErrNotFound),
			Entry("deposit beyond balance", func(req *dispute.OpenRequest) { req.Deposit = amt(901) }, model.ErrInsufficientBalance),
			Entry("oversized biz id", func(req *dispute.OpenRequest) { req.BizID = strings.Repeat("9", 300) }, model.ErrValidation),
			Entry("oversized complainant", func(req *dispute.OpenRequest) { req.Complainant = strings.Repeat("s", 300) }, model.ErrValidation),
			Entry("missing complainant", func(req *dispute.OpenRequest) { req.Complainant = "" }, model.ErrValidation),
		)

		It("should reject responses and votes that fail field validation", func() {
			d := openOnOrder(createOrder(), "seller")

			_, err := engine.Respond(ctx, dispute.RespondRequest{DisputeID: d.ID, Deposit: amt(100)})
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue(), "got %v", err)
			_, err = engine.Respond(ctx, dispute.RespondRequest{DisputeID: d.ID, Respondent: strings.Repeat("b", 300), Deposit: amt(100)})
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue(), "got %v", err)

			_, err = engine.Vote(ctx, dispute.VoteRequest{DisputeID: d.ID})
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue(), "got %v", err)

			d, err = engine.Get(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Status).To(Equal(model.DisputeStatusSubmitted))
			available, _ := balances("buyer")
			Expect(available).To(Equal("100"))
		})
	})

	Describe("resolution by arbitration", func() {
		It("should pay the complainant the order funds and the respondent deposit", func() {
			order := createOrder()
			d := toArbitration(openOnOrder(order, "seller"))
			Expect(d.ArbitratorList()).To(Equal([]string{"arb-1"}))
			Expect(d.Round).To(Equal(1))

			d, err := engine.Vote(ctx, dispute.VoteRequest{DisputeID: d.ID, Arbitrator: "arb-1", Verdict: model.VerdictComplainantWin})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Status).To(Equal(model.DisputeStatusResolvedComplainantWin))
			Expect(d.ResolutionReason).To(Equal(model.DisputeReasonArbitration))
			Expect(d.ActiveKey).To(BeNil())

			available, locked := balances("seller")
			Expect(available).To(Equal("1100"))
			Expect(locked).To(Equal("0"))
			available, locked = balances("buyer")
			Expect(available).To(Equal("0"))
			Expect(locked).To(Equal("0"))

			order, err = orders.Get(ctx, order.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(order.State).To(Equal(model.OtcOrderStateRefunded))

			lock, err := esc.GetLock(ctx, model.DisputeDepositLockRef(d.ID, model.DisputePartyRespondent))
			Expect(err).NotTo(HaveOccurred())
			Expect(lock.Conserved()).To(BeTrue())
			Expect(lock.SlashedTo).To(Equal("seller"))
			Expect(publisher.Types()).To(ContainElement(events.DisputeResolved))
		})

		It("should return the unslashed part of the loser deposit", func() {
			cfg.LoserSlashBps = 2500
			build()
			credit("seller", 1000)
			credit("buyer", 100)

			order := createOrder()
			d := toArbitration(openOnOrder(order, "seller"))
			_, err := engine.Vote(ctx, dispute.VoteRequest{DisputeID: d.ID, Arbitrator: "arb-1", Verdict: model.VerdictRespondentWin})
			Expect(err).NotTo(HaveOccurred())

			available, _ := balances("buyer")
			Expect(available).To(Equal("225"))
			available, locked := balances("seller")
			Expect(available).To(Equal("875"))
			Expect(locked).To(Equal("0"))

			order, err = orders.Get(ctx, order.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(order.State).To(Equal(model.OtcOrderStateReleased))
		})

		It("should settle by refunding both deposits and splitting the order", func() {
			order := createOrder()
			d := toArbitration(openOnOrder(order, "seller"))

			d, err := engine.Vote(ctx, dispute.VoteRequest{DisputeID: d.ID, Arbitrator: "arb-1", Verdict: model.VerdictSettlement, ComplainantShareBps: 4000})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Status).To(Equal(model.DisputeStatusResolvedSettlement))
			Expect(d.ComplainantShareBps).To(Equal(4000))

			available, _ := balances("seller")
			Expect(available).To(Equal("940"))
			available, _ = balances("buyer")
			Expect(available).To(Equal("160"))
		})

		It("should wait for a quorum of matching votes", func() {
			cfg.PanelSize = 3
			cfg.Quorum = 2
			build()
			credit("seller", 1000)
			credit("buyer", 100)

			order := createOrder()
			d := toArbitration(openOnOrder(order, "seller"))
			Expect(d.ArbitratorList()).To(ConsistOf("arb-1", "arb-2", "arb-3"))

			d, err := engine.Vote(ctx, dispute.VoteRequest{DisputeID: d.ID, Arbitrator: "arb-1", Verdict: model.VerdictComplainantWin})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Status).To(Equal(model.DisputeStatusArbitrating))

			d, err = engine.Vote(ctx, dispute.VoteRequest{DisputeID: d.ID, Arbitrator: "arb-2", Verdict: model.VerdictRespondentWin})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Status).To(Equal(model.DisputeStatusArbitrating))

			_, err = engine.Vote(ctx, dispute.VoteRequest{DisputeID: d.ID, Arbitrator: "arb-2", Verdict: model.VerdictComplainantWin})
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue())

			d, err = engine.Vote(ctx, dispute.VoteRequest{DisputeID: d.ID, Arbitrator: "arb-3", Verdict: model.VerdictComplainantWin})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Status).To(Equal(model.DisputeStatusResolvedComplainantWin))

			votes, err := engine.ListVotes(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(votes).To(HaveLen(3))
		})

		It("should reject votes from arbitrators off the panel", func() {
			order := createOrder()
			d := toArbitration(openOnOrder(order, "seller"))

			_, err := engine.Vote(ctx, dispute.VoteRequest{DisputeID: d.ID, Arbitrator: "arb-2", Verdict: model.VerdictComplainantWin})
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue())

			_, err = engine.Vote(ctx, dispute.VoteRequest{DisputeID: d.ID, Arbitrator: "arb-1", Verdict: "coin_flip"})
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue())
		})

		It("should reassign the panel once the arbitration window elapses", func() {
			order := createOrder()
			d := toArbitration(openOnOrder(order, "seller"))

			_, err := engine.ReassignPanel(ctx, d.ID)
			Expect(errors.Is(err, model.ErrInvalidTransition)).To(BeTrue())

			clk.SetTime(clk.Now().Add(cfg.ArbitrationWindow + time.Second))
			d, err = engine.Advance(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Status).To(Equal(model.DisputeStatusArbitrating))
			Expect(d.Round).To(Equal(2))
			Expect(d.ArbitratorList()).To(Equal([]string{"arb-2"}))
			Expect(publisher.Types()).To(ContainElement(events.DisputeArbitratorsReassigned))

			_, err = engine.Vote(ctx, dispute.VoteRequest{DisputeID: d.ID, Arbitrator: "arb-1", Verdict: model.VerdictComplainantWin})
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue())
		})
	})

	Describe("#Respond", func() {
		It("should only accept the respondent before the deadline", func() {
			order := createOrder()
			d := openOnOrder(order, "seller")

			_, err := engine.Respond(ctx, dispute.RespondRequest{DisputeID: d.ID, Respondent: "seller", Deposit: amt(100)})
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue())

			clk.SetTime(d.DeadlineAt.Add(time.Second))
			_, err = engine.Respond(ctx, dispute.RespondRequest{DisputeID: d.ID, Respondent: "buyer", Deposit: amt(100)})
			Expect(errors.Is(err, model.ErrInvalidTransition)).To(BeTrue())
		})

		It("should not start mediation before the delay", func() {
			order := createOrder()
			d := openOnOrder(order, "seller")
			d, err := engine.Respond(ctx, dispute.RespondRequest{DisputeID: d.ID, Respondent: "buyer", Deposit: amt(100)})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Status).To(Equal(model.DisputeStatusResponded))

			_, err = engine.StartMediation(ctx, d.ID)
			Expect(errors.Is(err, model.ErrInvalidTransition)).To(BeTrue())
			_, err = engine.Escalate(ctx, d.ID)
			Expect(errors.Is(err, model.ErrInvalidTransition)).To(BeTrue())
		})
	})

	Describe("#SubmitEvidence", func() {
		It("should append evidence from either party", func() {
			order := createOrder()
			d := openOnOrder(order, "seller")

			evidence, err := engine.SubmitEvidence(ctx, d.ID, "buyer", []string{chatCID, readmeCID})
			Expect(err).NotTo(HaveOccurred())
			Expect(evidence).To(HaveLen(3))

			_, err = engine.SubmitEvidence(ctx, d.ID, "stranger", []string{chatCID})
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue())
			_, err = engine.SubmitEvidence(ctx, d.ID, "buyer", nil)
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue())
		})
	})

	Describe("#Withdraw", func() {
		It("should refund the deposit and restore the order", func() {
			order := createOrder()
			d := openOnOrder(order, "seller")

			_, err := engine.Withdraw(ctx, d.ID, "buyer")
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue())

			d, err = engine.Withdraw(ctx, d.ID, "seller")
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Status).To(Equal(model.DisputeStatusWithdrawn))

			available, locked := balances("seller")
			Expect(available).To(Equal("900"))
			Expect(locked).To(Equal("100"))

			order, err = orders.Get(ctx, order.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(order.State).To(Equal(model.OtcOrderStateCreated))

			_, err = engine.Withdraw(ctx, d.ID, "seller")
			Expect(errors.Is(err, model.ErrAlreadyTerminal)).To(BeTrue())

			openOnOrder(order, "buyer")
			latest, err := engine.GetByBiz(ctx, model.DisputeDomainOtc, strconv.FormatUint(order.ID, 10))
			Expect(err).NotTo(HaveOccurred())
			Expect(latest.ID).NotTo(Equal(d.ID))
		})
	})

	Describe("#Advance", func() {
		It("should award a default judgment when the respondent stays silent", func() {
			order := createOrder()
			d := openOnOrder(order, "buyer")

			_, err := engine.Advance(ctx, d.ID)
			Expect(errors.Is(err, model.ErrInvalidTransition)).To(BeTrue())

			clk.SetTime(d.DeadlineAt.Add(time.Second))
			d, err = engine.Advance(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Status).To(Equal(model.DisputeStatusResolvedComplainantWin))
			Expect(d.ResolutionReason).To(Equal(model.DisputeReasonDefaultJudgment))

			available, _ := balances("buyer")
			Expect(available).To(Equal("200"))
			available, locked := balances("seller")
			Expect(available).To(Equal("900"))
			Expect(locked).To(Equal("0"))

			_, err = engine.Advance(ctx, d.ID)
			Expect(errors.Is(err, model.ErrAlreadyTerminal)).To(BeTrue())
		})
	})

	Describe("#ListByAccount", func() {
		It("should list disputes where the account is a party", func() {
			openOnOrder(createOrder(), "seller")

			disputes, total, err := engine.ListByAccount(ctx, disputestore.ListFilter{Account: "buyer"})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeEquivalentTo(1))
			Expect(disputes).To(HaveLen(1))

			_, total, err = engine.ListByAccount(ctx, disputestore.ListFilter{Account: "stranger"})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeZero())
		})
	})

	Describe("swap subject", func() {
		var record *model.SwapRecord

		BeforeEach(func() {
			_, err := makers.Register(ctx, maker.RegisterRequest{ID: "maker", Name: "Maker", PaymentChannel: "trc20"})
			Expect(err).NotTo(HaveOccurred())
			credit("user", 400)
			credit("maker", 100)

			payload := make([]byte, 20)
			for i := range payload {
				payload[i] = byte(0x20 + i)
			}
			record, err = swaps.CreateSwap(ctx, swap.CreateSwapRequest{
				User:        "user",
				MakerID:     "maker",
				CosAmount:   amt(300),
				UsdtAmount:  amt(5),
				UsdtAddress: base58.CheckEncode(payload, 0x41),
			})
			Expect(err).NotTo(HaveOccurred())
		})

		openOnSwap := func() *model.Dispute {
			d, err := engine.Open(ctx, dispute.OpenRequest{
				Domain:       model.DisputeDomainSwap,
				BizID:        strconv.FormatUint(record.ID, 10),
				Complainant:  "user",
				Deposit:      amt(100),
				EvidenceCIDs: []string{receiptCID},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Respondent).To(Equal("maker"))
			return d
		}

		swapStatus := func() model.SwapStatus {
			got, err := swaps.Get(ctx, record.ID)
			Expect(err).NotTo(HaveOccurred())
			return got.Status
		}

		It("should refund the user on a default judgment", func() {
			d := openOnSwap()
			Expect(swapStatus()).To(Equal(model.SwapStatusUserReported))
			available, locked := balances("user")
			Expect(available).To(Equal("0"))
			Expect(locked).To(Equal("400"))

			clk.SetTime(d.DeadlineAt.Add(time.Second))
			d, err := engine.ResolveDefault(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Status).To(Equal(model.DisputeStatusResolvedComplainantWin))

			Expect(swapStatus()).To(Equal(model.SwapStatusArbitrationApproved))
			available, locked = balances("user")
			Expect(available).To(Equal("400"))
			Expect(locked).To(Equal("0"))
			available, _ = balances("maker")
			Expect(available).To(Equal("100"))
		})

		It("should release to the maker when the panel rules for the maker", func() {
			d := toArbitration(openOnSwap())
			Expect(swapStatus()).To(Equal(model.SwapStatusArbitrating))

			d, err := engine.Vote(ctx, dispute.VoteRequest{DisputeID: d.ID, Arbitrator: d.ArbitratorList()[0], Verdict: model.VerdictRespondentWin})
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Status).To(Equal(model.DisputeStatusResolvedRespondentWin))

			Expect(swapStatus()).To(Equal(model.SwapStatusArbitrationRejected))
			available, locked := balances("maker")
			Expect(available).To(Equal("500"))
			Expect(locked).To(Equal("0"))
			available, locked = balances("user")
			Expect(available).To(Equal("0"))
			Expect(locked).To(Equal("0"))
		})

		It("should refuse a settlement and keep the dispute in arbitration", func() {
			d := toArbitration(openOnSwap())

			_, err := engine.Vote(ctx, dispute.VoteRequest{DisputeID: d.ID, Arbitrator: d.ArbitratorList()[0], Verdict: model.VerdictSettlement, ComplainantShareBps: 5000})
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue(), "got %v", err)

			d, err = engine.Get(ctx, d.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Status).To(Equal(model.DisputeStatusArbitrating))
			Expect(swapStatus()).To(Equal(model.SwapStatusArbitrating))
			_, locked := balances("user")
			Expect(locked).To(Equal("400"))
		})
	})

	Describe("LockSubject", func() {
		It("should release a directly escrowed lock to the winner", func() {
			credit("client", 500)
			credit("reader", 100)
			_, err := esc.Lock(ctx, "client", amt(300), model.BizLockRef(model.DisputeDomainDivination, "reading-7"))
			Expect(err).NotTo(HaveOccurred())

			_, err = engine.Open(ctx, dispute.OpenRequest{
				Domain:      model.DisputeDomainDivination,
				BizID:       "reading-7",
				Complainant: "client",
				Deposit:     amt(100),
			})
			Expect(errors.Is(err, model.ErrValidation)).To(BeTrue())

			d, err := engine.Open(ctx, dispute.OpenRequest{
				Domain:      model.DisputeDomainDivination,
				BizID:       "reading-7",
				Complainant: "client",
				Respondent:  "reader",
				Deposit:     amt(100),
			})
			Expect(err).NotTo(HaveOccurred())

			d = toArbitration(d)
			_, err = engine.Vote(ctx, dispute.VoteRequest{DisputeID: d.ID, Arbitrator: d.ArbitratorList()[0], Verdict: model.VerdictRespondentWin})
			Expect(err).NotTo(HaveOccurred())

			available, locked := balances("reader")
			Expect(available).To(Equal("500"))
			Expect(locked).To(Equal("0"))
			available, locked = balances("client")
			Expect(available).To(Equal("100"))
			Expect(locked).To(Equal("0"))
		})
	})
})
