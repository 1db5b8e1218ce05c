package dispute

import (
	"context"
	"strconv"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/consts"
	"github.com/dwarvesf/escrow-backend/internal/escrow"
	"github.com/dwarvesf/escrow-backend/internal/events"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/monitoring"
	"github.com/dwarvesf/escrow-backend/internal/store"
	disputestore "github.com/dwarvesf/escrow-backend/internal/store/dispute"
	"github.com/dwarvesf/escrow-backend/internal/utils/config"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

const (
	entityName = "dispute"

	maxEvidencePerCall = 20
)

type Engine struct {
	db        *gorm.DB
	store     *store.Store
	escrow    escrow.IEscrow
	subjects  map[model.DisputeDomain]Subject
	publisher events.Publisher
	logger    *logger.Logger
	clock     clock.Clock
	config    config.DisputeConfig
	metrics   *monitoring.EscrowMetrics
}

func New(
	db *gorm.DB,
	store *store.Store,
	escrow escrow.IEscrow,
	subjects map[model.DisputeDomain]Subject,
	publisher events.Publisher,
	logger *logger.Logger,
	clk clock.Clock,
	config config.DisputeConfig,
	metrics *monitoring.EscrowMetrics,
) *Engine {
	return &Engine{
		db:        db,
		store:     store,
		escrow:    escrow,
		subjects:  subjects,
		publisher: publisher,
		logger:    logger,
		clock:     clk,
		config:    config,
		metrics:   metrics,
	}
}

func (e *Engine) Open(ctx context.Context, req OpenRequest) (*model.Dispute, error) {
	if err := model.ValidateRequest(req); err != nil {
		return nil, err
	}
	if !req.Domain.Valid() {
		return nil, model.Validationf("unknown dispute domain %q", req.Domain)
	}
	subject, ok := e.subjects[req.Domain]
	if !ok {
		return nil, model.Validationf("domain %s does not accept disputes", req.Domain)
	}
	if req.BizID == "" || req.Complainant == "" {
		return nil, model.Validationf("biz id and complainant are required")
	}
	if err := e.validateDeposit(req.Deposit); err != nil {
		return nil, err
	}
	if err := validateCIDs(req.EvidenceCIDs); err != nil {
		return nil, err
	}

	var d *model.Dispute
	outbox := &events.Outbox{}
	err := store.DoInTx(e.db, func(tx *gorm.DB) error {
		active, err := e.store.Dispute.GetActiveByBiz(tx, req.Domain, req.BizID)
		if err == nil {
			return errors.Wrapf(model.ErrAlreadyDisputed, "dispute %d is open on %s/%s", active.ID, req.Domain, req.BizID)
		}
		if !errors.Is(err, model.ErrNotFound) {
			return err
		}

		respondent, err := subject.OpenDisputeTx(ctx, tx, outbox, model.DisputeOpening{
			BizID:        req.BizID,
			Complainant:  req.Complainant,
			Respondent:   req.Respondent,
			EvidenceCIDs: req.EvidenceCIDs,
		})
		if err != nil {
			return err
		}
		if respondent == req.Complainant {
			return model.Validationf("complainant and respondent must differ")
		}

		now := e.clock.Now()
		activeKey := model.DisputeActiveKey(req.Domain, req.BizID)
		d, err = e.store.Dispute.Create(tx, &model.Dispute{
			Domain:             req.Domain,
			BizID:              req.BizID,
			Complainant:        req.Complainant,
			Respondent:         respondent,
			DepositComplainant: req.Deposit,
			DepositRespondent:  decimal.Zero,
			Reason:             req.Reason,
			Status:             model.DisputeStatusSubmitted,
			DeadlineAt:         now.Add(e.config.ResponseWindow),
			ActiveKey:          &activeKey,
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.Wrapf(model.ErrAlreadyDisputed, "%s/%s", req.Domain, req.BizID)
		}
		if err != nil {
			return err
		}

		lockRef := model.DisputeDepositLockRef(d.ID, model.DisputePartyComplainant)
		if _, err := e.escrow.LockTx(ctx, tx, req.Complainant, req.Deposit, lockRef); err != nil {
			return err
		}
		if err := e.addEvidence(tx, d.ID, req.Complainant, req.EvidenceCIDs, now); err != nil {
			return err
		}

		outbox.Add(consts.EVENT_STREAM_DISPUTES, events.DisputeOpened, now, disputePayload(d))
		return nil
	})
	if err != nil {
		e.logger.Error("[Open][DoInTx]", map[string]string{
			"domain":      string(req.Domain),
			"biz_id":      req.BizID,
			"complainant": req.Complainant,
			"error":       err.Error(),
		})
		return nil, err
	}

	e.metrics.RecordTransition(entityName, string(d.Status))
	outbox.Flush(ctx, e.publisher, e.logger)
	return d, nil
}

func (e *Engine) Respond(ctx context.Context, req RespondRequest) (*model.Dispute, error) {
	if err := model.ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := e.validateDeposit(req.Deposit); err != nil {
		return nil, err
	}
	if err := validateCIDs(req.EvidenceCIDs); err != nil {
		return nil, err
	}

	return e.transition(ctx, "Respond", req.DisputeID, func(tx *gorm.DB, d *model.Dispute, outbox *events.Outbox) error {
		if req.Respondent != d.Respondent {
			return model.Validationf("only %s can respond to dispute %d", d.Respondent, d.ID)
		}
		if d.Status != model.DisputeStatusSubmitted {
			return model.InvalidTransitionf("dispute %d is %s", d.ID, d.Status)
		}
		now := e.clock.Now()
		if now.After(d.DeadlineAt) {
			return model.InvalidTransitionf("response window of dispute %d closed at %s", d.ID, d.DeadlineAt.Format(time.RFC3339))
		}

		lockRef := model.DisputeDepositLockRef(d.ID, model.DisputePartyRespondent)
		if _, err := e.escrow.LockTx(ctx, tx, d.Respondent, req.Deposit, lockRef); err != nil {
			return err
		}
		if err := e.addEvidence(tx, d.ID, d.Respondent, req.EvidenceCIDs, now); err != nil {
			return err
		}

		d.DepositRespondent = req.Deposit
		d.Status = model.DisputeStatusResponded
		d.DeadlineAt = now.Add(e.config.MediationStartDelay)
		outbox.Add(consts.EVENT_STREAM_DISPUTES, events.DisputeResponded, now, disputePayload(d))
		return nil
	})
}

func (e *Engine) StartMediation(ctx context.Context, disputeID uint64) (*model.Dispute, error) {
	return e.transition(ctx, "StartMediation", disputeID, func(tx *gorm.DB, d *model.Dispute, outbox *events.Outbox) error {
		if d.Status != model.DisputeStatusResponded {
			return model.InvalidTransitionf("dispute %d is %s", d.ID, d.Status)
		}
		now := e.clock.Now()
		if now.Before(d.DeadlineAt) {
			return model.InvalidTransitionf("mediation of dispute %d starts at %s", d.ID, d.DeadlineAt.Format(time.RFC3339))
		}

		d.Status = model.DisputeStatusMediating
		d.DeadlineAt = now.Add(e.config.MediationWindow)
		outbox.Add(consts.EVENT_STREAM_DISPUTES, events.DisputeMediating, now, disputePayload(d))
		return nil
	})
}

func (e *Engine) SubmitEvidence(ctx context.Context, disputeID uint64, party string, cids []string) ([]*model.DisputeEvidence, error) {
	if len(cids) == 0 {
		return nil, model.Validationf("at least one evidence cid is required")
	}
	if err := validateCIDs(cids); err != nil {
		return nil, err
	}

	_, err := e.transition(ctx, "SubmitEvidence", disputeID, func(tx *gorm.DB, d *model.Dispute, outbox *events.Outbox) error {
		if _, ok := d.PartyOf(party); !ok {
			return model.Validationf("%s is not a party of dispute %d", party, d.ID)
		}
		switch d.Status {
		case model.DisputeStatusSubmitted, model.DisputeStatusResponded, model.DisputeStatusMediating:
		default:
			return model.InvalidTransitionf("dispute %d no longer accepts evidence", d.ID)
		}

		now := e.clock.Now()
		if err := e.addEvidence(tx, d.ID, party, cids, now); err != nil {
			return err
		}
		payload := disputePayload(d)
		payload["submitter"] = party
		payload["cids"] = cids
		outbox.Add(consts.EVENT_STREAM_DISPUTES, events.DisputeEvidenceSubmitted, now, payload)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.ListEvidence(ctx, disputeID)
}

func (e *Engine) Escalate(ctx context.Context, disputeID uint64) (*model.Dispute, error) {
	return e.transition(ctx, "Escalate", disputeID, func(tx *gorm.DB, d *model.Dispute, outbox *events.Outbox) error {
		if d.Status != model.DisputeStatusMediating {
			return model.InvalidTransitionf("dispute %d is %s", d.ID, d.Status)
		}
		now := e.clock.Now()
		if !now.After(d.DeadlineAt) {
			return model.InvalidTransitionf("mediation of dispute %d runs until %s", d.ID, d.DeadlineAt.Format(time.RFC3339))
		}

		if err := e.seatPanel(d, d.Round+1); err != nil {
			return err
		}
		subject, err := e.subject(d)
		if err != nil {
			return err
		}
		if err := subject.EscalateDisputeTx(ctx, tx, outbox, d.BizID); err != nil {
			return err
		}

		d.Status = model.DisputeStatusArbitrating
		d.DeadlineAt = now.Add(e.config.ArbitrationWindow)
		payload := disputePayload(d)
		payload["arbitrators"] = d.ArbitratorList()
		outbox.Add(consts.EVENT_STREAM_DISPUTES, events.DisputeArbitrating, now, payload)
		return nil
	})
}

func (e *Engine) ReassignPanel(ctx context.Context, disputeID uint64) (*model.Dispute, error) {
	return e.transition(ctx, "ReassignPanel", disputeID, func(tx *gorm.DB, d *model.Dispute, outbox *events.Outbox) error {
		if d.Status != model.DisputeStatusArbitrating {
			return model.InvalidTransitionf("dispute %d is %s", d.ID, d.Status)
		}
		now := e.clock.Now()
		if !now.After(d.DeadlineAt) {
			return model.InvalidTransitionf("arbitration of dispute %d runs until %s", d.ID, d.DeadlineAt.Format(time.RFC3339))
		}

		if err := e.seatPanel(d, d.Round+1); err != nil {
			return err
		}
		d.DeadlineAt = now.Add(e.config.ArbitrationWindow)
		payload := disputePayload(d)
		payload["arbitrators"] = d.ArbitratorList()
		outbox.Add(consts.EVENT_STREAM_DISPUTES, events.DisputeArbitratorsReassigned, now, payload)
		return nil
	})
}

// Vote records an arbitrator's verdict for the current round. The dispute
// resolves once Quorum votes agree on both the verdict and the share.
func (e *Engine) Vote(ctx context.Context, req VoteRequest) (*model.Dispute, error) {
	if err := model.ValidateRequest(req); err != nil {
		return nil, err
	}
	if !req.Verdict.Valid() {
		return nil, model.Validationf("unknown verdict %q", req.Verdict)
	}
	share := req.ComplainantShareBps
	if req.Verdict != model.VerdictSettlement {
		share = 0
	} else if share < 0 || share > consts.BPS_DENOMINATOR {
		return nil, model.Validationf("complainant share %d out of range", share)
	}

	return e.transition(ctx, "Vote", req.DisputeID, func(tx *gorm.DB, d *model.Dispute, outbox *events.Outbox) error {
		if d.Status != model.DisputeStatusArbitrating {
			return model.InvalidTransitionf("dispute %d is %s", d.ID, d.Status)
		}
		if !d.HasArbitrator(req.Arbitrator) {
			return model.Validationf("%s is not on the panel of dispute %d", req.Arbitrator, d.ID)
		}

		votes, err := e.store.Dispute.ListVotes(tx, d.ID, d.Round)
		if err != nil {
			return err
		}
		agreeing := 1
		for _, v := range votes {
			if v.Arbitrator == req.Arbitrator {
				return model.Validationf("%s already voted in round %d", req.Arbitrator, d.Round)
			}
			if v.Verdict == req.Verdict && v.ComplainantShareBps == share {
				agreeing++
			}
		}

		now := e.clock.Now()
		if err := e.store.Dispute.AddVote(tx, &model.DisputeVote{
			DisputeID:           d.ID,
			Round:               d.Round,
			Arbitrator:          req.Arbitrator,
			Verdict:             req.Verdict,
			ComplainantShareBps: share,
			Reason:              req.Reason,
			CreatedAt:           now,
		}); err != nil {
			return err
		}

		payload := disputePayload(d)
		payload["arbitrator"] = req.Arbitrator
		payload["verdict"] = string(req.Verdict)
		outbox.Add(consts.EVENT_STREAM_DISPUTES, events.DisputeVoteCast, now, payload)

		if agreeing < e.config.Quorum {
			return nil
		}
		return e.resolve(ctx, tx, d, req.Verdict, share, model.DisputeReasonArbitration, outbox)
	})
}

func (e *Engine) Withdraw(ctx context.Context, disputeID uint64, complainant string) (*model.Dispute, error) {
	return e.transition(ctx, "Withdraw", disputeID, func(tx *gorm.DB, d *model.Dispute, outbox *events.Outbox) error {
		if complainant != d.Complainant {
			return model.Validationf("only the complainant can withdraw dispute %d", d.ID)
		}
		if d.Status != model.DisputeStatusSubmitted {
			return model.InvalidTransitionf("dispute %d is %s", d.ID, d.Status)
		}

		subject, err := e.subject(d)
		if err != nil {
			return err
		}
		if err := subject.WithdrawDisputeTx(ctx, tx, outbox, d.BizID); err != nil {
			return err
		}
		if err := e.refundDeposit(ctx, tx, d, model.DisputePartyComplainant); err != nil {
			return err
		}

		e.close(d, model.DisputeStatusWithdrawn, model.DisputeReasonWithdrawn)
		outbox.Add(consts.EVENT_STREAM_DISPUTES, events.DisputeWithdrawn, *d.ResolvedAt, disputePayload(d))
		return nil
	})
}

func (e *Engine) ResolveDefault(ctx context.Context, disputeID uint64) (*model.Dispute, error) {
	return e.transition(ctx, "ResolveDefault", disputeID, func(tx *gorm.DB, d *model.Dispute, outbox *events.Outbox) error {
		if d.Status != model.DisputeStatusSubmitted {
			return model.InvalidTransitionf("dispute %d is %s", d.ID, d.Status)
		}
		if !e.clock.Now().After(d.DeadlineAt) {
			return model.InvalidTransitionf("respondent of dispute %d can still respond", d.ID)
		}
		return e.resolve(ctx, tx, d, model.VerdictComplainantWin, 0, model.DisputeReasonDefaultJudgment, outbox)
	})
}

func (e *Engine) Advance(ctx context.Context, disputeID uint64) (*model.Dispute, error) {
	d, err := e.Get(ctx, disputeID)
	if err != nil {
		return nil, err
	}

	switch d.Status {
	case model.DisputeStatusSubmitted:
		return e.ResolveDefault(ctx, disputeID)
	case model.DisputeStatusResponded:
		return e.StartMediation(ctx, disputeID)
	case model.DisputeStatusMediating:
		return e.Escalate(ctx, disputeID)
	case model.DisputeStatusArbitrating:
		return e.ReassignPanel(ctx, disputeID)
	}
	return d, errors.Wrapf(model.ErrAlreadyTerminal, "dispute %d is %s", d.ID, d.Status)
}

func (e *Engine) Get(ctx context.Context, disputeID uint64) (*model.Dispute, error) {
	return e.store.Dispute.Get(e.db, disputeID)
}

// GetByBiz prefers the open dispute and falls back to the latest closed one.
func (e *Engine) GetByBiz(ctx context.Context, domain model.DisputeDomain, bizID string) (*model.Dispute, error) {
	d, err := e.store.Dispute.GetActiveByBiz(e.db, domain, bizID)
	if errors.Is(err, model.ErrNotFound) {
		return e.store.Dispute.GetLatestByBiz(e.db, domain, bizID)
	}
	return d, err
}

func (e *Engine) ListByAccount(ctx context.Context, filter disputestore.ListFilter) ([]*model.Dispute, int64, error) {
	return e.store.Dispute.Find(e.db, filter)
}

func (e *Engine) ListEvidence(ctx context.Context, disputeID uint64) ([]*model.DisputeEvidence, error) {
	return e.store.Dispute.ListEvidence(e.db, disputeID)
}

// ListVotes returns the votes of the dispute's current round.
func (e *Engine) ListVotes(ctx context.Context, disputeID uint64) ([]*model.DisputeVote, error) {
	d, err := e.Get(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	return e.store.Dispute.ListVotes(e.db, disputeID, d.Round)
}

// resolve routes the referenced funds through the subject and settles both
// deposits: the winner is refunded, the loser is slashed by LoserSlashBps to the
// winner and refunded the rest. A settlement refunds both deposits.
func (e *Engine) resolve(
	ctx context.Context,
	tx *gorm.DB,
	d *model.Dispute,
	verdict model.Verdict,
	share int,
	reason string,
	outbox *events.Outbox,
) error {
	subject, err := e.subject(d)
	if err != nil {
		return err
	}
	outcome := model.DisputeOutcome{
		DisputeID:           d.ID,
		Verdict:             verdict,
		Complainant:         d.Complainant,
		Respondent:          d.Respondent,
		ComplainantShareBps: share,
	}
	if err := subject.ResolveDisputeTx(ctx, tx, outbox, d.BizID, outcome); err != nil {
		return err
	}

	switch verdict {
	case model.VerdictSettlement:
		if err := e.refundDeposit(ctx, tx, d, model.DisputePartyComplainant); err != nil {
			return err
		}
		if err := e.refundDeposit(ctx, tx, d, model.DisputePartyRespondent); err != nil {
			return err
		}
	case model.VerdictComplainantWin:
		if err := e.refundDeposit(ctx, tx, d, model.DisputePartyComplainant); err != nil {
			return err
		}
		if err := e.slashDeposit(ctx, tx, d, model.DisputePartyRespondent, d.Complainant); err != nil {
			return err
		}
	case model.VerdictRespondentWin:
		if err := e.refundDeposit(ctx, tx, d, model.DisputePartyRespondent); err != nil {
			return err
		}
		if err := e.slashDeposit(ctx, tx, d, model.DisputePartyComplainant, d.Respondent); err != nil {
			return err
		}
	}

	d.ComplainantShareBps = share
	e.close(d, verdict.Status(), reason)
	payload := disputePayload(d)
	payload["verdict"] = string(verdict)
	outbox.Add(consts.EVENT_STREAM_DISPUTES, events.DisputeResolved, *d.ResolvedAt, payload)
	return nil
}

func (e *Engine) refundDeposit(ctx context.Context, tx *gorm.DB, d *model.Dispute, party model.DisputeParty) error {
	if !e.hasDeposit(d, party) {
		return nil
	}
	_, err := e.escrow.RefundTx(ctx, tx, model.DisputeDepositLockRef(d.ID, party))
	return err
}

func (e *Engine) slashDeposit(ctx context.Context, tx *gorm.DB, d *model.Dispute, loser model.DisputeParty, winner string) error {
	if !e.hasDeposit(d, loser) {
		return nil
	}
	lockRef := model.DisputeDepositLockRef(d.ID, loser)
	if e.config.LoserSlashBps > 0 {
		lock, err := e.escrow.SlashTx(ctx, tx, lockRef, winner, e.config.LoserSlashBps)
		if err != nil {
			return err
		}
		if lock.Status.IsTerminal() {
			return nil
		}
	}
	_, err := e.escrow.RefundTx(ctx, tx, lockRef)
	return err
}

func (e *Engine) hasDeposit(d *model.Dispute, party model.DisputeParty) bool {
	if party == model.DisputePartyRespondent {
		return d.DepositRespondent.IsPositive()
	}
	return d.DepositComplainant.IsPositive()
}

func (e *Engine) seatPanel(d *model.Dispute, round int) error {
	panel, err := selectPanel(e.config.Arbitrators, d, round, e.config.PanelSize, e.config.Quorum, e.config.ArbitratorSelection)
	if err != nil {
		return err
	}
	d.Round = round
	d.SetArbitrators(panel)
	return nil
}

func (e *Engine) subject(d *model.Dispute) (Subject, error) {
	subject, ok := e.subjects[d.Domain]
	if !ok {
		return nil, errors.Errorf("no subject registered for domain %s", d.Domain)
	}
	return subject, nil
}

func (e *Engine) close(d *model.Dispute, status model.DisputeStatus, reason string) {
	now := e.clock.Now()
	d.Status = status
	d.ResolutionReason = reason
	d.ResolvedAt = &now
	d.ActiveKey = nil
}

func (e *Engine) addEvidence(tx *gorm.DB, disputeID uint64, submitter string, cids []string, now time.Time) error {
	evidences := make([]*model.DisputeEvidence, 0, len(cids))
	for _, c := range cids {
		evidences = append(evidences, &model.DisputeEvidence{
			DisputeID: disputeID,
			Submitter: submitter,
			CID:       c,
			CreatedAt: now,
		})
	}
	return e.store.Dispute.AddEvidence(tx, evidences)
}

func (e *Engine) validateDeposit(deposit decimal.Decimal) error {
	if !model.IsPositiveAmount(deposit) {
		return model.Validationf("deposit must be a positive integer, got %s", deposit)
	}
	if deposit.LessThan(e.config.MinDeposit) {
		return model.Validationf("deposit %s is below the minimum %s", deposit, e.config.MinDeposit)
	}
	return nil
}

// transition runs fn on the locked dispute row and saves it. Terminal disputes
// are returned unchanged with model.ErrAlreadyTerminal.
func (e *Engine) transition(
	ctx context.Context,
	op string,
	disputeID uint64,
	fn func(tx *gorm.DB, d *model.Dispute, outbox *events.Outbox) error,
) (*model.Dispute, error) {
	var d *model.Dispute
	outbox := &events.Outbox{}
	err := store.DoInTx(e.db, func(tx *gorm.DB) error {
		var err error
		d, err = e.store.Dispute.GetForUpdate(tx, disputeID)
		if err != nil {
			return err
		}
		if d.Status.IsTerminal() {
			return errors.Wrapf(model.ErrAlreadyTerminal, "dispute %d is %s", d.ID, d.Status)
		}

		from := d.Status
		if err := fn(tx, d, outbox); err != nil {
			return err
		}
		if d.Status != from && !from.CanTransitionTo(d.Status) {
			return model.InvalidTransitionf("dispute %d cannot move from %s to %s", d.ID, from, d.Status)
		}
		return e.store.Dispute.Save(tx, d)
	})
	if err != nil {
		if errors.Is(err, model.ErrAlreadyTerminal) {
			return d, err
		}
		e.logger.Error("["+op+"][DoInTx]", map[string]string{
			"dispute_id": strconv.FormatUint(disputeID, 10),
			"error":      err.Error(),
		})
		return nil, err
	}

	e.metrics.RecordTransition(entityName, string(d.Status))
	outbox.Flush(ctx, e.publisher, e.logger)
	return d, nil
}

func validateCIDs(cids []string) error {
	if len(cids) > maxEvidencePerCall {
		return model.Validationf("at most %d evidence cids per call", maxEvidencePerCall)
	}
	for _, c := range cids {
		if _, err := cid.Decode(c); err != nil {
			return model.Validationf("invalid evidence cid %q: %v", c, err)
		}
	}
	return nil
}

func disputePayload(d *model.Dispute) map[string]any {
	payload := map[string]any{
		"dispute_id":  d.ID,
		"domain":      string(d.Domain),
		"biz_id":      d.BizID,
		"complainant": d.Complainant,
		"respondent":  d.Respondent,
		"status":      string(d.Status),
	}
	if d.ResolutionReason != "" {
		payload["reason"] = d.ResolutionReason
	}
	return payload
}
