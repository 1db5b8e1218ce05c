package maker

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dwarvesf/escrow-backend/internal/consts"
	"github.com/dwarvesf/escrow-backend/internal/model"
	"github.com/dwarvesf/escrow-backend/internal/oracle"
	"github.com/dwarvesf/escrow-backend/internal/store"
	"github.com/dwarvesf/escrow-backend/internal/store/makerprofile"
	"github.com/dwarvesf/escrow-backend/internal/utils/logger"
)

type Registry struct {
	db       *gorm.DB
	store    *store.Store
	logger   *logger.Logger
	validate *validator.Validate
}

func New(db *gorm.DB, store *store.Store, logger *logger.Logger) *Registry {
	return &Registry{
		db:       db,
		store:    store,
		logger:   logger,
		validate: validator.New(),
	}
}

func (r *Registry) Register(ctx context.Context, req RegisterRequest) (*model.MakerProfile, error) {
	if err := r.validate.Struct(req); err != nil {
		return nil, model.Validationf("%v", err)
	}

	maker := &model.MakerProfile{
		ID:             req.ID,
		Name:           req.Name,
		SellPremiumBps: req.SellPremiumBps,
		BuyPremiumBps:  req.BuyPremiumBps,
		PaymentChannel: req.PaymentChannel,
		TronAddress:    req.TronAddress,
		MinSwapAmount:  req.MinSwapAmount,
		MaxSwapAmount:  req.MaxSwapAmount,
	}
	if err := validateProfile(maker); err != nil {
		return nil, err
	}

	err := store.DoInTx(r.db, func(tx *gorm.DB) error {
		_, err := r.store.MakerProfile.Get(tx, req.ID)
		if err == nil {
			return model.Validationf("maker %s already registered", req.ID)
		}
		if !errors.Is(err, model.ErrNotFound) {
			return err
		}
		_, err = r.store.MakerProfile.Create(tx, maker)
		return err
	})
	if err != nil {
		r.logger.Error("[Register][DoInTx]", map[string]string{
			"maker_id": req.ID,
			"error":    err.Error(),
		})
		return nil, err
	}

	r.logger.Info("[Register] maker registered", map[string]string{"maker_id": maker.ID})
	return maker, nil
}

func (r *Registry) UpdateProfile(ctx context.Context, id string, req UpdateRequest) (*model.MakerProfile, error) {
	return r.mutate(id, func(m *model.MakerProfile) error {
		if req.Name != nil {
			m.Name = *req.Name
		}
		if req.SellPremiumBps != nil {
			m.SellPremiumBps = *req.SellPremiumBps
		}
		if req.BuyPremiumBps != nil {
			m.BuyPremiumBps = *req.BuyPremiumBps
		}
		if req.PaymentChannel != nil {
			m.PaymentChannel = *req.PaymentChannel
		}
		if req.TronAddress != nil {
			m.TronAddress = *req.TronAddress
		}
		if req.MinSwapAmount != nil {
			m.MinSwapAmount = *req.MinSwapAmount
		}
		if req.MaxSwapAmount != nil {
			m.MaxSwapAmount = *req.MaxSwapAmount
		}
		return validateProfile(m)
	})
}

func (r *Registry) Pause(ctx context.Context, id string) (*model.MakerProfile, error) {
	return r.mutate(id, func(m *model.MakerProfile) error {
		m.ServicePaused = true
		return nil
	})
}

func (r *Registry) Resume(ctx context.Context, id string) (*model.MakerProfile, error) {
	return r.mutate(id, func(m *model.MakerProfile) error {
		m.ServicePaused = false
		return nil
	})
}

func (r *Registry) Suspend(ctx context.Context, id, reason string) (*model.MakerProfile, error) {
	if reason == "" {
		return nil, model.Validationf("suspend reason is required")
	}
	return r.mutate(id, func(m *model.MakerProfile) error {
		m.Suspended = true
		m.SuspendReason = reason
		return nil
	})
}

func (r *Registry) Unsuspend(ctx context.Context, id string) (*model.MakerProfile, error) {
	return r.mutate(id, func(m *model.MakerProfile) error {
		m.Suspended = false
		m.SuspendReason = ""
		return nil
	})
}

func (r *Registry) Get(ctx context.Context, id string) (*model.MakerProfile, error) {
	return r.store.MakerProfile.Get(r.db, id)
}

func (r *Registry) List(ctx context.Context, filter makerprofile.ListFilter) ([]*model.MakerProfile, int64, error) {
	return r.store.MakerProfile.Find(r.db, filter)
}

// Quote prices baseAmount with the maker's premium for the side, rounding down.
func (r *Registry) Quote(ctx context.Context, id string, side Side, baseAmount decimal.Decimal) (*Quote, error) {
	if !model.IsPositiveAmount(baseAmount) {
		return nil, model.Validationf("invalid base amount %s", baseAmount)
	}

	m, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.Active() {
		return nil, model.Validationf("maker %s is not accepting orders", id)
	}

	var premium int
	switch side {
	case SideSell:
		premium = m.SellPremiumBps
	case SideBuy:
		premium = m.BuyPremiumBps
	default:
		return nil, model.Validationf("unknown side %q", side)
	}

	return &Quote{
		MakerID:     id,
		Side:        side,
		BaseAmount:  baseAmount,
		PremiumBps:  premium,
		QuotedPrice: model.MulBps(baseAmount, int64(consts.BPS_DENOMINATOR+premium)),
	}, nil
}

func (r *Registry) GetActiveTx(tx *gorm.DB, id string) (*model.MakerProfile, error) {
	m, err := r.store.MakerProfile.GetForUpdate(tx, id)
	if err != nil {
		return nil, err
	}
	if m.Suspended {
		return nil, model.Validationf("maker %s is suspended", id)
	}
	if m.ServicePaused {
		return nil, model.Validationf("maker %s has paused service", id)
	}
	return m, nil
}

func (r *Registry) IsMakerTx(tx *gorm.DB, id string) (bool, error) {
	_, err := r.store.MakerProfile.Get(tx, id)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Registry) IncrementUsersServedTx(tx *gorm.DB, id string) error {
	return r.store.MakerProfile.IncrementUsersServed(tx, id)
}

func (r *Registry) mutate(id string, fn func(m *model.MakerProfile) error) (*model.MakerProfile, error) {
	var maker *model.MakerProfile
	err := store.DoInTx(r.db, func(tx *gorm.DB) error {
		m, err := r.store.MakerProfile.GetForUpdate(tx, id)
		if err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
		if err := r.store.MakerProfile.Save(tx, m); err != nil {
			return err
		}
		maker = m
		return nil
	})
	if err != nil {
		r.logger.Error("[mutate][DoInTx]", map[string]string{
			"maker_id": id,
			"error":    err.Error(),
		})
		return nil, err
	}
	return maker, nil
}

func validateProfile(m *model.MakerProfile) error {
	if m.SellPremiumBps <= -consts.BPS_DENOMINATOR || m.SellPremiumBps >= consts.BPS_DENOMINATOR {
		return model.Validationf("sell premium %d out of range", m.SellPremiumBps)
	}
	if m.BuyPremiumBps <= -consts.BPS_DENOMINATOR || m.BuyPremiumBps >= consts.BPS_DENOMINATOR {
		return model.Validationf("buy premium %d out of range", m.BuyPremiumBps)
	}
	if m.Name == "" || m.PaymentChannel == "" {
		return model.Validationf("name and payment channel are required")
	}
	if m.TronAddress != "" {
		if err := oracle.ValidateTronAddress(m.TronAddress); err != nil {
			return err
		}
	}
	if m.MinSwapAmount.IsNegative() || m.MaxSwapAmount.IsNegative() {
		return model.Validationf("swap bounds must not be negative")
	}
	if m.MaxSwapAmount.IsPositive() && m.MinSwapAmount.GreaterThan(m.MaxSwapAmount) {
		return model.Validationf("min swap amount exceeds max")
	}
	return nil
}
