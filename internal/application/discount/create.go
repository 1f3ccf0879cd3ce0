package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
	domain "github.com/Zhima-Mochi/minishop-checkout/internal/domain/discount"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	discountService       = "discount-service"
	useCaseDiscountCreate = "discount.create"
)

var ErrRepository = errors.New("discount: repository failure")

type CreateDiscountInput struct {
	Code        string
	Type        string
	Value       int64
	Active      *bool
	ValidFrom   time.Time
	ValidTo     time.Time
	MinPurchase int64
	ProductIDs  []string
	Categories  []string
	UsageLimit  int
}

type CreateDiscountUseCase struct {
	repo domain.Repository
	now  func() time.Time
	ins  application.Instruments
}

var _ application.UseCase[CreateDiscountInput, *domain.Discount] = (*CreateDiscountUseCase)(nil)

func NewCreateDiscountUseCase(repo domain.Repository, tel observability.Observability) *CreateDiscountUseCase {
	return &CreateDiscountUseCase{
		repo: repo,
		now:  time.Now,
		ins:  application.NewInstruments(tel, discountService),
	}
}

// Execute registers a new code. Codes are compared upper-cased and trimmed;
// registering an existing code fails with domain.ErrConflict.
func (uc *CreateDiscountUseCase) Execute(ctx context.Context, cmd CreateDiscountInput) (_ *domain.Discount, err error) {
	code := domain.NormalizeCode(cmd.Code)
	ctx, run := uc.ins.Begin(ctx, useCaseDiscountCreate, "CreateDiscount",
		attribute.String("discount.code", code),
		attribute.String("discount.type", cmd.Type),
	)
	defer func() { run.End(err) }()

	active := true
	if cmd.Active != nil {
		active = *cmd.Active
	}
	d := &domain.Discount{
		Code:        code,
		Type:        domain.Type(cmd.Type),
		Value:       cmd.Value,
		Active:      active,
		ValidFrom:   cmd.ValidFrom,
		ValidTo:     cmd.ValidTo,
		MinPurchase: cmd.MinPurchase,
		ProductIDs:  cmd.ProductIDs,
		Categories:  cmd.Categories,
		UsageLimit:  cmd.UsageLimit,
		CreatedAt:   uc.now().UTC(),
	}
	if err := d.Validate(); err != nil {
		run.Fail("DISCOUNT_INVALID")
		return nil, fmt.Errorf("%w: %w", application.ErrValidation, err)
	}

	if err := uc.repo.Create(ctx, d); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			run.Fail("DISCOUNT_CODE_TAKEN")
			return nil, err
		}
		run.Fail("REPO_INSERT_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	return d, nil
}
