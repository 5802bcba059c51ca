package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/port"
)

const (
	deliveryDateLayout   = "2006-01-02"
	maxReferenceAttempts = 5
)

type BankDetails struct {
	Bank          string
	AccountName   string
	AccountNumber string
	BranchCode    string
	ProofEmail    string
}

type CheckoutSettings struct {
	CourierFee  decimal.Decimal
	DefaultCity string
	Bank        BankDetails
	// RejectEmptyCart fails Submit with ErrEmptyCart when there is nothing
	// to order. Without it an empty cart is left to the caller to refuse.
	RejectEmptyCart bool
}

type ShippingForm struct {
	FullName     string `json:"full_name" validate:"required"`
	Email        string `json:"email"`
	Phone        string `json:"phone" validate:"required"`
	DeliveryDate string `json:"delivery_date" validate:"required,datetime=2006-01-02"`
	Street       string `json:"street_address" validate:"required"`
	Unit         string `json:"unit"`
	Suburb       string `json:"suburb"`
	City         string `json:"city"`
	PostalCode   string `json:"postal_code"`
}

func (f *ShippingForm) normalize() {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.DeliveryDate = strings.TrimSpace(f.DeliveryDate)
	f.Street = strings.TrimSpace(f.Street)
	f.Unit = strings.TrimSpace(f.Unit)
	f.Suburb = strings.TrimSpace(f.Suburb)
	f.City = strings.TrimSpace(f.City)
	f.PostalCode = strings.TrimSpace(f.PostalCode)
}

// Receipt is what the shopper needs to pay by EFT.
type Receipt struct {
	Order      domain.Order
	Subtotal   decimal.Decimal
	CourierFee decimal.Decimal
	Bank       BankDetails
}

type eventSink interface {
	Enqueue(ev Event)
}

type CheckoutService struct {
	cart     *CartStore
	orders   port.OrderRepository
	refs     *ReferenceGenerator
	events   eventSink
	settings CheckoutSettings
	log      *zap.Logger
	now      func() time.Time

	inFlight atomic.Bool
}

func NewCheckoutService(
	cart *CartStore,
	orders port.OrderRepository,
	refs *ReferenceGenerator,
	events eventSink,
	settings CheckoutSettings,
	log *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		cart:     cart,
		orders:   orders,
		refs:     refs,
		events:   events,
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}

// Submit turns the current cart into a pending EFT order. owner is nil for
// guest checkout. On success the ordered lines leave the cart, lines added
// while the order was being written stay. On failure the cart is kept and
// the backend's message is returned in a SubmitError.
func (s *CheckoutService) Submit(ctx context.Context, form ShippingForm, owner *domain.Profile) (Receipt, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return Receipt{}, ErrSubmissionInFlight
	}
	defer s.inFlight.Store(false)

	// checked under the guard, a submit that just finished has cleared the cart
	if s.settings.RejectEmptyCart && s.cart.Len() == 0 {
		return Receipt{}, ErrEmptyCart
	}

	form.normalize()
	if err := check(form); err != nil {
		return Receipt{}, err
	}

	deliveryDate, err := time.Parse(deliveryDateLayout, form.DeliveryDate)
	if err != nil {
		return Receipt{}, &ValidationError{Fields: []string{"delivery_date"}}
	}

	snapshot := s.cart.Snapshot()
	subtotal := snapshot.Total()

	order := s.buildOrder(form, owner, deliveryDate, snapshot.Items)
	order.Total = subtotal.Add(s.settings.CourierFee)

	if err := s.insert(ctx, &order); err != nil {
		return Receipt{}, err
	}

	s.log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("reference", order.Reference),
		zap.Bool("guest", order.IsGuest()),
		zap.String("total", order.Total.StringFixed(2)),
	)

	ordered := make([]string, len(snapshot.Items))
	for i, item := range snapshot.Items {
		ordered[i] = item.ID
	}
	if err := s.cart.RemoveLines(ctx, ordered); err != nil {
		s.log.Warn("order placed but cart could not be cleared",
			zap.String("reference", order.Reference),
			zap.Error(err),
		)
	}

	if s.events != nil {
		s.events.Enqueue(Event{
			Type: domain.EventOrderPlaced,
			Key:  order.Reference,
			Payload: domain.OrderPlaced{
				OrderID:   order.ID,
				Reference: order.Reference,
				UserID:    order.UserID,
				Total:     order.Total,
				ItemCount: len(order.Items),
				PlacedAt:  order.CreatedAt,
			},
		})
	}

	return Receipt{
		Order:      order,
		Subtotal:   subtotal,
		CourierFee: s.settings.CourierFee,
		Bank:       s.settings.Bank,
	}, nil
}

// insert draws a fresh reference only when the previous one was taken.
func (s *CheckoutService) insert(ctx context.Context, order *domain.Order) error {
	var err error
	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		order.Reference = s.refs.Next()

		err = s.orders.CreateOrder(ctx, *order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, port.ErrDuplicateReference) {
			break
		}
		s.log.Debug("order reference taken",
			zap.String("reference", order.Reference),
			zap.Int("attempt", attempt),
		)
	}
	return &SubmitError{Message: err.Error(), Err: err}
}

func (s *CheckoutService) buildOrder(form ShippingForm, owner *domain.Profile, deliveryDate time.Time, items []domain.LineItem) domain.Order {
	now := s.now()

	email := form.Email
	var userID *string
	if owner != nil {
		id := owner.ID
		userID = &id
		if email == "" {
			email = owner.Email
		}
	}

	city := form.City
	if city == "" {
		city = s.settings.DefaultCity
	}

	return domain.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		CustomerName:  form.FullName,
		CustomerEmail: email,
		CustomerPhone: form.Phone,
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodEFT,
		DeliveryDate:  deliveryDate,
		Items:         items,
		Shipping: domain.ShippingAddress{
			Street:     form.Street,
			Unit:       form.Unit,
			Suburb:     form.Suburb,
			City:       city,
			PostalCode: form.PostalCode,
			Phone:      form.Phone,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
