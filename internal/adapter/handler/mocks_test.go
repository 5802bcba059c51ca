package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/port"
)

const sessionKey = "liora_blooms_session"

// accounts is the identity backend shared by every device.
type accounts struct {
	mu    sync.Mutex
	creds map[string]string // email -> password
	ids   map[string]string // email -> user id
}

func newAccounts() *accounts {
	return &accounts{creds: make(map[string]string), ids: make(map[string]string)}
}

func (a *accounts) add(id, email, password string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creds[email] = password
	a.ids[email] = id
}

func (a *accounts) forDevice(store port.LocalStore) port.AuthBackend {
	return &deviceAuth{accounts: a, store: store}
}

// deviceAuth keeps its session in the device store like the real client.
type deviceAuth struct {
	accounts *accounts
	store    port.LocalStore
}

type fakeSession struct {
	Token string `json:"access_token"`
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (d *deviceAuth) GetSession(ctx context.Context) (*domain.Session, error) {
	data, ok, err := d.store.Get(ctx, sessionKey)
	if err != nil || !ok {
		return nil, err
	}
	var s *fakeSession
	if err := json.Unmarshal(data, &s); err != nil || s == nil {
		return nil, nil
	}
	return &domain.Session{AccessToken: s.Token, User: domain.User{ID: s.ID, Email: s.Email}}, nil
}

func (d *deviceAuth) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	d.accounts.mu.Lock()
	pw, ok := d.accounts.creds[email]
	id := d.accounts.ids[email]
	d.accounts.mu.Unlock()
	if !ok || pw != password {
		return nil, &port.BackendError{Status: http.StatusBadRequest, Message: "Invalid login credentials"}
	}

	data, _ := json.Marshal(fakeSession{Token: "token-" + id, ID: id, Email: email})
	if err := d.store.Set(ctx, sessionKey, data); err != nil {
		return nil, err
	}
	return &domain.Session{AccessToken: "token-" + id, User: domain.User{ID: id, Email: email}}, nil
}

func (d *deviceAuth) SignUp(ctx context.Context, email, password string) (*domain.User, error) {
	d.accounts.mu.Lock()
	defer d.accounts.mu.Unlock()
	if _, taken := d.accounts.creds[email]; taken {
		return nil, &port.BackendError{Status: http.StatusUnprocessableEntity, Message: "User already registered"}
	}
	id := "user-" + email
	d.accounts.creds[email] = password
	d.accounts.ids[email] = id
	return &domain.User{ID: id, Email: email}, nil
}

func (d *deviceAuth) SignOut(ctx context.Context) error {
	return d.store.Set(ctx, sessionKey, []byte("null"))
}

func (d *deviceAuth) Subscribe() (<-chan domain.SessionEvent, func()) {
	return make(chan domain.SessionEvent), func() {}
}

// memDB implements every repository in memory.
type memDB struct {
	mu         sync.Mutex
	profiles   map[string]domain.Profile
	products   map[string]domain.Product
	orders     map[string]domain.Order
	promotions map[string]domain.Promotion
	reviews    map[string]domain.Review
	failOrders error
}

func newMemDB() *memDB {
	return &memDB{
		profiles:   make(map[string]domain.Profile),
		products:   make(map[string]domain.Product),
		orders:     make(map[string]domain.Order),
		promotions: make(map[string]domain.Promotion),
		reviews:    make(map[string]domain.Review),
	}
}

func (m *memDB) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memDB) CreateProfile(_ context.Context, profile domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profile.ID] = profile
	return nil
}

func (m *memDB) UpdateProfile(_ context.Context, userID string, update domain.ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return port.ErrNotFound
	}
	p.FullName, p.Phone = update.FullName, update.Phone
	m.profiles[userID] = p
	return nil
}

func (m *memDB) ListProfilesByRole(_ context.Context, roles ...domain.Role) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Profile
	for _, p := range m.profiles {
		for _, r := range roles {
			if p.Role == r {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memDB) SetRole(_ context.Context, userID string, role domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return port.ErrNotFound
	}
	p.Role = role
	m.profiles[userID] = p
	return nil
}

func (m *memDB) DeleteProfile(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[userID]; !ok {
		return port.ErrNotFound
	}
	delete(m.profiles, userID)
	return nil
}

func (m *memDB) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.PopularOnly && !p.Popular {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memDB) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memDB) CreateProduct(_ context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product
	return nil
}

func (m *memDB) UpdateProduct(_ context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[product.ID]; !ok {
		return port.ErrNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *memDB) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return port.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memDB) CreateOrder(_ context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOrders != nil {
		return m.failOrders
	}
	for _, o := range m.orders {
		if o.Reference == order.Reference {
			return port.ErrDuplicateReference
		}
	}
	m.orders[order.ID] = order
	return nil
}

func (m *memDB) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *memDB) ListOrders(_ context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memDB) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	all, _ := m.ListOrders(ctx)
	var out []domain.Order
	for _, o := range all {
		if o.UserID != nil && *o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memDB) UpdateOrderStatus(_ context.Context, id string, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return port.ErrNotFound
	}
	if o.Status != from {
		return port.ErrStatusConflict
	}
	o.Status = to
	m.orders[id] = o
	return nil
}

func (m *memDB) Stats(_ context.Context) (domain.DashboardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := domain.DashboardStats{Revenue: decimal.Zero}
	for _, o := range m.orders {
		stats.Orders++
		if o.Status == domain.OrderStatusPending {
			stats.PendingOrders++
		}
		if o.Status != domain.OrderStatusCancelled {
			stats.Revenue = stats.Revenue.Add(o.Total)
		}
	}
	for _, p := range m.profiles {
		if p.Role == domain.RoleUser {
			stats.Customers++
		}
	}
	return stats, nil
}

func (m *memDB) ListPromotions(_ context.Context) ([]domain.Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Promotion, 0, len(m.promotions))
	for _, p := range m.promotions {
		out = append(out, p)
	}
	return out, nil
}

func (m *memDB) SavePromotion(_ context.Context, promo domain.Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promotions[promo.ID] = promo
	return nil
}

func (m *memDB) DeletePromotion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.promotions, id)
	return nil
}

func (m *memDB) ListReviewsByUser(_ context.Context, userID string) ([]domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Review
	for _, r := range m.reviews {
		if r.UserID == userID {
			r.ProductName = m.products[r.ProductID].Name
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memDB) CreateReview(_ context.Context, review domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews[review.ID] = review
	return nil
}

func (m *memDB) DeleteReview(_ context.Context, userID, reviewID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[reviewID]
	if !ok || r.UserID != userID {
		return port.ErrNotFound
	}
	delete(m.reviews, reviewID)
	return nil
}

func (m *memDB) addProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.products[p.ID] = p
}

func (m *memDB) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type fakeBlobs struct {
	mu    sync.Mutex
	paths []string
}

func (b *fakeBlobs) Upload(_ context.Context, path, _ string, body io.Reader) (string, error) {
	io.Copy(io.Discard, body)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, path)
	return "https://cdn.example.test/product-images/" + path, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType+":"+key)
	return nil
}

func (p *recordingPublisher) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}
