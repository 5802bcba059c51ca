package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/port"
)

var errBackend = errors.New("backend unavailable")

// Mock LocalStore
type memoryStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    int
	clears  int
	failSet error
	failGet error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string][]byte)}
}

func (m *memoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, false, m.failGet
	}
	v, ok := m.data[key]
	return append([]byte(nil), v...), ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.sets++
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	m.data = make(map[string][]byte)
	return nil
}

func (m *memoryStore) put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = []byte(value)
}

func (m *memoryStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// Mock AuthBackend
type fakeAuth struct {
	mu          sync.Mutex
	session     *domain.Session
	getErr      error
	signInErr   error
	signUpErr   error
	signOutErr  error
	signOuts    int
	credentials map[string]string // email -> password
	users       map[string]string // email -> user id
	subs        []chan domain.SessionEvent
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		credentials: make(map[string]string),
		users:       make(map[string]string),
	}
}

func (f *fakeAuth) addUser(id, email, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credentials[email] = password
	f.users[email] = id
}

func (f *fakeAuth) GetSession(ctx context.Context) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.session, nil
}

func (f *fakeAuth) SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	if pw, ok := f.credentials[email]; !ok || pw != password {
		return nil, errors.New("Invalid login credentials")
	}
	f.session = &domain.Session{
		AccessToken: "token-" + f.users[email],
		User:        domain.User{ID: f.users[email], Email: email},
	}
	return f.session, nil
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	id := "user-" + strings.SplitN(email, "@", 2)[0]
	f.credentials[email] = password
	f.users[email] = id
	return &domain.User{ID: id, Email: email}, nil
}

func (f *fakeAuth) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts++
	f.session = nil
	return f.signOutErr
}

func (f *fakeAuth) Subscribe() (<-chan domain.SessionEvent, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan domain.SessionEvent, 8)
	f.subs = append(f.subs, ch)
	return ch, func() {}
}

func (f *fakeAuth) emit(ev domain.SessionEvent) {
	f.mu.Lock()
	subs := append([]chan domain.SessionEvent(nil), f.subs...)
	f.mu.Unlock()
	for _, ch := range subs {
		ch <- ev
	}
}

func (f *fakeAuth) signOutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOuts
}

// Mock ProfileRepository
type mockProfiles struct {
	mu        sync.Mutex
	profiles  map[string]domain.Profile
	getErr    error
	createErr error
}

func newMockProfiles(profiles ...domain.Profile) *mockProfiles {
	m := &mockProfiles{profiles: make(map[string]domain.Profile)}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *mockProfiles) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockProfiles) CreateProfile(ctx context.Context, profile domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.profiles[profile.ID] = profile
	return nil
}

func (m *mockProfiles) UpdateProfile(ctx context.Context, userID string, update domain.ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return port.ErrNotFound
	}
	p.FullName = update.FullName
	p.Phone = update.Phone
	m.profiles[userID] = p
	return nil
}

func (m *mockProfiles) ListProfilesByRole(ctx context.Context, roles ...domain.Role) ([]domain.Profile, error) {
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

func (m *mockProfiles) SetRole(ctx context.Context, userID string, role domain.Role) error {
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

func (m *mockProfiles) DeleteProfile(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[userID]; !ok {
		return port.ErrNotFound
	}
	delete(m.profiles, userID)
	return nil
}

// Mock OrderRepository
type mockOrders struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	taken     map[string]bool
	createErr error
	attempts  int
}

func newMockOrders() *mockOrders {
	return &mockOrders{
		orders: make(map[string]domain.Order),
		taken:  make(map[string]bool),
	}
}

func (m *mockOrders) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.createErr != nil {
		return m.createErr
	}
	if m.taken[order.Reference] {
		return port.ErrDuplicateReference
	}
	m.taken[order.Reference] = true
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrders) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *mockOrders) ListOrders(ctx context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *mockOrders) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.UserID != nil && *o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrders) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
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

func (m *mockOrders) Stats(ctx context.Context) (domain.DashboardStats, error) {
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
	return stats, nil
}

func (m *mockOrders) only() domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		return o
	}
	return domain.Order{}
}

func (m *mockOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// Mock ProductRepository
type mockProducts struct {
	mu       sync.Mutex
	products []domain.Product
	gets     int
}

func newMockProducts(products ...domain.Product) *mockProducts {
	return &mockProducts{products: products}
}

func (m *mockProducts) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
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
	return out, nil
}

func (m *mockProducts) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	for _, p := range m.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *mockProducts) CreateProduct(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, product)
	return nil
}

func (m *mockProducts) UpdateProduct(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.products {
		if p.ID == product.ID {
			m.products[i] = product
			return nil
		}
	}
	return port.ErrNotFound
}

func (m *mockProducts) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.products {
		if p.ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return nil
		}
	}
	return port.ErrNotFound
}

func (m *mockProducts) getCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// Mock ProductCache
type mockCache struct {
	mu      sync.Mutex
	entries map[string]domain.Product
	deletes []string
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]domain.Product)}
}

func (m *mockCache) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entries[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockCache) SetProduct(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[product.ID] = *product
	return nil
}

func (m *mockCache) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	m.deletes = append(m.deletes, id)
	return nil
}

func (m *mockCache) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[id]
	return ok
}

// Mock ReviewRepository
type mockReviews struct {
	mu      sync.Mutex
	reviews []domain.Review
}

func (m *mockReviews) ListReviewsByUser(ctx context.Context, userID string) ([]domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Review
	for _, r := range m.reviews {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockReviews) CreateReview(ctx context.Context, review domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews = append(m.reviews, review)
	return nil
}

func (m *mockReviews) DeleteReview(ctx context.Context, userID, reviewID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.reviews {
		if r.ID == reviewID && r.UserID == userID {
			m.reviews = append(m.reviews[:i], m.reviews[i+1:]...)
			return nil
		}
	}
	return port.ErrNotFound
}

// Mock PromotionRepository
type mockPromotions struct {
	mu     sync.Mutex
	promos map[string]domain.Promotion
}

func newMockPromotions() *mockPromotions {
	return &mockPromotions{promos: make(map[string]domain.Promotion)}
}

func (m *mockPromotions) ListPromotions(ctx context.Context) ([]domain.Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Promotion
	for _, p := range m.promos {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockPromotions) SavePromotion(ctx context.Context, promo domain.Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promos[promo.ID] = promo
	return nil
}

func (m *mockPromotions) DeletePromotion(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.promos[id]; !ok {
		return port.ErrNotFound
	}
	delete(m.promos, id)
	return nil
}

// Mock BlobStorage
type mockBlobs struct {
	mu    sync.Mutex
	paths []string
	types []string
	err   error
}

func (m *mockBlobs) Upload(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return "", err
	}
	m.paths = append(m.paths, path)
	m.types = append(m.types, contentType)
	return "https://cdn.example.test/product-images/" + path, nil
}

// Mock EventPublisher / eventSink
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Enqueue(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) Publish(ctx context.Context, eventType, key string, payload any) error {
	r.Enqueue(Event{Type: eventType, Key: key, Payload: payload})
	return nil
}

func (r *recordingSink) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
