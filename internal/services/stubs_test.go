package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/payments"
	"github.com/hanko-field/commerce/internal/repositories"
)

var testNow = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%03d", prefix, n)
	}
}

type testRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e testRepoError) Error() string {
	switch {
	case e.notFound:
		return "not found"
	case e.conflict:
		return "conflict"
	default:
		return "unavailable"
	}
}

func (e testRepoError) IsNotFound() bool    { return e.notFound }
func (e testRepoError) IsConflict() bool    { return e.conflict }
func (e testRepoError) IsUnavailable() bool { return e.unavailable }

var (
	errTestNotFound = testRepoError{notFound: true}
	errTestConflict = testRepoError{conflict: true}
)

// memOrderRepo ---------------------------------------------------------------

type memOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	updates   []domain.Order
	insertErr error
	updateErr error
}

func newMemOrderRepo(orders ...domain.Order) *memOrderRepo {
	repo := &memOrderRepo{orders: map[string]domain.Order{}}
	for _, order := range orders {
		repo.orders[order.ID] = order
	}
	return repo
}

func (r *memOrderRepo) Insert(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	if _, exists := r.orders[order.ID]; exists {
		return errTestConflict
	}
	r.orders[order.ID] = order
	return nil
}

func (r *memOrderRepo) Update(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, exists := r.orders[order.ID]; !exists {
		return errTestNotFound
	}
	r.orders[order.ID] = order
	r.updates = append(r.updates, order)
	return nil
}

func (r *memOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, errTestNotFound
	}
	return order, nil
}

func (r *memOrderRepo) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []domain.Order
	for _, order := range r.orders {
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		items = append(items, order)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return domain.CursorPage[domain.Order]{Items: items}, nil
}

// memDetailRepo --------------------------------------------------------------

type memDetailRepo struct {
	mu              sync.Mutex
	details         map[string]domain.OrderDetail
	updateStatusErr error
	statusCalls     int
}

func newMemDetailRepo(details ...domain.OrderDetail) *memDetailRepo {
	repo := &memDetailRepo{details: map[string]domain.OrderDetail{}}
	for _, detail := range details {
		repo.details[detail.ID] = detail
	}
	return repo
}

func (r *memDetailRepo) InsertMany(_ context.Context, details []domain.OrderDetail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, detail := range details {
		r.details[detail.ID] = detail
	}
	return nil
}

func (r *memDetailRepo) ListByOrder(_ context.Context, orderID string) ([]domain.OrderDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.OrderDetail
	for _, detail := range r.details {
		if detail.OrderID == orderID {
			out = append(out, detail)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memDetailRepo) UpdateStatus(_ context.Context, ids []string, status domain.OrderDetailStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusCalls++
	if r.updateStatusErr != nil {
		return r.updateStatusErr
	}
	for _, id := range ids {
		detail, ok := r.details[id]
		if !ok {
			return errTestNotFound
		}
		detail.Status = status
		detail.UpdatedAt = at
		r.details[id] = detail
	}
	return nil
}

func (r *memDetailRepo) statuses(orderID string) map[string]domain.OrderDetailStatus {
	details, _ := r.ListByOrder(context.Background(), orderID)
	out := make(map[string]domain.OrderDetailStatus, len(details))
	for _, detail := range details {
		out[detail.ID] = detail.Status
	}
	return out
}

// memProductRepo applies stock changes all-or-nothing, mirroring the Firestore transaction.

type memProductRepo struct {
	mu       sync.Mutex
	products map[string]domain.Product
	err      error
}

func newMemProductRepo(products ...domain.Product) *memProductRepo {
	repo := &memProductRepo{products: map[string]domain.Product{}}
	for _, product := range products {
		repo.products[product.ID] = product
	}
	return repo
}

func (r *memProductRepo) FindByID(_ context.Context, productID string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, errTestNotFound
	}
	return product, nil
}

func (r *memProductRepo) FindMany(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	var out []domain.Product
	for _, id := range productIDs {
		if product, err := r.FindByID(ctx, id); err == nil {
			out = append(out, product)
		}
	}
	return out, nil
}

func (r *memProductRepo) Upsert(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[product.ID] = product
	return nil
}

func (r *memProductRepo) DecrementStock(_ context.Context, changes []domain.StockChange, at time.Time) ([]domain.Product, error) {
	return r.apply(changes, -1, at)
}

func (r *memProductRepo) IncrementStock(_ context.Context, changes []domain.StockChange, at time.Time) ([]domain.Product, error) {
	return r.apply(changes, 1, at)
}

func (r *memProductRepo) SetStock(_ context.Context, productID string, stock int, at time.Time) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, productID, "missing", nil)
	}
	product.Stock = stock
	product.UpdatedAt = at
	r.products[productID] = product
	return product, nil
}

func (r *memProductRepo) apply(changes []domain.StockChange, sign int, at time.Time) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	next := make(map[string]domain.Product, len(changes))
	for _, change := range changes {
		product, ok := next[change.ProductID]
		if !ok {
			product, ok = r.products[change.ProductID]
		}
		if !ok {
			return nil, repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, change.ProductID, "missing", nil)
		}
		product.Stock += sign * change.Quantity
		if product.Stock < 0 {
			return nil, repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, change.ProductID, "insufficient", nil)
		}
		product.UpdatedAt = at
		next[change.ProductID] = product
	}
	out := make([]domain.Product, 0, len(next))
	for id, product := range next {
		r.products[id] = product
		out = append(out, product)
	}
	return out, nil
}

func (r *memProductRepo) stock(productID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[productID].Stock
}

// memCounterRepo -------------------------------------------------------------

type memCounterRepo struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func (r *memCounterRepo) Next(_ context.Context, counterID string, step int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	if r.values == nil {
		r.values = map[string]int64{}
	}
	r.values[counterID] += step
	return r.values[counterID], nil
}

func (r *memCounterRepo) Configure(context.Context, string, repositories.CounterConfig) error {
	return nil
}

// memDepositRepo -------------------------------------------------------------

type memDepositRepo struct {
	mu       sync.Mutex
	settings map[string]domain.DepositSetting
}

func newMemDepositRepo(settings ...domain.DepositSetting) *memDepositRepo {
	repo := &memDepositRepo{settings: map[string]domain.DepositSetting{}}
	for _, setting := range settings {
		repo.settings[setting.ID] = setting
	}
	return repo
}

func (r *memDepositRepo) Insert(_ context.Context, setting domain.DepositSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.settings[setting.ID]; exists {
		return errTestConflict
	}
	r.settings[setting.ID] = setting
	return nil
}

func (r *memDepositRepo) Update(_ context.Context, setting domain.DepositSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[setting.ID] = setting
	return nil
}

func (r *memDepositRepo) FindByID(_ context.Context, id string) (domain.DepositSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	setting, ok := r.settings[id]
	if !ok {
		return domain.DepositSetting{}, errTestNotFound
	}
	return setting, nil
}

func (r *memDepositRepo) List(_ context.Context, includeDeleted bool) ([]domain.DepositSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.DepositSetting
	for _, setting := range r.settings {
		if setting.Deleted && !includeDeleted {
			continue
		}
		out = append(out, setting)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinTotal < out[j].MinTotal })
	return out, nil
}

// memReturnRepo --------------------------------------------------------------

type memReturnRepo struct {
	mu      sync.Mutex
	returns map[string]domain.ReturnRequest
}

func newMemReturnRepo() *memReturnRepo {
	return &memReturnRepo{returns: map[string]domain.ReturnRequest{}}
}

func (r *memReturnRepo) Insert(_ context.Context, request domain.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.returns[request.ID] = request
	return nil
}

func (r *memReturnRepo) Update(_ context.Context, request domain.ReturnRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.returns[request.ID] = request
	return nil
}

func (r *memReturnRepo) FindByID(_ context.Context, id string) (domain.ReturnRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.returns[id]
	if !ok {
		return domain.ReturnRequest{}, errTestNotFound
	}
	return request, nil
}

func (r *memReturnRepo) List(_ context.Context, filter repositories.ReturnListFilter) (domain.CursorPage[domain.ReturnRequest], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []domain.ReturnRequest
	for _, request := range r.returns {
		if filter.UserID != "" && request.UserID != filter.UserID {
			continue
		}
		items = append(items, request)
	}
	return domain.CursorPage[domain.ReturnRequest]{Items: items}, nil
}

// memCartRepo / memWishlistRepo ----------------------------------------------

type memCartRepo struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
	stale []string
}

func newMemCartRepo(carts ...domain.Cart) *memCartRepo {
	repo := &memCartRepo{carts: map[string]domain.Cart{}}
	for _, cart := range carts {
		repo.carts[cart.UserID] = cart
	}
	return repo
}

func (r *memCartRepo) Get(_ context.Context, userID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[userID]
	if !ok {
		return domain.Cart{}, errTestNotFound
	}
	cart.Items = append([]domain.CartItem(nil), cart.Items...)
	return cart, nil
}

func (r *memCartRepo) Save(_ context.Context, cart domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart.Items = append([]domain.CartItem(nil), cart.Items...)
	r.carts[cart.UserID] = cart
	return nil
}

func (r *memCartRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.carts[userID]; !ok {
		return errTestNotFound
	}
	delete(r.carts, userID)
	return nil
}

func (r *memCartRepo) ListStale(_ context.Context, before time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, cart := range r.carts {
		if cart.UpdatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type memWishlistRepo struct {
	mu        sync.Mutex
	wishlists map[string]domain.Wishlist
	saves     int
}

func (r *memWishlistRepo) Get(_ context.Context, userID string) (domain.Wishlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wishlist, ok := r.wishlists[userID]
	if !ok {
		return domain.Wishlist{}, errTestNotFound
	}
	wishlist.Items = append([]domain.WishlistItem(nil), wishlist.Items...)
	return wishlist, nil
}

func (r *memWishlistRepo) Save(_ context.Context, wishlist domain.Wishlist) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wishlists == nil {
		r.wishlists = map[string]domain.Wishlist{}
	}
	r.saves++
	r.wishlists[wishlist.UserID] = wishlist
	return nil
}

// memCheckoutRepo ------------------------------------------------------------

type memCheckoutRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.CheckoutSession
}

func newMemCheckoutRepo() *memCheckoutRepo {
	return &memCheckoutRepo{sessions: map[string]domain.CheckoutSession{}}
}

func (r *memCheckoutRepo) Insert(_ context.Context, session domain.CheckoutSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *memCheckoutRepo) Update(_ context.Context, session domain.CheckoutSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *memCheckoutRepo) FindByID(_ context.Context, id string) (domain.CheckoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return domain.CheckoutSession{}, errTestNotFound
	}
	return session, nil
}

func (r *memCheckoutRepo) FindByProviderSession(_ context.Context, provider, sessionID string) (domain.CheckoutSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.Provider == provider && session.ProviderSessionID == sessionID {
			return session, nil
		}
	}
	return domain.CheckoutSession{}, errTestNotFound
}

// Collaborator stubs ----------------------------------------------------------

type captureEvents struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (c *captureEvents) Publish(_ context.Context, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

func (c *captureEvents) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, event := range c.events {
		out = append(out, event.Name)
	}
	return out
}

type captureMailer struct {
	mu    sync.Mutex
	mails []OrderMail
}

func (c *captureMailer) SendOrderMail(_ context.Context, mail OrderMail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mails = append(c.mails, mail)
	return nil
}

type stubRefunder struct {
	calls    []payments.RefundRequest
	refundFn func(payments.PaymentContext, payments.RefundRequest) (payments.PaymentDetails, error)
}

func (s *stubRefunder) Refund(_ context.Context, paymentCtx payments.PaymentContext, req payments.RefundRequest) (payments.PaymentDetails, error) {
	s.calls = append(s.calls, req)
	if s.refundFn != nil {
		return s.refundFn(paymentCtx, req)
	}
	return payments.PaymentDetails{RefundID: "re_" + req.IntentID, Status: payments.StatusRefunded}, nil
}

type stubGateway struct {
	resolveFn func(payments.PaymentContext) (string, error)
	createFn  func(payments.PaymentContext, payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
	confirmFn func(payments.PaymentContext, payments.ConfirmRequest) (payments.PaymentDetails, error)
	stubRefunder
	confirmCalls int
}

func (s *stubGateway) Resolve(paymentCtx payments.PaymentContext) (string, error) {
	if s.resolveFn != nil {
		return s.resolveFn(paymentCtx)
	}
	if paymentCtx.PreferredProvider != "" {
		return paymentCtx.PreferredProvider, nil
	}
	return payments.ProviderStripe, nil
}

func (s *stubGateway) CreateCheckoutSession(_ context.Context, paymentCtx payments.PaymentContext, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	if s.createFn != nil {
		return s.createFn(paymentCtx, req)
	}
	return payments.CheckoutSession{}, errors.New("not implemented")
}

func (s *stubGateway) Confirm(_ context.Context, paymentCtx payments.PaymentContext, req payments.ConfirmRequest) (payments.PaymentDetails, error) {
	s.confirmCalls++
	if s.confirmFn != nil {
		return s.confirmFn(paymentCtx, req)
	}
	return payments.PaymentDetails{}, errors.New("not implemented")
}

type recordingUnitOfWork struct {
	calls int
}

func (u *recordingUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	u.calls++
	return fn(ctx)
}
