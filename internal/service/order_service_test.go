package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workorder-service/internal/domain"
	"github.com/spec-kit/workorder-service/internal/repository"
	"github.com/spec-kit/workorder-service/internal/storage"
	apperrors "github.com/spec-kit/workorder-service/pkg/util"
)

// ---------------------------------------------------------------------------
// In-memory stubs
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	byID map[string]*domain.User
}

func newStubUserRepo(users ...*domain.User) *stubUserRepo {
	r := &stubUserRepo{byID: make(map[string]*domain.User)}
	for _, u := range users {
		clone := *u
		r.byID[u.ID] = &clone
	}
	return r
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", len(r.byID)+1)
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.byID[user.ID] = &clone
	return nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (r *stubUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.byID {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepo) List(_ context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		return name(out[i]) < name(out[j])
	})
	return out, nil
}

func name(u domain.User) string {
	if u.Name != nil {
		return *u.Name
	}
	return u.Email
}

// stubOrderRepo applies the same filter semantics the SQL builder renders.
type stubOrderRepo struct {
	users     *stubUserRepo
	byID      map[string]*domain.WorkOrder
	createErr error
	updateErr error
}

func newStubOrderRepo(users *stubUserRepo) *stubOrderRepo {
	return &stubOrderRepo{users: users, byID: make(map[string]*domain.WorkOrder)}
}

func (r *stubOrderRepo) put(order *domain.WorkOrder) {
	clone := *order
	clone.CreatedBy = nil
	clone.AssignedTo = nil
	r.byID[order.ID] = &clone
}

func (r *stubOrderRepo) Create(_ context.Context, order *domain.WorkOrder) error {
	if r.createErr != nil {
		return r.createErr
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	r.put(order)
	return nil
}

func (r *stubOrderRepo) Update(_ context.Context, order *domain.WorkOrder) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.byID[order.ID]; !ok {
		return pgx.ErrNoRows
	}
	order.UpdatedAt = time.Now()
	r.put(order)
	return nil
}

func (r *stubOrderRepo) GetByID(_ context.Context, id string) (*domain.WorkOrder, error) {
	o, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r.resolve(o), nil
}

func (r *stubOrderRepo) matches(o *domain.WorkOrder, f repository.OrderFilter) bool {
	if f.CreatedByID != nil && o.CreatedByID != *f.CreatedByID {
		return false
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		needle := strings.ToLower(search)
		if !strings.Contains(strings.ToLower(o.Title), needle) &&
			!strings.Contains(strings.ToLower(o.Description), needle) {
			return false
		}
	}
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	if f.Priority != nil && o.Priority != *f.Priority {
		return false
	}
	return true
}

func (r *stubOrderRepo) List(_ context.Context, f repository.OrderFilter, limit, offset int) ([]domain.WorkOrder, error) {
	var matched []*domain.WorkOrder
	for _, o := range r.byID {
		if r.matches(o, f) {
			matched = append(matched, o)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})
	if offset > len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	out := make([]domain.WorkOrder, 0, end-offset)
	for _, o := range matched[offset:end] {
		out = append(out, *r.resolve(o))
	}
	return out, nil
}

func (r *stubOrderRepo) Count(_ context.Context, f repository.OrderFilter) (int, error) {
	count := 0
	for _, o := range r.byID {
		if r.matches(o, f) {
			count++
		}
	}
	return count, nil
}

func (r *stubOrderRepo) resolve(o *domain.WorkOrder) *domain.WorkOrder {
	clone := *o
	if creator, ok := r.users.byID[o.CreatedByID]; ok {
		c := *creator
		clone.CreatedBy = &c
	}
	if o.AssignedToID != nil {
		if assignee, ok := r.users.byID[*o.AssignedToID]; ok {
			a := *assignee
			clone.AssignedTo = &a
		}
	}
	return &clone
}

type stubAttachmentStore struct {
	saved    []string
	deleted  []string
	saveErr  error
	sequence int
}

func (s *stubAttachmentStore) Save(_ context.Context, data []byte, mimeType, _ string) (*storage.SavedFile, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	if !storage.AllowedType(mimeType) {
		return nil, storage.ErrInvalidType
	}
	if len(data) > storage.MaxFileSize {
		return nil, storage.ErrTooLarge
	}
	s.sequence++
	name := fmt.Sprintf("blob-%d.png", s.sequence)
	s.saved = append(s.saved, name)
	return &storage.SavedFile{URL: "/uploads/" + name, Name: name}, nil
}

func (s *stubAttachmentStore) Delete(_ context.Context, name string) {
	s.deleted = append(s.deleted, name)
}

type stubCache struct {
	entries     map[string]*domain.WorkOrder
	hits        int
	invalidated []string
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string]*domain.WorkOrder)}
}

func (c *stubCache) Get(_ context.Context, orderID string) (*domain.WorkOrder, bool) {
	o, ok := c.entries[orderID]
	if !ok {
		return nil, false
	}
	c.hits++
	clone := *o
	return &clone, true
}

func (c *stubCache) Set(_ context.Context, order *domain.WorkOrder) {
	clone := *order
	c.entries[order.ID] = &clone
}

func (c *stubCache) Invalidate(_ context.Context, orderID string) {
	delete(c.entries, orderID)
	c.invalidated = append(c.invalidated, orderID)
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type fixture struct {
	svc         *OrderService
	orders      *stubOrderRepo
	users       *stubUserRepo
	attachments *stubAttachmentStore
	cache       *stubCache

	alice   *Identity
	carol   *Identity
	manager *Identity
}

func strPtr(s string) *string { return &s }

func newFixture() *fixture {
	users := newStubUserRepo(
		&domain.User{ID: "alice", Name: strPtr("Alice"), Email: "alice@example.com", Role: domain.RoleUser},
		&domain.User{ID: "carol", Name: strPtr("Carol"), Email: "carol@example.com", Role: domain.RoleUser},
		&domain.User{ID: "bob", Name: strPtr("Bob"), Email: "bob@example.com", Role: domain.RoleManager},
	)
	orders := newStubOrderRepo(users)
	attachments := &stubAttachmentStore{}
	orderCache := newStubCache()

	svc := NewOrderService(OrderDependencies{
		OrderRepo:   orders,
		UserRepo:    users,
		Attachments: attachments,
		Cache:       orderCache,
	})

	return &fixture{
		svc:         svc,
		orders:      orders,
		users:       users,
		attachments: attachments,
		cache:       orderCache,
		alice:       &Identity{UserID: "alice", Role: domain.RoleUser},
		carol:       &Identity{UserID: "carol", Role: domain.RoleUser},
		manager:     &Identity{UserID: "bob", Role: domain.RoleManager},
	}
}

var seedBase = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func (f *fixture) seedOrder(id, createdBy string, mutate ...func(*domain.WorkOrder)) *domain.WorkOrder {
	order := &domain.WorkOrder{
		ID:          id,
		Title:       "Order " + id,
		Description: "Description for " + id,
		Status:      domain.OrderStatusOpen,
		Priority:    domain.OrderPriorityMedium,
		CreatedByID: createdBy,
		CreatedAt:   seedBase.Add(-time.Duration(len(f.orders.byID)) * time.Minute),
	}
	for _, m := range mutate {
		m(order)
	}
	f.orders.put(order)
	return order
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.IsCode(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

// ---------------------------------------------------------------------------
// listOrders
// ---------------------------------------------------------------------------

func TestListOrdersRequiresIdentity(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.ListOrders(context.Background(), nil, ListOrdersInput{Page: 1}); !apperrors.IsCode(err, "UNAUTHORIZED") {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestListOrdersScopesUserToOwnOrders(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "alice")
	f.seedOrder("o2", "carol")
	f.seedOrder("o3", "alice")

	page, err := f.svc.ListOrders(context.Background(), f.alice, ListOrdersInput{Page: 1})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if page.TotalCount != 2 {
		t.Fatalf("expected 2 visible orders, got %d", page.TotalCount)
	}
	for _, o := range page.Orders {
		if o.CreatedByID != "alice" {
			t.Fatalf("foreign order %s leaked into user listing", o.ID)
		}
	}
}

func TestListOrdersManagerSeesAll(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "alice")
	f.seedOrder("o2", "carol")

	page, err := f.svc.ListOrders(context.Background(), f.manager, ListOrdersInput{Page: 1})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if page.TotalCount != 2 {
		t.Fatalf("manager should see all orders, got %d", page.TotalCount)
	}
}

func TestListOrdersStatusFilterScenario(t *testing.T) {
	// 15 OPEN + 5 COMPLETED, filter status=OPEN: total 15, 2 pages, first page 10.
	f := newFixture()
	for i := 0; i < 15; i++ {
		f.seedOrder(fmt.Sprintf("open-%02d", i), "alice")
	}
	for i := 0; i < 5; i++ {
		f.seedOrder(fmt.Sprintf("done-%02d", i), "alice", func(o *domain.WorkOrder) {
			o.Status = domain.OrderStatusCompleted
		})
	}

	page, err := f.svc.ListOrders(context.Background(), f.manager, ListOrdersInput{Status: "OPEN", Page: 1})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if page.TotalCount != 15 {
		t.Fatalf("expected totalCount 15, got %d", page.TotalCount)
	}
	if page.TotalPages != 2 {
		t.Fatalf("expected totalPages 2, got %d", page.TotalPages)
	}
	if len(page.Orders) != 10 {
		t.Fatalf("expected 10 orders on page 1, got %d", len(page.Orders))
	}
}

func TestListOrdersInvalidFiltersDegradeToNoFilter(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "alice")
	f.seedOrder("o2", "alice", func(o *domain.WorkOrder) { o.Status = domain.OrderStatusCancelled })

	page, err := f.svc.ListOrders(context.Background(), f.alice, ListOrdersInput{Status: "BOGUS", Priority: "WHATEVER", Page: 1})
	if err != nil {
		t.Fatalf("bogus filters must not fail: %v", err)
	}
	if page.TotalCount != 2 {
		t.Fatalf("bogus status filter should be dropped, got totalCount %d", page.TotalCount)
	}
}

func TestListOrdersPageNormalization(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "alice")

	for _, page := range []int{0, -3} {
		result, err := f.svc.ListOrders(context.Background(), f.alice, ListOrdersInput{Page: page})
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		if result.CurrentPage != 1 {
			t.Fatalf("page %d should normalize to 1, got %d", page, result.CurrentPage)
		}
	}
}

func TestListOrdersSearchMatchesTitleAndDescription(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "alice", func(o *domain.WorkOrder) { o.Title = "Fix leaking sink" })
	f.seedOrder("o2", "alice", func(o *domain.WorkOrder) { o.Description = "the SINK is broken" })
	f.seedOrder("o3", "alice", func(o *domain.WorkOrder) { o.Title = "Paint the fence" })

	page, err := f.svc.ListOrders(context.Background(), f.alice, ListOrdersInput{Search: "sink", Page: 1})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if page.TotalCount != 2 {
		t.Fatalf("case-insensitive search over both fields should match 2, got %d", page.TotalCount)
	}
}

func TestListOrdersPaginationIsStableAndComplete(t *testing.T) {
	f := newFixture()
	for i := 0; i < 25; i++ {
		f.seedOrder(fmt.Sprintf("o-%02d", i), "alice")
	}

	seen := make(map[string]int)
	var lastCreated *time.Time
	page := 1
	for {
		result, err := f.svc.ListOrders(context.Background(), f.alice, ListOrdersInput{Page: page})
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		for i := range result.Orders {
			o := result.Orders[i]
			seen[o.ID]++
			if lastCreated != nil && o.CreatedAt.After(*lastCreated) {
				t.Fatalf("order %s out of descending created_at order", o.ID)
			}
			created := o.CreatedAt
			lastCreated = &created
		}
		if page >= result.TotalPages {
			break
		}
		page++
	}

	if len(seen) != 25 {
		t.Fatalf("expected 25 distinct orders across pages, got %d", len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("order %s appeared %d times", id, count)
		}
	}
}

// ---------------------------------------------------------------------------
// getOrder
// ---------------------------------------------------------------------------

func TestGetOrderResolvesReferences(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "alice", func(o *domain.WorkOrder) { o.AssignedToID = strPtr("carol") })

	order, err := f.svc.GetOrder(context.Background(), f.alice, "o1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.CreatedBy == nil || order.CreatedBy.ID != "alice" {
		t.Fatalf("createdBy not resolved: %+v", order.CreatedBy)
	}
	if order.AssignedTo == nil || order.AssignedTo.ID != "carol" {
		t.Fatalf("assignedTo not resolved: %+v", order.AssignedTo)
	}
}

func TestGetOrderHidesForeignOrdersAsNotFound(t *testing.T) {
	// A USER probing someone else's order id gets the same NOT_FOUND as a
	// missing id, so existence is not leaked.
	f := newFixture()
	f.seedOrder("o1", "carol")

	_, err := f.svc.GetOrder(context.Background(), f.alice, "o1")
	assertCode(t, err, "NOT_FOUND")

	_, err = f.svc.GetOrder(context.Background(), f.alice, "missing")
	assertCode(t, err, "NOT_FOUND")
}

func TestGetOrderUsesCacheButKeepsVisibility(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "carol")

	if _, err := f.svc.GetOrder(context.Background(), f.carol, "o1"); err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if _, ok := f.cache.entries["o1"]; !ok {
		t.Fatal("expected order cached after read")
	}

	if _, err := f.svc.GetOrder(context.Background(), f.carol, "o1"); err != nil {
		t.Fatalf("cached GetOrder: %v", err)
	}
	if f.cache.hits != 1 {
		t.Fatalf("expected one cache hit, got %d", f.cache.hits)
	}

	// Even on a cache hit a foreign USER must not see the order.
	_, err := f.svc.GetOrder(context.Background(), f.alice, "o1")
	assertCode(t, err, "NOT_FOUND")
}

// ---------------------------------------------------------------------------
// createOrder
// ---------------------------------------------------------------------------

func TestCreateOrderDefaults(t *testing.T) {
	f := newFixture()

	order, err := f.svc.CreateOrder(context.Background(), f.alice, CreateOrderInput{
		Title:       "Fix leak",
		Description: "Kitchen sink",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Priority != domain.OrderPriorityMedium {
		t.Fatalf("expected default priority MED, got %s", order.Priority)
	}
	if order.Status != domain.OrderStatusOpen {
		t.Fatalf("expected status OPEN, got %s", order.Status)
	}
	if order.CreatedByID != "alice" {
		t.Fatalf("expected createdBy alice, got %s", order.CreatedByID)
	}
	if order.AssignedToID != nil {
		t.Fatalf("expected unassigned order, got %v", *order.AssignedToID)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture()
	cases := []struct {
		name  string
		input CreateOrderInput
	}{
		{"empty title", CreateOrderInput{Description: "d"}},
		{"empty description", CreateOrderInput{Title: "t"}},
		{"title too long", CreateOrderInput{Title: strings.Repeat("x", 201), Description: "d"}},
		{"description too long", CreateOrderInput{Title: "t", Description: strings.Repeat("x", 1001)}},
		{"bad priority", CreateOrderInput{Title: "t", Description: "d", Priority: "URGENT"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(context.Background(), f.alice, tc.input)
			assertCode(t, err, "VALIDATION_FAILED")
		})
	}
	if len(f.orders.byID) != 0 {
		t.Fatalf("validation failures must not write records, found %d", len(f.orders.byID))
	}
}

func TestCreateOrderIgnoresAssigneeFromUser(t *testing.T) {
	f := newFixture()

	order, err := f.svc.CreateOrder(context.Background(), f.alice, CreateOrderInput{
		Title:        "t",
		Description:  "d",
		AssignedToID: "carol",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.AssignedToID != nil {
		t.Fatal("USER-supplied assignee must be silently dropped")
	}
}

func TestCreateOrderManagerAssigns(t *testing.T) {
	f := newFixture()

	order, err := f.svc.CreateOrder(context.Background(), f.manager, CreateOrderInput{
		Title:        "t",
		Description:  "d",
		AssignedToID: "carol",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.AssignedToID == nil || *order.AssignedToID != "carol" {
		t.Fatalf("manager assignment not applied: %v", order.AssignedToID)
	}
	if order.AssignedTo == nil || order.AssignedTo.ID != "carol" {
		t.Fatal("assignee not resolved on returned order")
	}
}

func TestCreateOrderUnassignedSentinelRoundTrip(t *testing.T) {
	f := newFixture()

	order, err := f.svc.CreateOrder(context.Background(), f.manager, CreateOrderInput{
		Title:        "t",
		Description:  "d",
		AssignedToID: "unassigned",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	fetched, err := f.svc.GetOrder(context.Background(), f.manager, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if fetched.AssignedToID != nil {
		t.Fatalf("sentinel should round-trip to null, got %v", *fetched.AssignedToID)
	}
}

func TestCreateOrderUnknownAssignee(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateOrder(context.Background(), f.manager, CreateOrderInput{
		Title:        "t",
		Description:  "d",
		AssignedToID: "nobody",
	})
	assertCode(t, err, "NOT_FOUND")
}

func TestCreateOrderWithImage(t *testing.T) {
	f := newFixture()

	order, err := f.svc.CreateOrder(context.Background(), f.alice, CreateOrderInput{
		Title:       "t",
		Description: "d",
		Image:       &ImageUpload{Data: []byte("png-bytes"), MimeType: "image/png", OriginalName: "leak.png"},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.ImageURL == nil || order.ImageName == nil {
		t.Fatal("image url and name must both be set")
	}
	if len(f.attachments.saved) != 1 {
		t.Fatalf("expected one blob saved, got %d", len(f.attachments.saved))
	}
}

func TestCreateOrderRejectsBadImage(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateOrder(context.Background(), f.alice, CreateOrderInput{
		Title:       "t",
		Description: "d",
		Image:       &ImageUpload{Data: []byte("gif"), MimeType: "image/gif", OriginalName: "x.gif"},
	})
	assertCode(t, err, "VALIDATION_FAILED")

	_, err = f.svc.CreateOrder(context.Background(), f.alice, CreateOrderInput{
		Title:       "t",
		Description: "d",
		Image:       &ImageUpload{Data: make([]byte, storage.MaxFileSize+1), MimeType: "image/png", OriginalName: "x.png"},
	})
	assertCode(t, err, "VALIDATION_FAILED")

	if len(f.orders.byID) != 0 {
		t.Fatal("rejected image must not leave a record behind")
	}
}

func TestCreateOrderFailedUploadAbortsCreation(t *testing.T) {
	f := newFixture()
	f.attachments.saveErr = errors.New("disk full")

	_, err := f.svc.CreateOrder(context.Background(), f.alice, CreateOrderInput{
		Title:       "t",
		Description: "d",
		Image:       &ImageUpload{Data: []byte("png"), MimeType: "image/png", OriginalName: "x.png"},
	})
	if err == nil {
		t.Fatal("expected error from failed upload")
	}
	if len(f.orders.byID) != 0 {
		t.Fatal("failed upload must abort creation with no partial record")
	}
}

// ---------------------------------------------------------------------------
// updateOrder
// ---------------------------------------------------------------------------

func TestUpdateOrderNotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.UpdateOrder(context.Background(), f.alice, "missing", UpdateOrderInput{Title: strPtr("x")})
	assertCode(t, err, "NOT_FOUND")
}

func TestUpdateOrderForeignUserUnauthorized(t *testing.T) {
	f := newFixture()
	seeded := f.seedOrder("o1", "carol")

	_, err := f.svc.UpdateOrder(context.Background(), f.alice, "o1", UpdateOrderInput{Title: strPtr("hijacked")})
	assertCode(t, err, "UNAUTHORIZED")

	stored := f.orders.byID["o1"]
	if stored.Title != seeded.Title {
		t.Fatal("unauthorized update must not change fields")
	}
}

func TestUpdateOrderManagerNotOwnerAllowed(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "carol")

	order, err := f.svc.UpdateOrder(context.Background(), f.manager, "o1", UpdateOrderInput{Title: strPtr("triaged")})
	if err != nil {
		t.Fatalf("manager update on foreign order: %v", err)
	}
	if order.Title != "triaged" {
		t.Fatalf("title not applied: %s", order.Title)
	}
}

func TestUpdateOrderUserCannotTouchStatusOrAssignee(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "alice")

	order, err := f.svc.UpdateOrder(context.Background(), f.alice, "o1", UpdateOrderInput{
		Title:        strPtr("still mine"),
		Status:       strPtr("COMPLETED"),
		AssignedToID: strPtr("carol"),
	})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if order.Status != domain.OrderStatusOpen {
		t.Fatalf("USER must not change status, got %s", order.Status)
	}
	if order.AssignedToID != nil {
		t.Fatal("USER must not change assignee")
	}
	if order.Title != "still mine" {
		t.Fatalf("permitted field dropped: %s", order.Title)
	}
}

func TestUpdateOrderManagerSetsStatusAndAssignee(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "alice")

	order, err := f.svc.UpdateOrder(context.Background(), f.manager, "o1", UpdateOrderInput{
		Status:       strPtr("IN_PROGRESS"),
		AssignedToID: strPtr("carol"),
	})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if order.Status != domain.OrderStatusInProgress {
		t.Fatalf("status not applied: %s", order.Status)
	}
	if order.AssignedToID == nil || *order.AssignedToID != "carol" {
		t.Fatal("assignee not applied")
	}
}

func TestUpdateOrderClearAssignee(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "alice", func(o *domain.WorkOrder) { o.AssignedToID = strPtr("carol") })

	for _, sentinel := range []string{"unassigned", ""} {
		order, err := f.svc.UpdateOrder(context.Background(), f.manager, "o1", UpdateOrderInput{
			AssignedToID: strPtr(sentinel),
		})
		if err != nil {
			t.Fatalf("clear with %q: %v", sentinel, err)
		}
		if order.AssignedToID != nil {
			t.Fatalf("clear with %q left assignee %v", sentinel, *order.AssignedToID)
		}
		f.orders.byID["o1"].AssignedToID = strPtr("carol")
	}
}

func TestUpdateOrderEmptyFieldsLeftUnchanged(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "alice", func(o *domain.WorkOrder) {
		o.Title = "original title"
		o.Priority = domain.OrderPriorityHigh
	})

	order, err := f.svc.UpdateOrder(context.Background(), f.alice, "o1", UpdateOrderInput{
		Title:    strPtr(""),
		Priority: strPtr(""),
	})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if order.Title != "original title" {
		t.Fatalf("empty title must mean unchanged, got %q", order.Title)
	}
	if order.Priority != domain.OrderPriorityHigh {
		t.Fatalf("empty priority must mean unchanged, got %s", order.Priority)
	}
}

func TestUpdateOrderValidationAbortsWholeUpdate(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "alice", func(o *domain.WorkOrder) { o.Title = "before" })

	_, err := f.svc.UpdateOrder(context.Background(), f.alice, "o1", UpdateOrderInput{
		Title:       strPtr("after"),
		Description: strPtr(strings.Repeat("x", 1001)),
	})
	assertCode(t, err, "VALIDATION_FAILED")

	if f.orders.byID["o1"].Title != "before" {
		t.Fatal("failed validation must not write any field")
	}
}

func TestUpdateOrderImageReplaceDeletesOldBlob(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "alice", func(o *domain.WorkOrder) {
		o.ImageURL = strPtr("/uploads/old.png")
		o.ImageName = strPtr("old.png")
	})

	order, err := f.svc.UpdateOrder(context.Background(), f.alice, "o1", UpdateOrderInput{
		Image: &ImageUpload{Data: []byte("new"), MimeType: "image/webp", OriginalName: "new.webp"},
	})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if len(f.attachments.deleted) != 1 || f.attachments.deleted[0] != "old.png" {
		t.Fatalf("expected exactly the old blob deleted, got %v", f.attachments.deleted)
	}
	if len(f.attachments.saved) != 1 {
		t.Fatalf("expected exactly one new blob, got %d", len(f.attachments.saved))
	}
	if (order.ImageURL == nil) != (order.ImageName == nil) {
		t.Fatal("image url/name pair invariant broken")
	}
	if order.ImageName == nil || *order.ImageName == "old.png" {
		t.Fatal("image fields not replaced")
	}
}

func TestUpdateOrderWithoutImageKeepsExisting(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "alice", func(o *domain.WorkOrder) {
		o.ImageURL = strPtr("/uploads/keep.png")
		o.ImageName = strPtr("keep.png")
	})

	order, err := f.svc.UpdateOrder(context.Background(), f.alice, "o1", UpdateOrderInput{Title: strPtr("new title")})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if order.ImageName == nil || *order.ImageName != "keep.png" {
		t.Fatal("image must never be cleared implicitly")
	}
	if len(f.attachments.deleted) != 0 {
		t.Fatal("no blob may be deleted when no new image is supplied")
	}
}

func TestUpdateOrderInvalidatesCache(t *testing.T) {
	f := newFixture()
	f.seedOrder("o1", "alice")

	if _, err := f.svc.GetOrder(context.Background(), f.alice, "o1"); err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if _, err := f.svc.UpdateOrder(context.Background(), f.alice, "o1", UpdateOrderInput{Title: strPtr("fresh")}); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if len(f.cache.invalidated) != 1 || f.cache.invalidated[0] != "o1" {
		t.Fatalf("expected cache invalidation for o1, got %v", f.cache.invalidated)
	}
}

// ---------------------------------------------------------------------------
// listAssignableUsers
// ---------------------------------------------------------------------------

func TestListAssignableUsersManagerOnly(t *testing.T) {
	f := newFixture()

	_, err := f.svc.ListAssignableUsers(context.Background(), f.alice)
	assertCode(t, err, "UNAUTHORIZED")

	users, err := f.svc.ListAssignableUsers(context.Background(), f.manager)
	if err != nil {
		t.Fatalf("ListAssignableUsers: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 users, got %d", len(users))
	}
	for _, u := range users {
		if u.PasswordHash != "" {
			t.Fatal("password hashes must not leave the engine")
		}
	}
}
