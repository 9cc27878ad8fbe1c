package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noq-app/api/internal/database"
	"github.com/noq-app/api/internal/handler"
)

// mockCanteenStore implements handler.CanteenStore.
type mockCanteenStore struct {
	canteens map[uuid.UUID]database.Canteen
	menus    map[uuid.UUID][]database.MenuItem
	created  []database.CreateCanteenParams
}

func newMockCanteenStore() *mockCanteenStore {
	return &mockCanteenStore{
		canteens: make(map[uuid.UUID]database.Canteen),
		menus:    make(map[uuid.UUID][]database.MenuItem),
	}
}

func (m *mockCanteenStore) CreateCanteen(_ context.Context, arg database.CreateCanteenParams) (database.Canteen, error) {
	m.created = append(m.created, arg)
	c := database.Canteen{
		ID:              uuid.New(),
		Name:            arg.Name,
		OrderPrefix:     arg.OrderPrefix,
		IsOpen:          true,
		AcceptingOrders: true,
	}
	m.canteens[c.ID] = c
	return c, nil
}

func (m *mockCanteenStore) GetCanteen(_ context.Context, id uuid.UUID) (database.Canteen, error) {
	c, ok := m.canteens[id]
	if !ok {
		return database.Canteen{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *mockCanteenStore) ListCanteens(_ context.Context) ([]database.Canteen, error) {
	var out []database.Canteen
	for _, c := range m.canteens {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCanteenStore) ListMenuItemsByCanteen(_ context.Context, canteenID uuid.UUID) ([]database.MenuItem, error) {
	return m.menus[canteenID], nil
}

func newCanteenRouter(store *mockCanteenStore) chi.Router {
	h := handler.NewCanteenHandler(store)
	r := chi.NewRouter()
	r.Route("/canteens", func(r chi.Router) {
		h.RegisterRoutes(r)
		h.RegisterAdminRoutes(r)
	})
	return r
}

// --- Create tests ---

func TestCanteenCreate_Success(t *testing.T) {
	store := newMockCanteenStore()
	r := newCanteenRouter(store)

	rr := postJSON(t, r, "/canteens", map[string]string{
		"name":         "North Mess",
		"order_prefix": "NM",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	if len(store.created) != 1 || store.created[0].OrderPrefix != "NM" {
		t.Errorf("expected canteen created with prefix NM, got %+v", store.created)
	}
}

func TestCanteenCreate_PrefixValidation(t *testing.T) {
	cases := []struct {
		name   string
		prefix string
		want   int
	}{
		{"two letters", "CC", http.StatusCreated},
		{"four letters", "MESS", http.StatusCreated},
		{"empty", "", http.StatusBadRequest},
		{"one letter", "C", http.StatusBadRequest},
		{"five letters", "CCCCC", http.StatusBadRequest},
		{"lowercase", "cc", http.StatusBadRequest},
		{"digits", "C1", http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newCanteenRouter(newMockCanteenStore())
			rr := postJSON(t, r, "/canteens", map[string]string{
				"name":         "Test Canteen",
				"order_prefix": tc.prefix,
			})
			if rr.Code != tc.want {
				t.Errorf("prefix %q: got %d, want %d", tc.prefix, rr.Code, tc.want)
			}
		})
	}
}

func TestCanteenCreate_MissingName(t *testing.T) {
	r := newCanteenRouter(newMockCanteenStore())

	rr := postJSON(t, r, "/canteens", map[string]string{"order_prefix": "CC"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Menu tests ---

func TestCanteenMenu_Success(t *testing.T) {
	store := newMockCanteenStore()
	canteen, _ := store.CreateCanteen(context.Background(), database.CreateCanteenParams{Name: "Central", OrderPrefix: "CC"})
	store.menus[canteen.ID] = []database.MenuItem{{
		ID:          uuid.New(),
		CanteenID:   canteen.ID,
		Name:        "Masala Dosa",
		Price:       numericFromString("60.00"),
		IsAvailable: true,
		IsVeg:       true,
	}}
	r := newCanteenRouter(store)

	rr := doAuthed(t, r, "GET", "/canteens/"+canteen.ID.String()+"/menu", customerClaims(uuid.New()), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestCanteenMenu_UnknownCanteen(t *testing.T) {
	r := newCanteenRouter(newMockCanteenStore())

	rr := doAuthed(t, r, "GET", "/canteens/"+uuid.New().String()+"/menu", customerClaims(uuid.New()), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func numericFromString(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}
