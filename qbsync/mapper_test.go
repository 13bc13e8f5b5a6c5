package qbsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/docsync_backend/config"
	"bitbucket.org/mmdatafocus/docsync_backend/models"
	"bitbucket.org/mmdatafocus/docsync_backend/qbo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newMapperTestDB points the models at a throwaway in-memory database
// so the resolution order can be exercised against real mapping rows.
func newMapperTestDB(t *testing.T) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.EntityMapping{}); err != nil {
		t.Fatalf("migrate entity mappings: %v", err)
	}
	previous := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() { config.SetDB(previous) })
}

// fakePlatform stands in for the QuickBooks API and counts every call,
// so the tests can assert which resolution branch ran.
type fakePlatform struct {
	customers   map[string]string
	vendors     map[string]string
	queryCalls  int
	createCalls int
	nextId      int
}

func (f *fakePlatform) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/query"):
			f.queryCalls++
			query := r.URL.Query().Get("query")
			if strings.Contains(query, "FROM Customer") {
				for name, id := range f.customers {
					if strings.Contains(query, "'"+name+"'") {
						fmt.Fprintf(w, `{"QueryResponse":{"Customer":[{"Id":%q,"DisplayName":%q}]}}`, id, name)
						return
					}
				}
			}
			if strings.Contains(query, "FROM Vendor") {
				for name, id := range f.vendors {
					if strings.Contains(query, "'"+name+"'") {
						fmt.Fprintf(w, `{"QueryResponse":{"Vendor":[{"Id":%q,"DisplayName":%q}]}}`, id, name)
						return
					}
				}
			}
			fmt.Fprint(w, `{"QueryResponse":{}}`)
		case strings.HasSuffix(r.URL.Path, "/customer"):
			f.createCalls++
			f.nextId++
			var payload struct {
				DisplayName string `json:"DisplayName"`
			}
			_ = json.NewDecoder(r.Body).Decode(&payload)
			id := fmt.Sprintf("ext-%d", f.nextId)
			if f.customers == nil {
				f.customers = map[string]string{}
			}
			f.customers[payload.DisplayName] = id
			fmt.Fprintf(w, `{"Customer":{"Id":%q,"DisplayName":%q}}`, id, payload.DisplayName)
		case strings.HasSuffix(r.URL.Path, "/vendor"):
			f.createCalls++
			f.nextId++
			var payload struct {
				DisplayName string `json:"DisplayName"`
			}
			_ = json.NewDecoder(r.Body).Decode(&payload)
			id := fmt.Sprintf("ext-%d", f.nextId)
			if f.vendors == nil {
				f.vendors = map[string]string{}
			}
			f.vendors[payload.DisplayName] = id
			fmt.Fprintf(w, `{"Vendor":{"Id":%q,"DisplayName":%q}}`, id, payload.DisplayName)
		default:
			http.NotFound(w, r)
		}
	})
}

func newMapperFixture(t *testing.T, platform *fakePlatform) (*qbo.Client, *models.IntegrationCredential) {
	t.Helper()
	newMapperTestDB(t)
	srv := httptest.NewServer(platform.handler())
	t.Cleanup(srv.Close)
	t.Setenv("QBO_API_BASE_URL", srv.URL)

	cred := &models.IntegrationCredential{
		ID:          1,
		BusinessId:  "biz-1",
		RealmId:     "realm-1",
		AccessToken: "test-token",
	}
	return qbo.NewClient(cred), cred
}

func TestResolveCustomer_MappingHitSkipsPlatform(t *testing.T) {
	platform := &fakePlatform{}
	client, cred := newMapperFixture(t, platform)
	ctx := context.Background()

	if _, err := models.CreateEntityMapping(ctx, cred.BusinessId, cred.ID, models.EntityTypeCustomer, 42, "ext-known"); err != nil {
		t.Fatalf("seed mapping: %v", err)
	}

	externalId, err := ResolveOrCreateCustomerExternal(ctx, client, cred, &models.Customer{ID: 42, Name: "Acme Supplies"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if externalId != "ext-known" {
		t.Fatalf("expected mapped id ext-known, got %q", externalId)
	}
	if platform.queryCalls != 0 || platform.createCalls != 0 {
		t.Fatalf("mapping hit must not touch the platform, got %d queries and %d creates", platform.queryCalls, platform.createCalls)
	}
}

func TestResolveCustomer_NameHitPersistsMapping(t *testing.T) {
	platform := &fakePlatform{customers: map[string]string{"Acme Supplies": "77"}}
	client, cred := newMapperFixture(t, platform)
	ctx := context.Background()
	customer := &models.Customer{ID: 42, Name: "Acme Supplies"}

	externalId, err := ResolveOrCreateCustomerExternal(ctx, client, cred, customer)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if externalId != "77" {
		t.Fatalf("expected platform id 77, got %q", externalId)
	}
	if platform.createCalls != 0 {
		t.Fatalf("name hit must not create, got %d creates", platform.createCalls)
	}

	mapping, err := models.FindEntityMapping(ctx, cred.BusinessId, models.EntityTypeCustomer, customer.ID)
	if err != nil {
		t.Fatalf("find mapping: %v", err)
	}
	if mapping == nil || mapping.ExternalId != "77" {
		t.Fatalf("name hit must persist the mapping, got %+v", mapping)
	}

	// The persisted mapping short-circuits the next run.
	if _, err := ResolveOrCreateCustomerExternal(ctx, client, cred, customer); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if platform.queryCalls != 1 {
		t.Fatalf("second resolve must use the mapping, got %d queries", platform.queryCalls)
	}
}

func TestResolveCustomer_MissCreatesExactlyOnce(t *testing.T) {
	platform := &fakePlatform{}
	client, cred := newMapperFixture(t, platform)
	ctx := context.Background()
	customer := &models.Customer{ID: 42, Name: "Acme Supplies"}

	externalId, err := ResolveOrCreateCustomerExternal(ctx, client, cred, customer)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if externalId == "" {
		t.Fatalf("expected a created external id")
	}
	if platform.queryCalls != 1 || platform.createCalls != 1 {
		t.Fatalf("miss must query once then create once, got %d queries and %d creates", platform.queryCalls, platform.createCalls)
	}

	again, err := ResolveOrCreateCustomerExternal(ctx, client, cred, customer)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again != externalId {
		t.Fatalf("re-run must reuse the created entity, got %q then %q", externalId, again)
	}
	if platform.createCalls != 1 {
		t.Fatalf("re-run must not create again, got %d creates", platform.createCalls)
	}
}

func TestResolveVendor_MissCreatesExactlyOnce(t *testing.T) {
	platform := &fakePlatform{}
	client, cred := newMapperFixture(t, platform)
	ctx := context.Background()
	vendor := &models.Vendor{ID: 7, Name: "Office Depot"}

	externalId, err := ResolveOrCreateVendorExternal(ctx, client, cred, vendor)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if platform.queryCalls != 1 || platform.createCalls != 1 {
		t.Fatalf("miss must query once then create once, got %d queries and %d creates", platform.queryCalls, platform.createCalls)
	}

	again, err := ResolveOrCreateVendorExternal(ctx, client, cred, vendor)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again != externalId || platform.createCalls != 1 {
		t.Fatalf("re-run must reuse the created vendor, got %q then %q with %d creates", externalId, again, platform.createCalls)
	}
}

func TestRequireEntityMapping_NeverAutoCreates(t *testing.T) {
	platform := &fakePlatform{}
	_, cred := newMapperFixture(t, platform)
	ctx := context.Background()

	_, err := RequireEntityMapping(ctx, cred.BusinessId, models.EntityTypeCustomer, 42)
	var notFound *MappingNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected MappingNotFoundError, got %v", err)
	}
	if platform.queryCalls != 0 || platform.createCalls != 0 {
		t.Fatalf("the submission barrier must never reach the platform, got %d queries and %d creates", platform.queryCalls, platform.createCalls)
	}

	if _, err := models.CreateEntityMapping(ctx, cred.BusinessId, cred.ID, models.EntityTypeCustomer, 42, "ext-1"); err != nil {
		t.Fatalf("seed mapping: %v", err)
	}
	mapping, err := RequireEntityMapping(ctx, cred.BusinessId, models.EntityTypeCustomer, 42)
	if err != nil {
		t.Fatalf("expected mapping after seed, got %v", err)
	}
	if mapping.ExternalId != "ext-1" {
		t.Fatalf("expected ext-1, got %q", mapping.ExternalId)
	}
}
