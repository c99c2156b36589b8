package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mw "github.com/code-brew-house/brewy-backend/internal/api/middleware"
	"github.com/code-brew-house/brewy-backend/internal/store"
	"github.com/code-brew-house/brewy-backend/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// mockKeyStore embeds store.Store so only the key methods need stubbing;
// calling anything else panics, which is what we want in these tests.
type mockKeyStore struct {
	store.Store
	created   *models.APIKey
	keys      []*models.APIKey
	revokeErr error
}

func (m *mockKeyStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	m.created = key
	return nil
}

func (m *mockKeyStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return m.keys, nil
}

func (m *mockKeyStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error {
	return m.revokeErr
}

func TestCreateKeyHandler_Success(t *testing.T) {
	orgID := uuid.New()
	ms := &mockKeyStore{}
	body, _ := json.Marshal(map[string]any{"name": "ci-key", "scopes": []string{"upload", "admin"}})

	r := httptest.NewRequest(http.MethodPost, "/api/v1/admin/keys", bytes.NewReader(body))
	r = r.WithContext(mw.SetOrgID(r.Context(), orgID))
	rec := httptest.NewRecorder()

	NewCreateKeyHandler(ms).ServeHTTP(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, ms.created)
	assert.Equal(t, orgID, ms.created.OrganizationID)
	assert.Equal(t, "ci-key", ms.created.Name)
	assert.Equal(t, []string{"upload", "admin"}, ms.created.Scopes)

	var env struct {
		Data struct {
			Key string `json:"key"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))

	// Raw key is returned once and verifies against the stored hash.
	assert.True(t, strings.HasPrefix(env.Data.Key, "bwy_"))
	assert.Len(t, env.Data.Key, 4+2*rawKeyBytes)
	assert.Equal(t, env.Data.Key[:8], ms.created.KeyPrefix)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(ms.created.KeyHash), []byte(env.Data.Key)))
}

func TestCreateKeyHandler_RequiresName(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/admin/keys",
		bytes.NewReader([]byte(`{"scopes":["read"]}`)))
	r = r.WithContext(mw.SetOrgID(r.Context(), uuid.New()))
	rec := httptest.NewRecorder()

	NewCreateKeyHandler(&mockKeyStore{}).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", errCode(t, rec))
}

func TestListKeysHandler_EmptyIsArray(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/admin/keys", nil)
	r = r.WithContext(mw.SetOrgID(r.Context(), uuid.New()))
	rec := httptest.NewRecorder()

	NewListKeysHandler(&mockKeyStore{}).ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestRevokeKeyHandler_NotFound(t *testing.T) {
	router := chi.NewRouter()
	router.Delete("/api/v1/admin/keys/{keyID}",
		NewRevokeKeyHandler(&mockKeyStore{revokeErr: store.ErrNotFound}))

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/keys/"+uuid.NewString(), nil)
	r = r.WithContext(mw.SetOrgID(r.Context(), uuid.New()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "KEY_NOT_FOUND", errCode(t, rec))
}

func TestRevokeKeyHandler_Success(t *testing.T) {
	router := chi.NewRouter()
	router.Delete("/api/v1/admin/keys/{keyID}", NewRevokeKeyHandler(&mockKeyStore{}))

	r := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/keys/"+uuid.NewString(), nil)
	r = r.WithContext(mw.SetOrgID(r.Context(), uuid.New()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "revoked")
}
