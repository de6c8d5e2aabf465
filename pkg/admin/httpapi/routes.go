// Package httpapi wires together the Admin control plane's HTTP surface
// (§6.2): token issuance, admin-user self-service, and the
// service-account/admin-user/storage-element/jwt-key management APIs.
package httpapi

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/BigKAA/artStore-sub005/pkg/admin/adminuser"
	adminauth "github.com/BigKAA/artStore-sub005/pkg/admin/auth"
	"github.com/BigKAA/artStore-sub005/pkg/admin/jwtkeys"
	"github.com/BigKAA/artStore-sub005/pkg/admin/serviceaccount"
	"github.com/BigKAA/artStore-sub005/pkg/admin/storageelement"
	"github.com/BigKAA/artStore-sub005/pkg/admin/tokenservice"
)

// Handler wires together the Admin control plane's sub-resource handlers
// and the token/jwt-key endpoints that sit above them.
type Handler struct {
	Tokens          *tokenservice.Service
	AdminUsers      *adminuser.Service
	ServiceAccounts *serviceaccount.Handler
	AdminUserAPI    *adminuser.Handler
	StorageElements *storageelement.Handler
	Keys            *jwtkeys.LocalKeySetCache
	KeyStore        *jwtkeys.Store
	Rotator         *jwtkeys.Rotator
	ElementStore    *storageelement.Store
	Logger          *slog.Logger
}

// Mount registers every §6.2 route under /api/v1 on r, guarded by scope
// where required. Unauthenticated routes (token issuance) sit outside any
// r.Group; everything else is grouped by the scope it requires.
func Mount(r chi.Router, h *Handler, auth *adminauth.Authenticator) {
	ah := &authHandler{tokens: h.Tokens, adminUsers: h.AdminUsers}
	jh := &jwtKeysHandler{cache: h.Keys, rotator: h.Rotator, history: h.KeyStore}
	ih := &internalHandler{elements: h.ElementStore}

	r.Post("/api/v1/auth/token", ah.handleServiceAccountToken)
	r.Post("/api/v1/admin-auth/login", ah.handleLogin)
	r.Post("/api/v1/admin-auth/refresh", ah.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireScope(adminauth.ScopeAdminUserRead))
		r.Post("/api/v1/admin-auth/logout", ah.handleLogout)
		r.Get("/api/v1/admin-auth/me", ah.handleMe)
		r.Post("/api/v1/admin-auth/change-password", ah.handleChangeOwnPassword)
	})

	r.Mount("/api/v1/service-accounts", h.ServiceAccounts.Routes(auth))
	r.Mount("/api/v1/admin-users", h.AdminUserAPI.Routes(auth))
	r.Mount("/api/v1/storage-elements", h.StorageElements.Routes(auth))

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireScope(adminauth.ScopeJWTKeyRead))
		r.Get("/api/v1/jwt-keys/status", jh.handleStatus)
		r.Get("/api/v1/jwt-keys/active", jh.handleActive)
		r.Get("/api/v1/jwt-keys/history", jh.handleHistory)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireScope(adminauth.ScopeJWTKeyManage))
		r.Post("/api/v1/jwt-keys/rotate", jh.handleRotate)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireScope(adminauth.ScopeStorageElementRead))
		r.Get("/api/v1/internal/storage-elements/available", ih.handleAvailable)
		r.Get("/api/v1/internal/storage-elements/{element_id}", ih.handleGet)
	})
}

// NewHandler builds a Handler from its dependencies. The storage-element,
// service-account, and admin-user sub-handlers are constructed by their
// own packages; Mount only wires scope gates around them.
func NewHandler(
	logger *slog.Logger,
	tokens *tokenservice.Service,
	adminUsers *adminuser.Service,
	serviceAccounts *serviceaccount.Handler,
	adminUserAPI *adminuser.Handler,
	storageElements *storageelement.Handler,
	elementStore *storageelement.Store,
	keys *jwtkeys.LocalKeySetCache,
	keyStore *jwtkeys.Store,
	rotator *jwtkeys.Rotator,
) *Handler {
	return &Handler{
		Tokens:          tokens,
		AdminUsers:      adminUsers,
		ServiceAccounts: serviceAccounts,
		AdminUserAPI:    adminUserAPI,
		StorageElements: storageElements,
		Keys:            keys,
		KeyStore:        keyStore,
		Rotator:         rotator,
		ElementStore:    elementStore,
		Logger:          logger,
	}
}
