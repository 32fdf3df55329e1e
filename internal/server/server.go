package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"koon/internal/exchange"
	"koon/internal/storage"
	"koon/internal/store"
	"koon/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/go-playground/form/v4"
	"github.com/gorilla/securecookie"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

type Service struct {
	logger        *logrus.Logger
	config        *types.Config
	exchange      *exchange.Service
	contributions *store.ContributionRepository
	media         storage.MediaStore

	cognitoClient *cognitoidentityprovider.Client
	cookie        *securecookie.SecureCookie

	jwksCache *jwk.Cache
	jwksURL   string

	server *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	cognitoClient *cognitoidentityprovider.Client,
	exchangeService *exchange.Service,
	contributionsRepo *store.ContributionRepository,
	media storage.MediaStore,
	jwkCache *jwk.Cache,
	jwksURL string,
) (*Service, error) {
	mux := flow.New()

	hashKey, _ := base64.StdEncoding.DecodeString(config.CookieHashKey)
	blockKey, _ := base64.StdEncoding.DecodeString(config.CookieBlockKey)

	s := &Service{
		logger:        logger,
		config:        config,
		cognitoClient: cognitoClient,
		cookie:        securecookie.New(hashKey, blockKey),

		exchange:      exchangeService,
		contributions: contributionsRepo,
		media:         media,

		jwksCache: jwkCache,
		jwksURL:   jwksURL,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			Handler:           mux,
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.buildRouter(mux)

	return s, nil
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.StripTrailingSlash)
	r.Use(s.LoggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)

	r.HandleFunc("/login", s.handlePostLogin, http.MethodPost)
	r.HandleFunc("/logout", s.handlePostLogout, http.MethodPost)

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)

		r.HandleFunc("/api/materials", s.handleListItems, http.MethodGet)
		r.HandleFunc("/api/materials/records", s.handleListRecords, http.MethodGet)
		r.HandleFunc("/api/materials/records", s.handleCreateRecord, http.MethodPost)
		r.HandleFunc("/api/materials/records/:recordID", s.handleDeleteRecord, http.MethodDelete)
		r.HandleFunc("/api/materials/records/:recordID/items/:itemID", s.handleRemoveItem, http.MethodDelete)
		r.HandleFunc("/api/materials/records/:recordID/items/:itemID/approve", s.handleApproveItem, http.MethodPost)
		r.HandleFunc("/api/materials/records/:recordID/items/:itemID/revert", s.handleRevertItem, http.MethodPost)
		r.HandleFunc("/api/materials/records/:recordID/items/:itemID/reserve", s.handleReserveItem, http.MethodPost)
		r.HandleFunc("/api/materials/records/:recordID/items/:itemID/cancel", s.handleCancelReservation, http.MethodPost)
		r.HandleFunc("/api/materials/records/:recordID/items/:itemID/handover", s.handleHandoverItem, http.MethodPost)

		r.HandleFunc("/api/exchange/phase", s.handleGetPhase, http.MethodGet)
		r.HandleFunc("/api/exchange/phase", s.handleSetPhase, http.MethodPut)

		r.HandleFunc("/api/takers/:studentID/summary", s.handleTakerSummary, http.MethodGet)

		r.HandleFunc("/api/contributions", s.handleListContributions, http.MethodGet)
		r.HandleFunc("/api/contributions/:id/status", s.handleContributionStatus, http.MethodPost)
		r.HandleFunc("/api/contributions/:id", s.handleDeleteContribution, http.MethodDelete)

		r.HandleFunc("/api/uploads", s.handleUpload, http.MethodPost)
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
