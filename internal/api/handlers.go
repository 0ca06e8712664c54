/**
 * @description
 * This file contains the HTTP handlers for the public auth endpoints and the
 * shared handler plumbing. Customer and employee handlers live alongside.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/sirupsen/logrus: Structured logging.
 * - internal/app: The portal service layer.
 */

package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/finsecure/portal-core/internal/app"
	"github.com/finsecure/portal-core/pkg/domain"
)

// Handlers holds the dependencies for the HTTP handlers.
type Handlers struct {
	service        *app.Service
	log            *logrus.Entry
	maxUploadBytes int64
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(service *app.Service, maxUploadBytes int64, logger *logrus.Logger) *Handlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 5 << 20
	}
	return &Handlers{
		service:        service,
		log:            logger.WithField("component", "api"),
		maxUploadBytes: maxUploadBytes,
	}
}

// callerID returns the authenticated user id. Routes behind AuthMiddleware always have one.
func callerID(r *http.Request) uuid.UUID {
	identity, _ := GetIdentity(r.Context())
	return identity.UserID
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP"}, "FinSecure portal API is healthy")
}

func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp, "Login successful")
}

func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp, "Registration successful. Please verify your email.")
}

func (h *Handlers) SendOtpHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.OtpSendRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.SendOtp(r.Context(), req); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil, "OTP sent")
}

func (h *Handlers) VerifyOtpHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.OtpVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.service.VerifyOtp(r.Context(), req); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil, "OTP verified")
}
