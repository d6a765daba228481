package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// Register godoc
// @Summary      Register a user
// @Description  Creates a user and a portfolio funded with the starting balance
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      credentialsRequest  true  "Credentials"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/register [post]
func (h *Handler) Register(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.register")
	defer span.End()

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), ErrorType: "ValidationError"})
		return
	}

	user, err := h.ledger.Register(ctx, req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	span.SetAttributes(attribute.String("user_id", user.ID))
	c.JSON(http.StatusCreated, toUserResponse(user))
}

// Login godoc
// @Summary      Log in
// @Description  Checks credentials and returns a bearer token
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        body  body      credentialsRequest  true  "Credentials"
// @Success      200   {object}  loginResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /api/login [post]
func (h *Handler) Login(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.login")
	defer span.End()

	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), ErrorType: "ValidationError"})
		return
	}

	user, err := h.ledger.Login(ctx, req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.tokens.TTL()).UTC(),
		User:      toUserResponse(user),
	})
}
