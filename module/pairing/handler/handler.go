package handler

import (
	"net/http"

	midsec "PairLink/middleware/security"
	"PairLink/module/pairing/service"
	errs "PairLink/tools/errs"

	"github.com/gin-gonic/gin"
)

// Handler adapts the coordinator to the HTTP surface the SPA calls.
type Handler struct {
	co *service.Coordinator
}

func New(co *service.Coordinator) *Handler {
	return &Handler{co: co}
}

func respond(c *gin.Context, data interface{}, err error) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
		return
	}

	code := errs.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case errs.CodeNotLoggedIn:
		status = http.StatusUnauthorized
	case errs.CodeNotAuthorized, errs.CodePermissionDenied:
		status = http.StatusForbidden
	case errs.CodeRequestNotFound:
		status = http.StatusNotFound
	case errs.CodeAlreadyPartnered, errs.CodeNotConnected, errs.CodeSelfPairing,
		errs.CodeInvalidOrExpiredCode, errs.CodeRequestNoLongerPending,
		errs.CodeRequestExpired, errs.CodeTermTooShort:
		status = http.StatusBadRequest
	case errs.CodeNetworkUnavailable, errs.CodeOperationTimedOut, errs.CodeBackendTransientFailure:
		status = http.StatusServiceUnavailable
	}

	// only taxonomy messages reach clients, never raw backend errors
	c.JSON(status, gin.H{"code": code, "msg": taxonomyMessage(code)})
}

func taxonomyMessage(code int) string {
	switch code {
	case errs.CodeNotLoggedIn:
		return "you need to sign in first"
	case errs.CodeAlreadyPartnered:
		return "you already have a partner"
	case errs.CodeNotConnected:
		return "you are not connected to a partner"
	case errs.CodeSelfPairing:
		return "you cannot pair with yourself"
	case errs.CodeInvalidOrExpiredCode:
		return "that invite code is invalid or has expired"
	case errs.CodeRequestNotFound:
		return "that request no longer exists"
	case errs.CodeRequestNoLongerPending:
		return "that request was already handled"
	case errs.CodeRequestExpired:
		return "that request has expired"
	case errs.CodeNotAuthorized:
		return "this request is not addressed to you"
	case errs.CodeTermTooShort:
		return "type at least 2 characters to search"
	case errs.CodePermissionDenied:
		return "permission denied"
	case errs.CodeNetworkUnavailable, errs.CodeOperationTimedOut, errs.CodeBackendTransientFailure:
		return "we could not reach the server, please try again"
	}
	return "internal error"
}

func (h *Handler) Login(c *gin.Context) {
	userID := midsec.UserID(c)
	respond(c, gin.H{"userId": userID}, h.co.Login(c.Request.Context(), userID))
}

func (h *Handler) Logout(c *gin.Context) {
	h.co.Logout(c.Request.Context(), midsec.UserID(c))
	respond(c, gin.H{}, nil)
}

func (h *Handler) GenerateInviteCode(c *gin.Context) {
	code, err := h.co.GenerateInviteCode(c.Request.Context(), midsec.UserID(c))
	respond(c, code, err)
}

type connectReq struct {
	Code string `json:"code" binding:"required"`
}

func (h *Handler) ConnectWithCode(c *gin.Context) {
	var req connectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, nil, errs.ErrInvalidOrExpiredCode.WrapMsg("missing code"))
		return
	}
	respond(c, gin.H{}, h.co.ConnectWithCode(c.Request.Context(), midsec.UserID(c), req.Code))
}

func (h *Handler) DisconnectPartner(c *gin.Context) {
	respond(c, gin.H{}, h.co.DisconnectPartner(c.Request.Context(), midsec.UserID(c)))
}

func (h *Handler) SearchUsers(c *gin.Context) {
	users, err := h.co.SearchUsers(c.Request.Context(), midsec.UserID(c), c.Query("term"))
	respond(c, users, err)
}

type sendReq struct {
	RecipientID string `json:"recipientId" binding:"required"`
}

func (h *Handler) SendPartnerRequest(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, nil, errs.ErrRequestNotFound.WrapMsg("missing recipient"))
		return
	}
	r, err := h.co.SendPartnerRequest(c.Request.Context(), midsec.UserID(c), req.RecipientID)
	respond(c, r, err)
}

func (h *Handler) AcceptPartnerRequest(c *gin.Context) {
	respond(c, gin.H{}, h.co.AcceptPartnerRequest(c.Request.Context(), midsec.UserID(c), c.Param("id")))
}

func (h *Handler) DeclinePartnerRequest(c *gin.Context) {
	respond(c, gin.H{}, h.co.DeclinePartnerRequest(c.Request.Context(), midsec.UserID(c), c.Param("id")))
}

func (h *Handler) Status(c *gin.Context) {
	st, err := h.co.Status(c.Request.Context(), midsec.UserID(c))
	respond(c, st, err)
}
