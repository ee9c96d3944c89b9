package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/myjantes/atelier_backend/config"
	"github.com/myjantes/atelier_backend/models"
	"github.com/myjantes/atelier_backend/push"
	"github.com/myjantes/atelier_backend/utils"
)

// respondError maps the error taxonomy onto HTTP: stale references are 404,
// domain-rule failures 422, everything else 400.
func respondError(c *gin.Context, err error) {
	if utils.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var ve *utils.ValidationError
	if errors.As(err, &ve) {
		body := gin.H{"error": ve.Error(), "field": ve.Field}
		if ve.Shortfall > 0 {
			body["shortfall"] = ve.Shortfall
		}
		c.JSON(http.StatusUnprocessableEntity, body)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func bindJSON(c *gin.Context, input any) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		if fields := utils.ProcessValidationErrors(err); fields != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// sessionClientScope narrows list queries: non-admin callers only ever see
// their own documents.
func sessionClientScope(c *gin.Context) *int {
	ctx := c.Request.Context()
	if isAdmin, _ := utils.GetIsAdminFromContext(ctx); isAdmin {
		if v := c.Query("client_id"); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				return &id
			}
		}
		return nil
	}
	userID, _ := utils.GetUserIdFromContext(ctx)
	return &userID
}

func requireOwnershipOrAdmin(c *gin.Context, clientID int) bool {
	ctx := c.Request.Context()
	if isAdmin, _ := utils.GetIsAdminFromContext(ctx); isAdmin {
		return true
	}
	userID, _ := utils.GetUserIdFromContext(ctx)
	if userID != clientID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return false
	}
	return true
}

/* auth */

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		user, token, err := models.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"token": token, "user": user}})
	}
}

func registerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if !bindJSON(c, &input) {
			return
		}
		// self-registration never grants admin
		input.IsAdmin = false
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": user})
	}
}

func currentUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := utils.GetUserIdFromContext(c.Request.Context())
		user, err := models.GetUser(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": user})
	}
}

/* services */

func listServicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		services, err := models.GetActiveServices(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": services})
	}
}

func adminListServicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		services, err := models.GetServices(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": services})
	}
}

func createServiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewService
		if !bindJSON(c, &input) {
			return
		}
		service, err := models.CreateService(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": service})
	}
}

func updateServiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var input models.NewService
		if !bindJSON(c, &input) {
			return
		}
		service, err := models.UpdateService(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": service})
	}
}

func deleteServiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		service, err := models.DeleteService(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": service})
	}
}

type toggleServiceRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func toggleServiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req toggleServiceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "is_active is required"})
			return
		}
		service, err := models.ToggleActiveService(c.Request.Context(), id, *req.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": service})
	}
}

/* quotes */

func createQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewQuote
		if !bindJSON(c, &input) {
			return
		}
		ctx := c.Request.Context()
		if isAdmin, _ := utils.GetIsAdminFromContext(ctx); !isAdmin {
			// clients can only request quotes for themselves
			userID, _ := utils.GetUserIdFromContext(ctx)
			input.ClientID = userID
		}
		quote, err := models.CreateQuote(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": quote})
	}
}

func listQuotesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.QuoteStatus
		if v := c.Query("status"); v != "" {
			s := models.QuoteStatus(v)
			status = &s
		}
		quotes, err := models.GetQuotes(c.Request.Context(), sessionClientScope(c), status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": quotes})
	}
}

func getQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		quote, err := models.GetQuote(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if !requireOwnershipOrAdmin(c, quote.ClientID) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": quote})
	}
}

func updateQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var input models.UpdateQuoteInput
		if !bindJSON(c, &input) {
			return
		}
		quote, err := models.UpdateQuote(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": quote})
	}
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func updateQuoteStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
			return
		}
		quote, err := models.UpdateQuoteStatus(c.Request.Context(), id, models.QuoteStatus(req.Status))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": quote})
	}
}

func deleteQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		quote, err := models.DeleteQuote(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": quote})
	}
}

/* invoices */

func createInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInvoice
		if !bindJSON(c, &input) {
			return
		}
		invoice, err := models.CreateInvoice(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": invoice})
	}
}

func listInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.InvoiceStatus
		if v := c.Query("status"); v != "" {
			s := models.InvoiceStatus(v)
			status = &s
		}
		invoices, err := models.GetInvoices(c.Request.Context(), sessionClientScope(c), status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": invoices})
	}
}

func getInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		invoice, err := models.GetInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if !requireOwnershipOrAdmin(c, invoice.ClientID) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": invoice})
	}
}

func updateInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var input models.UpdateInvoiceInput
		if !bindJSON(c, &input) {
			return
		}
		invoice, err := models.UpdateInvoice(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": invoice})
	}
}

func updateInvoiceStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
			return
		}
		invoice, err := models.UpdateInvoiceStatus(c.Request.Context(), id, models.InvoiceStatus(req.Status))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": invoice})
	}
}

func deleteInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		invoice, err := models.DeleteInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": invoice})
	}
}

/* line items */

func listLineItemsHandler(parentType models.ParentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		items, err := models.ListLineItems(c.Request.Context(), parentType, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
	}
}

func getLineItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		item, err := models.GetLineItem(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		clientID, err := parentClientID(ctx, item.ParentType, item.ParentID)
		if err != nil {
			respondError(c, err)
			return
		}
		if !requireOwnershipOrAdmin(c, clientID) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": item})
	}
}

func parentClientID(ctx context.Context, parentType models.ParentType, parentID int) (int, error) {
	switch parentType {
	case models.ParentTypeQuote:
		quote, err := models.GetQuote(ctx, parentID)
		if err != nil {
			return 0, err
		}
		return quote.ClientID, nil
	case models.ParentTypeInvoice:
		invoice, err := models.GetInvoice(ctx, parentID)
		if err != nil {
			return 0, err
		}
		return invoice.ClientID, nil
	}
	return 0, errors.New("invalid parent type")
}

// createLineItemHandler stores the item and recalculates the parent's
// aggregates as the final step.
func createLineItemHandler(parentType models.ParentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var input models.NewLineItem
		if !bindJSON(c, &input) {
			return
		}
		ctx := c.Request.Context()
		item, err := models.CreateLineItem(ctx, parentType, id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := recalculateParent(c, parentType, id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": item})
	}
}

func updateLineItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var input models.UpdateLineItemInput
		if !bindJSON(c, &input) {
			return
		}
		item, err := models.UpdateLineItem(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := recalculateParent(c, item.ParentType, item.ParentID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": item})
	}
}

func deleteLineItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		// the returned row keeps the parent reference for the recalculation
		item, err := models.DeleteLineItem(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := recalculateParent(c, item.ParentType, item.ParentID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": item})
	}
}

func recalculateParent(c *gin.Context, parentType models.ParentType, parentID int) error {
	ctx := c.Request.Context()
	switch parentType {
	case models.ParentTypeQuote:
		_, err := models.RecalculateQuoteTotals(ctx, parentID)
		return err
	case models.ParentTypeInvoice:
		_, err := models.RecalculateInvoiceTotals(ctx, parentID)
		return err
	}
	return errors.New("invalid parent type")
}

/* media */

func listMediaHandler(parentType models.ParentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		files, err := models.ListMediaFiles(c.Request.Context(), parentType, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": files})
	}
}

func deleteMediaHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		file, err := models.DeleteMediaFile(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		// the stored object cleanup is best-effort
		if file.ObjectKey != "" {
			if err := utils.DeleteImageFromGCS(ctx, file.ObjectKey); err != nil {
				logger := config.GetLogger()
				config.LogError(logger, "handlers.go", "deleteMediaHandler", "DeleteImageFromGCS", file.ObjectKey, err)
			}
		}
		c.JSON(http.StatusOK, gin.H{"data": file})
	}
}

/* reservations */

func createReservationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewReservation
		if !bindJSON(c, &input) {
			return
		}
		ctx := c.Request.Context()
		if isAdmin, _ := utils.GetIsAdminFromContext(ctx); !isAdmin {
			userID, _ := utils.GetUserIdFromContext(ctx)
			input.ClientID = userID
		}
		reservation, err := models.CreateReservation(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": reservation})
	}
}

func listReservationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var status *models.ReservationStatus
		if v := c.Query("status"); v != "" {
			s := models.ReservationStatus(v)
			status = &s
		}
		reservations, err := models.GetReservations(c.Request.Context(), sessionClientScope(c), status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": reservations})
	}
}

func getReservationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		reservation, err := models.GetReservation(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if !requireOwnershipOrAdmin(c, reservation.ClientID) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": reservation})
	}
}

func updateReservationStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
			return
		}
		reservation, err := models.UpdateReservationStatus(c.Request.Context(), id, models.ReservationStatus(req.Status))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": reservation})
	}
}

func deleteReservationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		reservation, err := models.DeleteReservation(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": reservation})
	}
}

/* users (admin) */

func listUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := models.GetUsers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": users})
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if !bindJSON(c, &input) {
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": user})
	}
}

func updateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var input models.UpdateUserInput
		if !bindJSON(c, &input) {
			return
		}
		user, err := models.UpdateUser(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": user})
	}
}

/* notifications */

func listNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := utils.GetUserIdFromContext(c.Request.Context())
		limit, _ := strconv.Atoi(c.Query("limit"))
		records, err := models.ListNotificationsForUser(c.Request.Context(), userID, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": records})
	}
}

/* counters (admin) */

func getInvoiceCounterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentType := models.PaymentType(c.Param("paymentType"))
		counter, err := models.GetInvoiceCounter(c.Request.Context(), paymentType)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": counter})
	}
}

/* websocket push */

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is enforced by the HTTP middleware; the token gate below is what
	// actually protects this endpoint.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func websocketHandler(hub *push.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID, ok := utils.GetUserIdFromContext(ctx)
		if !ok {
			// browsers cannot set headers on websocket dial; accept ?token=
			token := c.Query("token")
			validated, err := utils.JwtValidate(token)
			if err != nil || !validated.Valid {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			claim, okClaim := validated.Claims.(*utils.JwtCustomClaim)
			if !okClaim {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			userID = claim.ID
		}

		conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		hub.Register(userID, conn)

		// Drain the read side until the client hangs up.
		go func() {
			defer hub.Unregister(userID, conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}
