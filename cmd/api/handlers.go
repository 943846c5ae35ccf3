package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/assetdesk/stock-ledger-service/pkg/errors"
	"github.com/assetdesk/stock-ledger-service/pkg/logging"
	"github.com/assetdesk/stock-ledger-service/pkg/middleware"

	"github.com/assetdesk/stock-ledger-service/internal/application"
	"github.com/assetdesk/stock-ledger-service/internal/domain"
)

// createItemHandler handles POST /api/v1/stock
func createItemHandler(service *application.TransactionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req application.Request
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		req.Kind = domain.KindCreate

		item, err := service.Apply(c.Request.Context(), req)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusCreated, item)
	}
}

// applyTransactionHandler handles POST /api/v1/stock/transactions. The kind
// comes from the request body, so one endpoint covers every mutation.
func applyTransactionHandler(service *application.TransactionService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req application.Request
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		if req.Kind == "" {
			responder.RespondBadRequest("kind is required")
			return
		}

		item, err := service.Apply(c.Request.Context(), req)
		if err != nil {
			respondError(responder, err)
			return
		}

		status := http.StatusOK
		if req.Kind == domain.KindCreate {
			status = http.StatusCreated
		}
		c.JSON(status, item)
	}
}

// mutationHandler handles the per-kind POST /api/v1/stock/:itemId/<kind>
// routes. The kind and item ID come from the route, not the body.
func mutationHandler(service *application.TransactionService, logger *logging.Logger, kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req application.Request
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}
		req.Kind = domain.TransactionKind(kind)
		req.ItemID = c.Param("itemId")

		item, err := service.Apply(c.Request.Context(), req)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, item)
	}
}

// getItemHandler handles GET /api/v1/stock/:itemId
func getItemHandler(service *application.QueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		item, err := service.GetItem(c.Request.Context(), application.GetItemQuery{
			ItemID: c.Param("itemId"),
		})
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, item)
	}
}

// listItemsHandler handles GET /api/v1/stock
func listItemsHandler(service *application.QueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		query := application.ListItemsQuery{
			Limit:      queryInt(c, "limit", 50),
			Offset:     queryInt(c, "offset", 0),
			OnlyLow:    c.Query("lowStock") == "true",
			SearchTerm: c.Query("search"),
		}

		summaries, err := service.ListItems(c.Request.Context(), query)
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"items": summaries,
			"count": len(summaries),
		})
	}
}

// getLedgerHandler handles GET /api/v1/stock/:itemId/ledger
func getLedgerHandler(service *application.QueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		entries, err := service.GetLedger(c.Request.Context(), application.GetLedgerQuery{
			ItemID: c.Param("itemId"),
			Limit:  queryInt(c, "limit", 0),
		})
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"itemId":  c.Param("itemId"),
			"entries": entries,
			"count":   len(entries),
		})
	}
}

// availabilityHandler handles GET /api/v1/stock/:itemId/availability
func availabilityHandler(service *application.QueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		projectID := c.Query("projectId")
		if projectID == "" {
			responder.RespondBadRequest("projectId query parameter is required")
			return
		}

		availability, err := service.GetAvailability(c.Request.Context(), application.AvailabilityQuery{
			ItemID:         c.Param("itemId"),
			ProjectID:      projectID,
			CounterpartyID: c.Query("counterpartyId"),
		})
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, availability)
	}
}

// auditHandler handles GET /api/v1/stock/:itemId/audit
func auditHandler(service *application.QueryService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		report, err := service.AuditItem(c.Request.Context(), c.Param("itemId"))
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, report)
	}
}

// lowStockHandler handles GET /api/v1/stock/low-stock
func lowStockHandler(service *application.NotificationService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		alerts, err := service.FindLowStock(c.Request.Context())
		if err != nil {
			respondError(responder, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"alerts": alerts,
			"count":  len(alerts),
		})
	}
}

// importRequest is the body of POST /api/v1/stock/import
type importRequest struct {
	ActorID string                  `json:"actorId" binding:"required"`
	Rows    []application.ImportRow `json:"rows" binding:"required,min=1"`
}

// importHandler handles POST /api/v1/stock/import
func importHandler(service *application.ImportService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req importRequest
		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		result, err := service.Import(c.Request.Context(), req.Rows, req.ActorID)
		if err != nil {
			respondError(responder, err)
			return
		}

		status := http.StatusOK
		if result.Failed > 0 {
			status = http.StatusMultiStatus
		}
		c.JSON(status, result)
	}
}

func respondError(responder *middleware.ErrorResponder, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		responder.RespondWithAppError(appErr)
		return
	}
	responder.RespondInternalError(err)
}

func queryInt(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
