package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
	"github.com/vogtb/go-spreadsheet/packages/storage"
)

type CellEndpointParams struct {
	SheetId string `uri:"sheet_id" binding:"required"`
	CellId  string `uri:"cell_id" binding:"required"`
}

type SheetEndpointParams struct {
	SheetId string `uri:"sheet_id" binding:"required"`
}

// SetCellRequest carries the raw cell text. text is a pointer so an empty
// string is accepted and clears the cell content.
type SetCellRequest struct {
	Text *string `json:"text" binding:"required"`
}

type ApiController struct {
	workbook *Workbook
}

func NewApiController(workbook *Workbook) *ApiController {
	return &ApiController{workbook: workbook}
}

func (controller *ApiController) SetCellAction(c *gin.Context) {
	var params CellEndpointParams
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var request SetCellRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cell, err := controller.workbook.SetCell(c.Request.Context(), params.SheetId, params.CellId, *request.Text)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, cell)
}

func (controller *ApiController) GetCellAction(c *gin.Context) {
	var params CellEndpointParams
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cell, err := controller.workbook.GetCell(c.Request.Context(), params.SheetId, params.CellId)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cell)
}

func (controller *ApiController) ClearCellAction(c *gin.Context) {
	var params CellEndpointParams
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := controller.workbook.ClearCell(c.Request.Context(), params.SheetId, params.CellId); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (controller *ApiController) GetSheetAction(c *gin.Context) {
	var params SheetEndpointParams
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sheet, err := controller.workbook.GetSheet(c.Request.Context(), params.SheetId)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sheet)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, spreadsheet.ErrInvalidPosition), errors.Is(err, storage.ErrInvalidSheetName):
		return http.StatusBadRequest
	case errors.Is(err, spreadsheet.ErrCircularDependency), errors.Is(err, spreadsheet.ErrFormulaParse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrSheetNotFound), errors.Is(err, ErrCellNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
