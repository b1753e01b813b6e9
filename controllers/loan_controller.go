package controllers

import (
	"net/http"

	"Gin_postgres_tool_loans/app"
	"Gin_postgres_tool_loans/services"

	"github.com/gin-gonic/gin"
)

type LoanController struct{ *Srv }

func NewLoanController(s *Srv) *LoanController { return &LoanController{Srv: s} }

// GET /api/loans?user_id=&tool_id=&status=
func (lc *LoanController) ListLoans(c *gin.Context) {
	filter, err := services.ParseLoanFilter(c.Query("user_id"), c.Query("tool_id"), c.Query("status"))
	if err != nil {
		lc.writeError(c, err)
		return
	}

	loans, err := lc.Loans.List(c.Request.Context(), filter)
	if err != nil {
		lc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"loans": loans})
}

// GET /api/loans/:id
func (lc *LoanController) GetLoan(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	loan, err := lc.Loans.Get(c.Request.Context(), id)
	if err != nil {
		lc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

// POST /api/loans
func (lc *LoanController) CreateLoan(c *gin.Context) {
	var in services.LoanCreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	loan, err := lc.Loans.Create(c.Request.Context(), in)
	if err != nil {
		lc.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan)
}

// PUT /api/loans/:id
func (lc *LoanController) UpdateLoan(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var patch services.LoanPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}
	loan, err := lc.Loans.Update(c.Request.Context(), id, patch)
	if err != nil {
		lc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan)
}

// DELETE /api/loans/:id
func (lc *LoanController) DeleteLoan(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := lc.Loans.Remove(c.Request.Context(), id); err != nil {
		lc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
