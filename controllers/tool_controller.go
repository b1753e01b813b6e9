package controllers

import (
	"net/http"

	"Gin_postgres_tool_loans/app"
	"Gin_postgres_tool_loans/services"

	"github.com/gin-gonic/gin"
)

type ToolController struct{ *Srv }

func NewToolController(s *Srv) *ToolController { return &ToolController{Srv: s} }

// GET /api/tools
func (tc *ToolController) ListTools(c *gin.Context) {
	tools, err := tc.Tools.List(c.Request.Context())
	if err != nil {
		tc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"tools": tools})
}

// GET /api/tools/:id
func (tc *ToolController) GetTool(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	tool, err := tc.Tools.Get(c.Request.Context(), id)
	if err != nil {
		tc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tool)
}

// POST /api/tools
func (tc *ToolController) CreateTool(c *gin.Context) {
	var in services.ToolCreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	tool, err := tc.Tools.Create(c.Request.Context(), in)
	if err != nil {
		tc.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tool)
}

// PUT /api/tools/:id
func (tc *ToolController) UpdateTool(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var patch services.ToolPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}
	tool, err := tc.Tools.Update(c.Request.Context(), id, patch)
	if err != nil {
		tc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tool)
}

// DELETE /api/tools/:id
func (tc *ToolController) DeleteTool(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := tc.Tools.Remove(c.Request.Context(), id); err != nil {
		tc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
