package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/avosk/litepress/config"
	"github.com/avosk/litepress/middleware"
	"github.com/avosk/litepress/models"
	"github.com/avosk/litepress/utils"
)

// GroupController serves the group catalog and its management surface.
// Groups are managed by administrators only; posts merely reference them.
type GroupController struct {
	db *gorm.DB
}

// NewGroupController creates a new GroupController instance.
func NewGroupController(db *gorm.DB) *GroupController {
	return &GroupController{db: db}
}

// ListGroups returns every group, the source for the post form's selector.
func (g *GroupController) ListGroups(ctx *gin.Context) {
	var groups []models.Group
	if err := g.db.Order("title ASC").Find(&groups).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to list groups")
		return
	}
	utils.Success(ctx, gin.H{"items": groups})
}

// CreateGroup registers a new topical category. Administrator usernames only.
func (g *GroupController) CreateGroup(ctx *gin.Context) {
	if !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40310, "administrator access required")
		return
	}

	var req struct {
		Title       string `json:"title" binding:"required,max=200"`
		Slug        string `json:"slug" binding:"required,max=64"`
		Description string `json:"description"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40040, "invalid request payload")
		return
	}

	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if !validSlug(slug) {
		utils.ErrorField(ctx, 40041, "slug", "slug may contain lowercase letters, digits and '-' only")
		return
	}

	var existing models.Group
	if err := g.db.Where("slug = ?", slug).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40910, "slug already exists")
		return
	}

	group := models.Group{
		Title:       strings.TrimSpace(req.Title),
		Slug:        slug,
		Description: utils.Sanitize(req.Description),
	}
	if err := g.db.Create(&group).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to create group")
		return
	}

	utils.Success(ctx, gin.H{"group": group})
}

// DeleteGroup removes a group. Posts referencing it are kept and detached,
// never deleted.
func (g *GroupController) DeleteGroup(ctx *gin.Context) {
	if !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40311, "administrator access required")
		return
	}

	slug := ctx.Param("slug")
	var group models.Group
	if err := g.db.Where("slug = ?", slug).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40404, "group not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to load group")
		return
	}

	if err := g.db.Delete(&group).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to delete group")
		return
	}

	utils.InvalidateByPrefix("cache:posts:")
	utils.Success(ctx, gin.H{"message": "group deleted"})
}

func isAdmin(ctx *gin.Context) bool {
	_, username, ok := middleware.CurrentUser(ctx)
	if !ok || username == "" {
		return false
	}
	for _, u := range config.Get().AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), username) {
			return true
		}
	}
	return false
}

func validSlug(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			continue
		}
		return false
	}
	return true
}
