package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/avosk/litepress/config"
	"github.com/avosk/litepress/middleware"
	"github.com/avosk/litepress/models"
	"github.com/avosk/litepress/utils"
)

// PostController serves the listing pages, post detail, and the
// create/edit/comment flows.
type PostController struct {
	db *gorm.DB
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB) *PostController {
	return &PostController{db: db}
}

// listPosts renders one page of posts for any listing view. scope narrows the
// query (all posts, one group's, one author's); extra carries view-specific
// context such as the group or the author. All three listing routes go
// through here so pagination and ordering cannot drift apart.
func (p *PostController) listPosts(ctx *gin.Context, cachePrefix string, scope func(*gorm.DB) *gorm.DB, extra gin.H) {
	pageQuery := ctx.Query("page")

	cacheKey := fmt.Sprintf("%spage=%s", cachePrefix, pageQuery)
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var total int64
	if err := scope(p.db.Model(&models.Post{})).Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count posts")
		return
	}

	pg := utils.Paginate(total, config.Get().PageSize, pageQuery)

	var posts []models.Post
	q := scope(p.db.Preload("User").Preload("Group")).Scopes(models.RecentFirst)
	if err := q.Offset(pg.Offset()).Limit(pg.PageSize).Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list posts")
		return
	}

	payload := gin.H{"items": posts, "pagination": pg}
	for k, v := range extra {
		payload[k] = v
	}
	utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	utils.Success(ctx, payload)
}

// Index is the front page: every post, newest first.
func (p *PostController) Index(ctx *gin.Context) {
	p.listPosts(ctx, "cache:posts:index:", func(db *gorm.DB) *gorm.DB { return db }, nil)
}

// GroupPosts lists posts belonging to one group; unknown slugs are 404.
func (p *PostController) GroupPosts(ctx *gin.Context) {
	slug := ctx.Param("slug")

	var group models.Group
	if err := p.db.Where("slug = ?", slug).First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40402, "group not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load group")
		return
	}

	p.listPosts(ctx, "cache:posts:group:"+slug+":", func(db *gorm.DB) *gorm.DB {
		return db.Where("group_id = ?", group.ID)
	}, gin.H{"group": group})
}

// Profile lists posts by one author; unknown usernames are 404.
func (p *PostController) Profile(ctx *gin.Context) {
	username := ctx.Param("username")

	var author models.User
	if err := p.db.Where("username = ?", username).First(&author).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40403, "user not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to load user")
		return
	}

	p.listPosts(ctx, "cache:posts:profile:"+username+":", func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", author.ID)
	}, gin.H{"author": author})
}

// Detail returns a single post, its comments oldest-first, and the empty
// comment form context.
func (p *PostController) Detail(ctx *gin.Context) {
	postID := ctx.Param("id")

	if b, ok := utils.CacheGetBytes("cache:post:detail:" + postID); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	post, ok := p.findPost(ctx, postID)
	if !ok {
		return
	}

	var comments []models.Comment
	if err := p.db.Preload("User").Where("post_id = ?", post.ID).
		Order("created_at ASC, id ASC").Find(&comments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to load comments")
		return
	}

	payload := gin.H{"post": post, "comments": comments, "form": gin.H{"text": ""}}
	utils.CacheSetJSON("cache:post:detail:"+postID, utils.JSONResponse{Code: 0, Message: "success", Data: payload}, time.Hour)
	utils.Success(ctx, payload)
}

// CreateForm returns the context the creation template needs: the groups the
// author may pick from.
func (p *PostController) CreateForm(ctx *gin.Context) {
	groups, ok := p.loadGroups(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{"groups": groups})
}

// Create persists a new post authored by the acting identity and sends the
// author to their profile. Exactly one record is written, or none.
func (p *PostController) Create(ctx *gin.Context) {
	userID, username, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	form := BindPostForm(ctx)
	if verr := form.Validate(p.db); verr != nil {
		utils.ErrorField(ctx, 40021, verr.Field, verr.Message)
		return
	}

	post := models.Post{
		UserID:  userID,
		GroupID: form.GroupID,
		Text:    form.CleanText,
	}
	if form.Image != nil {
		url, err := utils.SaveImage(form.Image, config.Get().MediaDir)
		if err != nil {
			utils.ErrorField(ctx, 40022, "image", "failed to store image")
			return
		}
		post.Image = url
	}

	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to create post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:")
	ctx.Redirect(http.StatusFound, "/profile/"+username+"/")
}

// EditForm shows the edit context to the author. Anyone else lands on the
// post detail page instead — no form, no error.
func (p *PostController) EditForm(ctx *gin.Context) {
	userID, _, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40111, "unauthorized")
		return
	}

	post, found := p.findPost(ctx, ctx.Param("id"))
	if !found {
		return
	}

	if decision := CanEdit(userID, post); !decision.Allowed {
		ctx.Redirect(http.StatusFound, decision.Redirect)
		return
	}

	groups, ok := p.loadGroups(ctx)
	if !ok {
		return
	}
	utils.Success(ctx, gin.H{"post": post, "groups": groups})
}

// Edit mutates text, group and image of the author's own post. The author and
// the publication timestamp are untouched; the update is additionally scoped
// to the author's records.
func (p *PostController) Edit(ctx *gin.Context) {
	userID, _, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40112, "unauthorized")
		return
	}

	post, found := p.findPost(ctx, ctx.Param("id"))
	if !found {
		return
	}

	if decision := CanEdit(userID, post); !decision.Allowed {
		ctx.Redirect(http.StatusFound, decision.Redirect)
		return
	}

	form := BindPostForm(ctx)
	if verr := form.Validate(p.db); verr != nil {
		utils.ErrorField(ctx, 40023, verr.Field, verr.Message)
		return
	}

	updates := map[string]interface{}{
		"text":     form.CleanText,
		"group_id": form.GroupID,
	}
	if form.Image != nil {
		url, err := utils.SaveImage(form.Image, config.Get().MediaDir)
		if err != nil {
			utils.ErrorField(ctx, 40024, "image", "failed to store image")
			return
		}
		updates["image"] = url
	}

	if err := p.db.Model(&models.Post{}).
		Where("id = ? AND user_id = ?", post.ID, userID).
		Updates(updates).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50028, "failed to update post")
		return
	}

	utils.InvalidateByPrefix("cache:posts:")
	utils.InvalidateByPrefix("cache:post:detail:" + ctx.Param("id"))
	ctx.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", post.ID))
}

// AddComment attaches a reply to the path-resolved post, authored by the
// acting identity, and returns to the detail page. Comments have no edit or
// delete path.
func (p *PostController) AddComment(ctx *gin.Context) {
	userID, _, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}

	post, found := p.findPost(ctx, ctx.Param("id"))
	if !found {
		return
	}

	form := BindCommentForm(ctx)
	if verr := form.Validate(); verr != nil {
		utils.ErrorField(ctx, 40025, verr.Field, verr.Message)
		return
	}

	comment := models.Comment{
		PostID: post.ID,
		UserID: userID,
		Text:   form.CleanText,
	}
	if err := p.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50029, "failed to create comment")
		return
	}

	utils.InvalidateByPrefix("cache:post:detail:" + ctx.Param("id"))
	ctx.Redirect(http.StatusFound, fmt.Sprintf("/posts/%d/", post.ID))
}

// findPost resolves a post by primary key with author and group attached,
// answering 404 itself when there is no match.
func (p *PostController) findPost(ctx *gin.Context, postID string) (*models.Post, bool) {
	var post models.Post
	if err := p.db.Preload("User").Preload("Group").First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return nil, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to load post")
		return nil, false
	}
	return &post, true
}

func (p *PostController) loadGroups(ctx *gin.Context) ([]models.Group, bool) {
	var groups []models.Group
	if err := p.db.Order("title ASC").Find(&groups).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to load groups")
		return nil, false
	}
	return groups, true
}
