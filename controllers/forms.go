package controllers

import (
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/avosk/litepress/models"
	"github.com/avosk/litepress/utils"
)

// ValidationError is a field-scoped form failure. A request that produces one
// writes nothing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// PostForm is the candidate payload for creating or editing a post. The author
// and the publication timestamp are never part of the form: they come from the
// authenticated identity and the clock.
type PostForm struct {
	Text     string
	GroupRaw string
	Image    *multipart.FileHeader

	// set by Validate
	CleanText string
	GroupID   *uint
}

// BindPostForm reads a multipart or urlencoded submission.
func BindPostForm(ctx *gin.Context) PostForm {
	f := PostForm{
		Text:     ctx.PostForm("text"),
		GroupRaw: strings.TrimSpace(ctx.PostForm("group")),
	}
	if fh, err := ctx.FormFile("image"); err == nil {
		f.Image = fh
	}
	return f
}

// Validate checks the payload against the database. An absent group and an
// absent image are both valid; an unknown group or a non-image upload is not.
func (f *PostForm) Validate(db *gorm.DB) *ValidationError {
	f.CleanText = strings.TrimSpace(utils.Sanitize(f.Text))
	if f.CleanText == "" {
		return &ValidationError{Field: "text", Message: "text must not be empty"}
	}

	if f.GroupRaw != "" {
		id, err := strconv.ParseUint(f.GroupRaw, 10, 32)
		if err != nil {
			return &ValidationError{Field: "group", Message: "invalid group id"}
		}
		var group models.Group
		if err := db.First(&group, uint(id)).Error; err != nil {
			return &ValidationError{Field: "group", Message: "unknown group"}
		}
		gid := group.ID
		f.GroupID = &gid
	}

	if f.Image != nil {
		if _, err := utils.SniffImage(f.Image); err != nil {
			return &ValidationError{Field: "image", Message: "malformed image payload"}
		}
	}
	return nil
}

// CommentForm is the candidate payload for a reply.
type CommentForm struct {
	Text string

	CleanText string
}

// BindCommentForm reads a form submission.
func BindCommentForm(ctx *gin.Context) CommentForm {
	return CommentForm{Text: ctx.PostForm("text")}
}

// Validate rejects empty text.
func (f *CommentForm) Validate() *ValidationError {
	f.CleanText = strings.TrimSpace(utils.Sanitize(f.Text))
	if f.CleanText == "" {
		return &ValidationError{Field: "text", Message: "text must not be empty"}
	}
	return nil
}
