package controllers

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avosk/litepress/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:ctrl_%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Group{}, &models.Post{}, &models.Comment{}))
	return db
}

func formContext(t *testing.T, values url.Values) *gin.Context {
	t.Helper()
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	ctx.Request = req
	return ctx
}

func multipartContext(t *testing.T, fields map[string]string, fileField, fileName string, fileContent []byte) *gin.Context {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(fileContent)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	ctx.Request = req
	return ctx
}

func TestPostFormRejectsEmptyText(t *testing.T) {
	db := newTestDB(t)

	for _, text := range []string{"", "   ", "\n\t "} {
		form := BindPostForm(formContext(t, url.Values{"text": {text}}))
		verr := form.Validate(db)
		require.NotNil(t, verr)
		assert.Equal(t, "text", verr.Field)
	}
}

func TestPostFormGroupValidation(t *testing.T) {
	db := newTestDB(t)
	group := models.Group{Title: "Dogs", Slug: "dogs"}
	require.NoError(t, db.Create(&group).Error)

	form := BindPostForm(formContext(t, url.Values{"text": {"woof"}, "group": {fmt.Sprint(group.ID)}}))
	require.Nil(t, form.Validate(db))
	require.NotNil(t, form.GroupID)
	assert.Equal(t, group.ID, *form.GroupID)

	form = BindPostForm(formContext(t, url.Values{"text": {"woof"}, "group": {"999"}}))
	verr := form.Validate(db)
	require.NotNil(t, verr)
	assert.Equal(t, "group", verr.Field)

	form = BindPostForm(formContext(t, url.Values{"text": {"woof"}, "group": {"not-a-number"}}))
	verr = form.Validate(db)
	require.NotNil(t, verr)
	assert.Equal(t, "group", verr.Field)

	// Absent group is fine.
	form = BindPostForm(formContext(t, url.Values{"text": {"woof"}}))
	require.Nil(t, form.Validate(db))
	assert.Nil(t, form.GroupID)
}

func TestPostFormSanitizesMarkup(t *testing.T) {
	db := newTestDB(t)

	form := BindPostForm(formContext(t, url.Values{"text": {`hello <script>alert(1)</script>world`}}))
	require.Nil(t, form.Validate(db))
	assert.NotContains(t, form.CleanText, "<script>")
	assert.Contains(t, form.CleanText, "hello")

	// Markup-only input collapses to nothing and is rejected.
	form = BindPostForm(formContext(t, url.Values{"text": {`<script>alert(1)</script>`}}))
	verr := form.Validate(db)
	require.NotNil(t, verr)
	assert.Equal(t, "text", verr.Field)
}

func TestPostFormImageValidation(t *testing.T) {
	db := newTestDB(t)
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

	form := BindPostForm(multipartContext(t, map[string]string{"text": "pictured"}, "image", "a.png", png))
	require.Nil(t, form.Validate(db))

	form = BindPostForm(multipartContext(t, map[string]string{"text": "oops"}, "image", "a.png", []byte("not an image")))
	verr := form.Validate(db)
	require.NotNil(t, verr)
	assert.Equal(t, "image", verr.Field)
}

func TestCommentFormValidation(t *testing.T) {
	form := BindCommentForm(formContext(t, url.Values{"text": {"  nice post  "}}))
	require.Nil(t, form.Validate())
	assert.Equal(t, "nice post", form.CleanText)

	form = BindCommentForm(formContext(t, url.Values{"text": {"   "}}))
	verr := form.Validate()
	require.NotNil(t, verr)
	assert.Equal(t, "text", verr.Field)
}

func TestCanEdit(t *testing.T) {
	post := &models.Post{ID: 42, UserID: 7}

	d := CanEdit(7, post)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Redirect)

	d = CanEdit(8, post)
	assert.False(t, d.Allowed)
	assert.Equal(t, "/posts/42/", d.Redirect)
}
