package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/avosk/litepress/models"
	"github.com/avosk/litepress/utils"
)

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "litepress-routes")
	if err != nil {
		panic(err)
	}
	os.Setenv("JWT_SECRET", "router-test-secret")
	os.Setenv("GIN_MODE", "test")
	os.Setenv("LOG_PATH", filepath.Join(tmp, "app.log"))
	os.Setenv("GIN_PATH", filepath.Join(tmp, "gin.log"))
	os.Setenv("MEDIA_DIR", filepath.Join(tmp, "media"))
	os.Setenv("RATE_LIMIT_PER_MINUTE", "6000")
	os.Setenv("ADMIN_USERNAMES", "admin")

	code := m.Run()
	os.RemoveAll(tmp)
	os.Exit(code)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:routes_%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Group{}, &models.Post{}, &models.Comment{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	hash, err := utils.HashPassword("password-1")
	require.NoError(t, err)
	user := models.User{Username: username, PasswordHash: hash}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func tokenFor(t *testing.T, user models.User) string {
	t.Helper()
	token, err := utils.GenerateToken(user.ID, user.Username, time.Hour)
	require.NoError(t, err)
	return token
}

func doForm(r http.Handler, method, target, token string, values url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if values != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(values.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Field   string          `json:"field"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}

type listingData struct {
	Items []struct {
		ID     uint   `json:"id"`
		Text   string `json:"text"`
		Author struct {
			Username string `json:"username"`
		} `json:"author"`
	} `json:"items"`
	Pagination utils.Pagination `json:"pagination"`
}

func decodeListing(t *testing.T, w *httptest.ResponseRecorder) listingData {
	t.Helper()
	env := decodeEnvelope(t, w)
	var data listingData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func TestHealth(t *testing.T) {
	r := SetupRouter(newTestDB(t))
	w := doForm(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnonymousMutationRedirectsToLogin(t *testing.T) {
	r := SetupRouter(newTestDB(t))

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/create/"},
		{http.MethodPost, "/create/"},
		{http.MethodGet, "/posts/1/edit/"},
		{http.MethodPost, "/posts/1/edit/"},
		{http.MethodPost, "/posts/1/comment/"},
	}
	for _, tc := range cases {
		w := doForm(r, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusFound, w.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "/auth/login?next="+tc.path, w.Header().Get("Location"))
	}
}

func TestIndexPaginationAndOrdering(t *testing.T) {
	db := newTestDB(t)
	r := SetupRouter(db)

	author := seedUser(t, db, "paginator")
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 13; i++ {
		post := models.Post{
			UserID:    author.ID,
			Text:      fmt.Sprintf("post-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.Create(&post).Error)
	}

	w := doForm(r, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeListing(t, w)
	require.Len(t, data.Items, 10)
	assert.Equal(t, "post-13", data.Items[0].Text)
	assert.Equal(t, "post-4", data.Items[9].Text)
	assert.Equal(t, 1, data.Pagination.Page)
	assert.Equal(t, 2, data.Pagination.TotalPages)
	assert.Equal(t, int64(13), data.Pagination.Total)

	w = doForm(r, http.MethodGet, "/?page=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeListing(t, w)
	require.Len(t, data.Items, 3)
	assert.Equal(t, "post-3", data.Items[0].Text)
	assert.Equal(t, "post-1", data.Items[2].Text)
	assert.Equal(t, 2, data.Pagination.Page)

	// Out of range and garbage page numbers clamp instead of failing.
	w = doForm(r, http.MethodGet, "/?page=99", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeListing(t, w)
	assert.Equal(t, 2, data.Pagination.Page)
	assert.Len(t, data.Items, 3)

	w = doForm(r, http.MethodGet, "/?page=banana", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeListing(t, w)
	assert.Equal(t, 1, data.Pagination.Page)
	assert.Len(t, data.Items, 10)
}

func TestGroupListing(t *testing.T) {
	db := newTestDB(t)
	r := SetupRouter(db)

	author := seedUser(t, db, "grouper")
	group := models.Group{Title: "Cats", Slug: "cats"}
	require.NoError(t, db.Create(&group).Error)
	require.NoError(t, db.Create(&models.Post{UserID: author.ID, GroupID: &group.ID, Text: "in group"}).Error)
	require.NoError(t, db.Create(&models.Post{UserID: author.ID, Text: "ungrouped"}).Error)

	w := doForm(r, http.MethodGet, "/group/cats/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeListing(t, w)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "in group", data.Items[0].Text)

	w = doForm(r, http.MethodGet, "/group/dogs/", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfileListing(t *testing.T) {
	db := newTestDB(t)
	r := SetupRouter(db)

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	require.NoError(t, db.Create(&models.Post{UserID: alice.ID, Text: "by alice"}).Error)
	require.NoError(t, db.Create(&models.Post{UserID: bob.ID, Text: "by bob"}).Error)

	w := doForm(r, http.MethodGet, "/profile/alice/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeListing(t, w)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "by alice", data.Items[0].Text)
	assert.Equal(t, "alice", data.Items[0].Author.Username)

	w = doForm(r, http.MethodGet, "/profile/ghost/", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostDetail(t *testing.T) {
	db := newTestDB(t)
	r := SetupRouter(db)

	author := seedUser(t, db, "detail")
	post := models.Post{UserID: author.ID, Text: "the post"}
	require.NoError(t, db.Create(&post).Error)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&models.Comment{PostID: post.ID, UserID: author.ID, Text: "first", CreatedAt: base}).Error)
	require.NoError(t, db.Create(&models.Comment{PostID: post.ID, UserID: author.ID, Text: "second", CreatedAt: base.Add(time.Minute)}).Error)

	w := doForm(r, http.MethodGet, fmt.Sprintf("/posts/%d/", post.ID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	var data struct {
		Post struct {
			Text string `json:"text"`
		} `json:"post"`
		Comments []struct {
			Text string `json:"text"`
		} `json:"comments"`
		Form struct {
			Text string `json:"text"`
		} `json:"form"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "the post", data.Post.Text)
	require.Len(t, data.Comments, 2)
	// Oldest first under the post.
	assert.Equal(t, "first", data.Comments[0].Text)
	assert.Equal(t, "second", data.Comments[1].Text)
	assert.Equal(t, "", data.Form.Text)

	w = doForm(r, http.MethodGet, "/posts/9999/", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePost(t *testing.T) {
	db := newTestDB(t)
	r := SetupRouter(db)

	author := seedUser(t, db, "writer")
	group := models.Group{Title: "News", Slug: "news"}
	require.NoError(t, db.Create(&group).Error)
	token := tokenFor(t, author)

	w := doForm(r, http.MethodPost, "/create/", token, url.Values{
		"text":  {"fresh words"},
		"group": {fmt.Sprint(group.ID)},
	})
	require.Equal(t, http.StatusFound, w.Code, "body: %s", w.Body.String())
	assert.Equal(t, "/profile/writer/", w.Header().Get("Location"))

	var post models.Post
	require.NoError(t, db.First(&post).Error)
	assert.Equal(t, author.ID, post.UserID)
	require.NotNil(t, post.GroupID)
	assert.Equal(t, group.ID, *post.GroupID)
	assert.Equal(t, "fresh words", post.Text)
	assert.False(t, post.CreatedAt.IsZero())
}

func TestCreatePostEmptyTextWritesNothing(t *testing.T) {
	db := newTestDB(t)
	r := SetupRouter(db)

	author := seedUser(t, db, "quiet")
	token := tokenFor(t, author)

	w := doForm(r, http.MethodPost, "/create/", token, url.Values{"text": {"   "}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "text", env.Field)

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestEditByAuthor(t *testing.T) {
	db := newTestDB(t)
	r := SetupRouter(db)

	author := seedUser(t, db, "editor")
	created := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	post := models.Post{UserID: author.ID, Text: "before", CreatedAt: created}
	require.NoError(t, db.Create(&post).Error)
	token := tokenFor(t, author)

	w := doForm(r, http.MethodGet, fmt.Sprintf("/posts/%d/edit/", post.ID), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doForm(r, http.MethodPost, fmt.Sprintf("/posts/%d/edit/", post.ID), token, url.Values{"text": {"after"}})
	require.Equal(t, http.StatusFound, w.Code, "body: %s", w.Body.String())
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), w.Header().Get("Location"))

	var got models.Post
	require.NoError(t, db.First(&got, post.ID).Error)
	assert.Equal(t, "after", got.Text)
	assert.Equal(t, author.ID, got.UserID)
	// Edits never move the publication timestamp.
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestEditByNonAuthorRedirectsToDetail(t *testing.T) {
	db := newTestDB(t)
	r := SetupRouter(db)

	author := seedUser(t, db, "owner")
	intruder := seedUser(t, db, "intruder")
	post := models.Post{UserID: author.ID, Text: "untouchable"}
	require.NoError(t, db.Create(&post).Error)
	token := tokenFor(t, intruder)

	w := doForm(r, http.MethodGet, fmt.Sprintf("/posts/%d/edit/", post.ID), token, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), w.Header().Get("Location"))

	w = doForm(r, http.MethodPost, fmt.Sprintf("/posts/%d/edit/", post.ID), token, url.Values{"text": {"hijacked"}})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), w.Header().Get("Location"))

	var got models.Post
	require.NoError(t, db.First(&got, post.ID).Error)
	assert.Equal(t, "untouchable", got.Text)
}

func TestAddComment(t *testing.T) {
	db := newTestDB(t)
	r := SetupRouter(db)

	author := seedUser(t, db, "poster")
	commenter := seedUser(t, db, "commenter")
	post := models.Post{UserID: author.ID, Text: "discuss"}
	require.NoError(t, db.Create(&post).Error)
	token := tokenFor(t, commenter)

	w := doForm(r, http.MethodPost, fmt.Sprintf("/posts/%d/comment/", post.ID), token, url.Values{"text": {"well said"}})
	require.Equal(t, http.StatusFound, w.Code, "body: %s", w.Body.String())
	assert.Equal(t, fmt.Sprintf("/posts/%d/", post.ID), w.Header().Get("Location"))

	var comment models.Comment
	require.NoError(t, db.First(&comment).Error)
	assert.Equal(t, post.ID, comment.PostID)
	assert.Equal(t, commenter.ID, comment.UserID)
	assert.Equal(t, "well said", comment.Text)

	// Empty text writes nothing.
	w = doForm(r, http.MethodPost, fmt.Sprintf("/posts/%d/comment/", post.ID), token, url.Values{"text": {"  "}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "text", env.Field)
	var count int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Commenting on a missing post is 404.
	w = doForm(r, http.MethodPost, "/posts/9999/comment/", token, url.Values{"text": {"void"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterLoginLogout(t *testing.T) {
	db := newTestDB(t)
	r := SetupRouter(db)

	w := doForm(r, http.MethodPost, "/auth/register", "", url.Values{
		"username": {"newcomer"},
		"password": {"secret-99"},
	})
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	env := decodeEnvelope(t, w)
	var auth struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	require.NotEmpty(t, auth.Token)

	// Duplicate username is a conflict.
	w = doForm(r, http.MethodPost, "/auth/register", "", url.Values{
		"username": {"newcomer"},
		"password": {"secret-99"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Wrong password is rejected without leaking which part failed.
	w = doForm(r, http.MethodPost, "/auth/login", "", url.Values{
		"username": {"newcomer"},
		"password": {"wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doForm(r, http.MethodPost, "/auth/login", "", url.Values{
		"username": {"newcomer"},
		"password": {"secret-99"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	env = decodeEnvelope(t, w)
	require.NoError(t, json.Unmarshal(env.Data, &auth))

	w = doForm(r, http.MethodGet, "/auth/me", auth.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Logout blacklists the token; it no longer authenticates.
	w = doForm(r, http.MethodPost, "/auth/logout", auth.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doForm(r, http.MethodGet, "/auth/me", auth.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCookieAuthentication(t *testing.T) {
	db := newTestDB(t)
	r := SetupRouter(db)

	user := seedUser(t, db, "cookie-user")
	token := tokenFor(t, user)

	req := httptest.NewRequest(http.MethodGet, "/create/", nil)
	req.AddCookie(&http.Cookie{Name: "litepress_token", Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "cookie session must pass the login gate")
}

func TestLoginFormEchoesNext(t *testing.T) {
	r := SetupRouter(newTestDB(t))

	w := doForm(r, http.MethodGet, "/auth/login?next=/create/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	var data struct {
		Next string `json:"next"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "/create/", data.Next)
}

func TestGroupManagement(t *testing.T) {
	db := newTestDB(t)
	r := SetupRouter(db)

	admin := seedUser(t, db, "admin")
	pleb := seedUser(t, db, "pleb")
	adminToken := tokenFor(t, admin)
	plebToken := tokenFor(t, pleb)

	body := `{"title":"Cats","slug":"cats","description":"feline"}`
	req := httptest.NewRequest(http.MethodPost, "/groups/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+plebToken)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/groups/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	var group models.Group
	require.NoError(t, db.Where("slug = ?", "cats").First(&group).Error)

	// Deleting the group detaches its posts.
	post := models.Post{UserID: pleb.ID, GroupID: &group.ID, Text: "survives"}
	require.NoError(t, db.Create(&post).Error)

	w = doForm(r, http.MethodDelete, "/groups/cats/", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	var got models.Post
	require.NoError(t, db.First(&got, post.ID).Error)
	assert.Nil(t, got.GroupID)
}
