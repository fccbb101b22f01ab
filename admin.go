package lilac

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/eringen/lilac/content"
	"github.com/eringen/lilac/storage"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r loginRequest) validate() []string {
	var problems []string
	if n := utf8.RuneCountInString(r.Username); n < 1 || n > 50 {
		problems = append(problems, "Username must be between 1 and 50 characters")
	}
	if n := utf8.RuneCountInString(r.Password); n < 1 || n > 100 {
		problems = append(problems, "Password must be between 1 and 100 characters")
	}
	return problems
}

func (a *App) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return statusError(http.StatusBadRequest, "Invalid request body")
	}
	if problems := req.validate(); len(problems) > 0 {
		return &content.ValidationError{Problems: problems}
	}
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		if wait := a.loginLimiter.RetryAfter(ip); wait > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		}
		return statusError(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	user, err := a.Auth.Authenticate(req.Username, req.Password)
	if err != nil {
		a.loginLimiter.Record(ip)
		c.Logger().Warnf("auth: failed login for %q from %s", req.Username, ip)
		return statusError(http.StatusUnauthorized, "Invalid credentials")
	}
	a.loginLimiter.Reset(ip)
	token, err := a.Auth.IssueToken(user)
	if err != nil {
		return err
	}
	a.setAuthCookie(c, token)
	return c.JSON(http.StatusOK, map[string]any{"success": true, "user": user})
}

func (a *App) handleLogout(c echo.Context) error {
	a.clearAuthCookie(c)
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

func (a *App) handleMe(c echo.Context) error {
	user, ok := a.currentUser(c)
	if !ok {
		return statusError(http.StatusUnauthorized, "Not authenticated")
	}
	return c.JSON(http.StatusOK, map[string]any{"user": user})
}

// handleAdminListPosts lists every post including drafts. Without a limit
// all matching posts are returned.
func (a *App) handleAdminListPosts(c echo.Context) error {
	page, limit, err := a.parsePaging(c, 0)
	if err != nil {
		return err
	}
	q := storage.Query{
		Page:      page,
		Limit:     limit,
		Tag:       c.QueryParam("tag"),
		Search:    c.QueryParam("q"),
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
	}
	if s := c.QueryParam("published"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return statusError(http.StatusBadRequest, "Invalid published parameter")
		}
		q.Published = storage.Published(v)
	}
	result, err := a.Posts.List(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (a *App) handleAdminGetPost(c echo.Context) error {
	post, err := a.Posts.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleCreatePost(c echo.Context) error {
	var in content.PostInput
	if err := c.Bind(&in); err != nil {
		return statusError(http.StatusBadRequest, "Invalid request body")
	}
	post, err := content.NewPost(in, a.now())
	if err != nil {
		return err
	}
	created, err := a.Posts.Create(c.Request().Context(), post)
	if err != nil {
		return err
	}
	a.Cache.Invalidate()
	c.Logger().Infof("posts: created %s", created.ID)
	return c.JSON(http.StatusCreated, created)
}

// postID reads the id from either the public (:slug) or admin (:id) route.
func postID(c echo.Context) string {
	if id := c.Param("id"); id != "" {
		return id
	}
	return c.Param("slug")
}

func (a *App) handleUpdatePost(c echo.Context) error {
	var u content.PostUpdate
	if err := c.Bind(&u); err != nil {
		return statusError(http.StatusBadRequest, "Invalid request body")
	}
	if u.Empty() {
		return statusError(http.StatusBadRequest, "No fields to update")
	}
	if u.Tags != nil {
		tags := content.CleanTags(*u.Tags)
		u.Tags = &tags
	}
	if problems := content.ValidateUpdate(u); len(problems) > 0 {
		return &content.ValidationError{Problems: problems}
	}
	id := strings.TrimSpace(postID(c))
	updated, err := a.Posts.Update(c.Request().Context(), id, u)
	if err != nil {
		return err
	}
	a.Cache.Invalidate()
	c.Logger().Infof("posts: updated %s", id)
	return c.JSON(http.StatusOK, updated)
}

func (a *App) handleDeletePost(c echo.Context) error {
	id := strings.TrimSpace(postID(c))
	if err := a.Posts.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	a.Cache.Invalidate()
	c.Logger().Infof("posts: deleted %s", id)
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}
