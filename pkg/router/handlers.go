package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-training/cvgen-relay/pkg/core"
	"github.com/go-training/cvgen-relay/pkg/relay"

	"github.com/gin-gonic/gin"
)

type sendRequest struct {
	Code string `json:"code"`
}

func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Seconds(),
	})
}

// login starts the provider redirect with a fresh state cookie.
func (s *server) login(c *gin.Context) {
	state, err := s.sessions.IssueState(c.Writer, c.Request)
	if err != nil {
		core.LoggerFromCtx(c.Request.Context()).Error("failed to issue oauth state", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Redirect(http.StatusFound, s.opts.AuthorizeURL(state))
}

// callback completes the exchange server-side and sends the browser to the
// frontend. Neither the code nor any credential is forwarded in the URL.
func (s *server) callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		writeError(c, relay.ErrMissingCode, s.opts.DebugErrors)
		return
	}
	if !s.sessions.ConsumeState(c.Writer, c.Request, c.Query("state")) {
		writeError(c, relay.ErrInvalidState, s.opts.DebugErrors)
		return
	}

	if _, ok := s.authenticate(c, code); !ok {
		return
	}
	c.Redirect(http.StatusFound, s.opts.FrontendURL)
}

// send accepts a code posted by the frontend.
func (s *server) send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		writeError(c, relay.ErrMissingCode, s.opts.DebugErrors)
		return
	}

	res, ok := s.authenticate(c, req.Code)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": res.Profile})
}

func (s *server) authenticate(c *gin.Context, code string) (*relay.Result, bool) {
	ctx := c.Request.Context()
	res, err := s.relay.Authenticate(ctx, code, s.sessions.SessionID(c.Request))
	if err != nil {
		writeError(c, err, s.opts.DebugErrors)
		return nil, false
	}
	if err := s.sessions.Issue(c.Writer, c.Request, res.SessionID, res.ExpiresAt); err != nil {
		core.LoggerFromCtx(ctx).Error("failed to issue session cookie", "error", err)
		_ = s.relay.Logout(ctx, res.SessionID)
		writeError(c, relay.ErrSessionFailed, s.opts.DebugErrors)
		return nil, false
	}
	return res, true
}

func (s *server) user(c *gin.Context) {
	session, err := s.relay.Identity(c.Request.Context(), s.sessions.SessionID(c.Request))
	if err != nil {
		writeError(c, err, s.opts.DebugErrors)
		return
	}
	if session.Profile == nil {
		writeError(c, relay.ErrUnauthorized, s.opts.DebugErrors)
		return
	}
	c.JSON(http.StatusOK, session.Profile)
}

// repos lists repositories for the session's token, falling back to an
// Authorization bearer token when no session cookie is present.
func (s *server) repos(c *gin.Context) {
	ctx := c.Request.Context()

	var token string
	if id := s.sessions.SessionID(c.Request); id != "" {
		session, err := s.relay.Identity(ctx, id)
		if err != nil {
			writeError(c, err, s.opts.DebugErrors)
			return
		}
		token = session.AccessToken
	} else if bearer, ok := core.BearerFromRequest(c.Request); ok {
		token = bearer
	}

	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", 30)

	repos, pagination, err := s.relay.Repositories(ctx, token, page, perPage)
	if err != nil {
		writeError(c, err, s.opts.DebugErrors)
		return
	}
	c.JSON(http.StatusOK, gin.H{"repos": repos, "pagination": pagination})
}

func (s *server) logout(c *gin.Context) {
	if err := s.relay.Logout(c.Request.Context(), s.sessions.SessionID(c.Request)); err != nil {
		writeError(c, err, s.opts.DebugErrors)
		return
	}
	s.sessions.Clear(c.Writer, c.Request)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
