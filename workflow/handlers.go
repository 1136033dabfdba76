package workflow

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/register_backend/config"
	"bitbucket.org/mmdatafocus/register_backend/models"
	"bitbucket.org/mmdatafocus/register_backend/utils"
)

type pinRequest struct {
	Pin string `json:"pin"`
}

type modeRequest struct {
	Mode models.GuardMode `json:"mode" binding:"required"`
}

func activeSessionId(c *gin.Context) (string, bool) {
	session, err := models.GetActiveSession(c.Request.Context())
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			c.JSON(http.StatusConflict, gin.H{"error": "no open session"})
		} else {
			config.LogError(config.GetLogger(), "workflow", "activeSessionId", "load", "", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		}
		return "", false
	}
	c.Request = c.Request.WithContext(utils.SetSessionIdInContext(c.Request.Context(), session.ID))
	return session.ID, true
}

func writeGuardError(c *gin.Context, err error) {
	switch {
	case utils.IsGuardViolation(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case utils.IsDateGateViolation(err):
		var dv *utils.DateGateViolation
		errors.As(err, &dv)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "eligible_at": dv.EligibleAt})
	case utils.IsValidationError(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		config.LogError(config.GetLogger(), "workflow", "writeGuardError", "", "", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reset workflow failed"})
	}
}

func guardStepHandler(step func(*Guard, *gin.Context, string) (*models.RAZGuardState, error), guard *Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId, ok := activeSessionId(c)
		if !ok {
			return
		}
		state, err := step(guard, c, sessionId)
		if err != nil {
			writeGuardError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func ViewHandler(guard *Guard) gin.HandlerFunc {
	return guardStepHandler(func(g *Guard, c *gin.Context, sessionId string) (*models.RAZGuardState, error) {
		return g.View(c.Request.Context(), sessionId)
	}, guard)
}

func PrintHandler(guard *Guard) gin.HandlerFunc {
	return guardStepHandler(func(g *Guard, c *gin.Context, sessionId string) (*models.RAZGuardState, error) {
		return g.Print(c.Request.Context(), sessionId)
	}, guard)
}

func NotifyHandler(guard *Guard) gin.HandlerFunc {
	return guardStepHandler(func(g *Guard, c *gin.Context, sessionId string) (*models.RAZGuardState, error) {
		return g.Notify(c.Request.Context(), sessionId)
	}, guard)
}

func AckHandler(guard *Guard) gin.HandlerFunc {
	return guardStepHandler(func(g *Guard, c *gin.Context, sessionId string) (*models.RAZGuardState, error) {
		return g.Ack(c.Request.Context(), sessionId)
	}, guard)
}

// GuardStateHandler serves GET /api/raz/state: the guard row for today plus
// what the reset screen needs to decide whether to prompt.
func GuardStateHandler(guard *Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionId, ok := activeSessionId(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		state, err := guard.state(ctx, sessionId)
		if err != nil {
			writeGuardError(c, err)
			return
		}
		needsPrompt, err := guard.NeedsAckPrompt(ctx, sessionId)
		if err != nil {
			writeGuardError(c, err)
			return
		}
		mode, err := models.GetGuardMode(ctx)
		if err != nil {
			writeGuardError(c, err)
			return
		}
		cutoff, err := models.GetLastRAZCutoff(ctx)
		if err != nil {
			writeGuardError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"state":            state,
			"needs_ack_prompt": needsPrompt,
			"mode":             mode,
			"last_raz_cutoff":  cutoff,
		})
	}
}

func GuardModeHandler(guard *Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input modeRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		sessionId, ok := activeSessionId(c)
		if !ok {
			return
		}
		if err := guard.SetMode(c.Request.Context(), sessionId, input.Mode); err != nil {
			writeGuardError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"mode": input.Mode})
	}
}

func DailyResetHandler(resetter *Resetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input pinRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		sessionId, ok := activeSessionId(c)
		if !ok {
			return
		}
		if err := resetter.ExecuteDailyReset(c.Request.Context(), sessionId, input.Pin); err != nil {
			writeGuardError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"executed": true})
	}
}

func EndOfSessionResetHandler(resetter *Resetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input pinRequest
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		sessionId, ok := activeSessionId(c)
		if !ok {
			return
		}
		if err := resetter.ExecuteEndOfSessionReset(c.Request.Context(), sessionId, input.Pin); err != nil {
			writeGuardError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"executed": true, "session_closed": true})
	}
}

func GetSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := models.GetActiveSession(c.Request.Context())
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no open session"})
				return
			}
			config.LogError(config.GetLogger(), "workflow", "GetSessionHandler", "load", "", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

func OpenSessionHandler(publish func(*gin.Context, models.Session)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSession
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		session, err := models.OpenSession(c.Request.Context(), &input)
		if err != nil {
			if utils.IsValidationError(err) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			config.LogError(config.GetLogger(), "workflow", "OpenSessionHandler", "open", input.EventName, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open session"})
			return
		}
		if publish != nil {
			publish(c, *session)
		}
		c.JSON(http.StatusCreated, session)
	}
}

func CloseSessionHandler(publish func(*gin.Context, models.Session)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		active, err := models.GetActiveSession(ctx)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusConflict, gin.H{"error": "no open session"})
				return
			}
			config.LogError(config.GetLogger(), "workflow", "CloseSessionHandler", "load", "", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to close session"})
			return
		}

		totals, err := sessionClosingTotals(ctx, active)
		if err != nil {
			config.LogError(config.GetLogger(), "workflow", "CloseSessionHandler", "totals", active.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to close session"})
			return
		}
		session, err := models.CloseSession(ctx, totals)
		if err != nil {
			config.LogError(config.GetLogger(), "workflow", "CloseSessionHandler", "close", active.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to close session"})
			return
		}
		if publish != nil {
			publish(c, *session)
		}
		c.JSON(http.StatusOK, session)
	}
}
