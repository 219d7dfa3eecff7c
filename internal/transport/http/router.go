package apihttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"voledge/internal/engine"
	"voledge/internal/ledger"
	"voledge/internal/logger"
	"voledge/internal/store/journal"
	"voledge/internal/types"

	"github.com/gin-gonic/gin"
)

// Router maps the desk API onto the engine and ledger.
type Router struct {
	engine  *engine.Engine
	book    *ledger.Ledger
	regime  ledger.RegimeProvider
	journal *journal.RunJournal
}

func NewRouter(e *engine.Engine, book *ledger.Ledger, regime ledger.RegimeProvider) *Router {
	return &Router{engine: e, book: book, regime: regime}
}

// WithJournal exposes the generation run history on the API.
func (r *Router) WithJournal(j *journal.RunJournal) *Router {
	r.journal = j
	return r
}

// Register mounts the routes under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/tickets/generate", r.handleGenerate)
	group.GET("/tickets", r.handleListTickets)
	group.GET("/tickets/pending", r.handlePending)
	group.GET("/tickets/:id", r.handleTicketByID)
	group.POST("/tickets/:id/approve", r.handleApprove)
	group.POST("/tickets/:id/reject", r.handleReject)
	group.GET("/audit-log", r.handleAuditLog)
	group.GET("/regime", r.handleRegime)
	if r.journal != nil {
		group.GET("/runs", r.handleRuns)
	}
}

type resolveRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

func (r *Router) handleGenerate(c *gin.Context) {
	var req engine.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tickets, err := r.engine.Generate(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrValidation) {
			status = http.StatusBadRequest
		}
		logger.Errorf("[api] generate failed bias=%s err=%v", req.Bias, err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets, "count": len(tickets)})
}

func (r *Router) handleListTickets(c *gin.Context) {
	tickets := r.book.All()
	if state := strings.TrimSpace(c.Query("state")); state != "" {
		filtered := tickets[:0]
		for _, t := range tickets {
			if string(t.State) == state {
				filtered = append(filtered, t)
			}
		}
		tickets = filtered
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets, "count": len(tickets)})
}

func (r *Router) handlePending(c *gin.Context) {
	tickets := r.book.Pending()
	c.JSON(http.StatusOK, gin.H{"tickets": tickets, "count": len(tickets)})
}

func (r *Router) handleTicketByID(c *gin.Context) {
	ticket, err := r.book.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (r *Router) handleApprove(c *gin.Context) {
	var req resolveRequest
	_ = c.ShouldBindJSON(&req)
	actor := defaultActor(req.Actor)

	res, err := r.book.Approve(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		if gb, ok := types.IsGateBlocked(err); ok {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "gate blocked",
				"reasons": gb.Reasons,
			})
			return
		}
		if errors.Is(err, types.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("[api] approve %s failed: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ticket":           res.Ticket,
		"already_resolved": res.AlreadyResolved,
	})
}

func (r *Router) handleReject(c *gin.Context) {
	var req resolveRequest
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.Reason) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}
	actor := defaultActor(req.Actor)

	res, err := r.book.Reject(c.Request.Context(), c.Param("id"), req.Reason, actor)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("[api] reject %s failed: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ticket":           res.Ticket,
		"already_resolved": res.AlreadyResolved,
	})
}

func (r *Router) handleAuditLog(c *gin.Context) {
	entries := r.book.AuditLog()
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func (r *Router) handleRegime(c *gin.Context) {
	snap, err := r.regime.CurrentRegime(c.Request.Context())
	if err != nil {
		logger.Errorf("[api] regime classification failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (r *Router) handleRuns(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	runs, err := r.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("[api] fetching run history failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func defaultActor(actor string) string {
	if actor = strings.TrimSpace(actor); actor != "" {
		return actor
	}
	return "desk"
}
