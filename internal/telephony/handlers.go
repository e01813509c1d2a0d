package telephony

import (
	"errors"
	"fmt"
	"net/http"

	"callcenter-platform/internal/config"
	"callcenter-platform/internal/directory"
	"callcenter-platform/internal/queue"
	"callcenter-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Gateway handles the unauthenticated provider callback surface.
//
// Failure policy: these handlers must never answer with something the
// provider cannot parse. A transient store failure on an inbound call still
// returns hold markup so the caller is not dropped silently; status and
// recording callbacks are always acknowledged with 200 so the provider does
// not retry forever.
type Gateway struct {
	Queue    *queue.Service
	Numbers  directory.Resolver
	Cap      CapGuard // optional; inbound cap disabled when nil
	Provider config.ProviderConfig
}

const waitPath = "/webhooks/provider/wait"

// HandleIncoming answers the provider's new-call event with markup that
// either enqueues the caller, rejects an unmapped number, or refuses an
// over-cap burst as busy.
func (g *Gateway) HandleIncoming(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseIncoming(c.Request)
	if err != nil {
		log.Warn("incoming webhook parse failed", "err", err)
		respondXML(c, RenderHangup())
		return
	}

	// Resolve before ingest so the cap check can refuse without writing.
	num, err := g.Numbers.ResolveNumber(c.Request.Context(), form.To)
	if errors.Is(err, directory.ErrNumberNotFound) {
		log.Warn("call to unconfigured number", "to", form.To, "call_sid", form.CallSid)
		respondXML(c, RenderReject("rejected"))
		return
	}
	if err != nil {
		log.Error("number resolution failed", "to", form.To, "err", err)
		respondXML(c, RenderWait(g.Provider.WaitGreeting, g.Provider.HoldMusicURL))
		return
	}

	capHeld := false
	if g.Cap != nil {
		ok, capErr := g.Cap.Acquire(c.Request.Context(), num.BusinessID)
		if capErr != nil {
			// Cap is a guard, not a correctness mechanism; admit on failure.
			log.Warn("inbound cap check failed", "business_id", num.BusinessID, "err", capErr)
		} else if !ok {
			log.Warn("inbound cap reached", "business_id", num.BusinessID, "call_sid", form.CallSid)
			respondXML(c, RenderReject("busy"))
			return
		} else {
			capHeld = true
		}
	}

	entry, created, err := g.Queue.IngestInboundCall(c.Request.Context(), queue.InboundCall{
		CallerPhone:    form.From,
		CalledNumber:   form.To,
		ProviderCallID: form.CallSid,
		CallerName:     form.CallerName,
	})
	if errors.Is(err, queue.ErrNotConfigured) {
		respondXML(c, RenderReject("rejected"))
		return
	}
	if err != nil {
		// Keep the caller on the line; agents can still pick up once the
		// store recovers and the provider retries.
		log.Error("inbound ingest failed", "call_sid", form.CallSid, "err", err)
		respondXML(c, RenderWait(g.Provider.WaitGreeting, g.Provider.HoldMusicURL))
		return
	}

	// A retried webhook reuses the live entry, which already holds a cap
	// slot from its first delivery. Give this one back.
	if capHeld && !created {
		if rerr := g.Cap.Release(c.Request.Context(), num.BusinessID); rerr != nil {
			log.Warn("inbound cap release failed", "business_id", num.BusinessID, "err", rerr)
		}
	}

	respondXML(c, RenderEnqueue(queueNameFor(entry.BusinessID), waitPath))
}

// HandleWait answers the provider's hold-loop fetch.
func (g *Gateway) HandleWait(c *gin.Context) {
	respondXML(c, RenderWait(g.Provider.WaitGreeting, g.Provider.HoldMusicURL))
}

// HandleStatus ingests provider call-status callbacks. Always acknowledged;
// a failed lookup is logged, not surfaced, because the provider would retry
// an error response against an entry that may never exist.
func (g *Gateway) HandleStatus(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseStatus(c.Request)
	if err != nil {
		log.Warn("status webhook parse failed", "err", err)
		c.JSON(http.StatusOK, gin.H{"received": false})
		return
	}

	entry, err := g.Queue.IngestStatusCallback(c.Request.Context(), form.CallSid, form.CallStatus, form.CallDuration)
	if err != nil {
		log.Warn("status ingest failed", "call_sid", form.CallSid, "status", form.CallStatus, "err", err)
		c.JSON(http.StatusOK, gin.H{"received": false})
		return
	}

	if g.Cap != nil && entry.Status.IsTerminal() {
		if rerr := g.Cap.Release(c.Request.Context(), entry.BusinessID); rerr != nil {
			log.Warn("inbound cap release failed", "business_id", entry.BusinessID, "err", rerr)
		}
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// HandleRecording attaches a recording reference to the call's history.
// Recording callbacks may arrive before status callbacks; a missing history
// row is acknowledged and dropped.
func (g *Gateway) HandleRecording(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseRecording(c.Request)
	if err != nil {
		log.Warn("recording webhook parse failed", "err", err)
		c.JSON(http.StatusOK, gin.H{"received": false})
		return
	}

	if err := g.Queue.AttachRecording(c.Request.Context(), form.CallSid, form.RecordingURL, form.RecordingDuration); err != nil {
		log.Warn("recording attach failed", "call_sid", form.CallSid, "err", err)
		c.JSON(http.StatusOK, gin.H{"received": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func respondXML(c *gin.Context, body string) {
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, body)
}

func queueNameFor(businessID string) string {
	return fmt.Sprintf("business-%s", businessID)
}
