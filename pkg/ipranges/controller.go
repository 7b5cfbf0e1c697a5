package ipranges

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloudprefix/ipranges/pkg/apiresponses"
	"github.com/cloudprefix/ipranges/pkg/cache"
	"github.com/cloudprefix/ipranges/pkg/ratelimit"
	"github.com/cloudprefix/ipranges/pkg/snapshot"
	"github.com/cloudprefix/ipranges/pkg/syncer"
	"github.com/cloudprefix/ipranges/pkg/version"
)

// notReadyRetrySeconds is the retry hint returned while no snapshot exists.
const notReadyRetrySeconds = 30

// SnapshotStore is the cache surface the controller reads from.
type SnapshotStore interface {
	Get(ctx context.Context) (snapshot.Snapshot, error)
	Info(ctx context.Context) cache.Info
	Clear(ctx context.Context)
}

// SyncControl is the sync surface exposed to operational callers.
type SyncControl interface {
	Trigger(ctx context.Context) syncer.TriggerResult
	Status() syncer.Status
}

// Controller serves the dataset and its operational endpoints.
type Controller struct {
	log     *zap.SugaredLogger
	store   SnapshotStore
	sync    SyncControl
	limiter *ratelimit.Limiter
}

// NewController creates the ip-ranges API controller. The limiter gates only
// the dataset read; status and sync stay reachable for operators even when a
// client is throttled.
func NewController(log *zap.SugaredLogger, store SnapshotStore, sync SyncControl, limiter *ratelimit.Limiter) *Controller {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{log: log, store: store, sync: sync, limiter: limiter}
}

func (ctl *Controller) BasePath() string { return "ip-ranges" }

func (ctl *Controller) Handlers() []gin.HandlerFunc { return nil }

func (ctl *Controller) Register(rg *gin.RouterGroup) error {
	rg.GET("", ctl.limiter.Middleware(), ctl.getRanges)
	rg.GET("/status", ctl.getStatus)
	rg.POST("/sync", ctl.postSync)
	rg.DELETE("/cache", ctl.deleteCache)
	return nil
}

// getRanges returns the cached upstream document, optionally filtered by
// region, service or address family. Without a snapshot it answers 503 with
// a retry hint instead of blocking until a sync completes.
func (ctl *Controller) getRanges(c *gin.Context) {
	snap, err := ctl.store.Get(c.Request.Context())
	if err != nil {
		if errors.Is(err, cache.ErrNotPresent) {
			apiresponses.RespondNotReady(c, notReadyRetrySeconds)
			return
		}
		apiresponses.RespondInternalError(c, "read snapshot", err, ctl.log)
		return
	}

	doc := filterDocument(snap.Document,
		c.Query("region"),
		c.Query("service"),
		strings.ToLower(c.Query("family")),
	)

	c.Header("X-Sync-Token", snap.SyncToken)
	apiresponses.RespondOK(c, doc)
}

func (ctl *Controller) getStatus(c *gin.Context) {
	info := ctl.store.Info(c.Request.Context())
	apiresponses.RespondOK(c, gin.H{
		"cache": info,
		"sync":  ctl.sync.Status(),
		"rateLimit": gin.H{
			"trackedClients": ctl.limiter.Len(),
			"maxRequests":    ctl.limiter.Config().Max,
			"windowSeconds":  int(ctl.limiter.Config().Window.Seconds()),
		},
		"build": version.GetBuildInfo(),
	})
}

func (ctl *Controller) postSync(c *gin.Context) {
	res := ctl.sync.Trigger(c.Request.Context())
	if !res.Success {
		c.JSON(http.StatusInternalServerError, res)
		return
	}
	apiresponses.RespondOK(c, res)
}

func (ctl *Controller) deleteCache(c *gin.Context) {
	ctl.store.Clear(c.Request.Context())
	ctl.log.Infow("Cache cleared via API")
	apiresponses.RespondOK(c, gin.H{"cleared": true})
}

// filterDocument returns a copy of doc narrowed to the given region, service
// and family. Empty filters keep everything.
func filterDocument(doc snapshot.Document, region, service, family string) snapshot.Document {
	out := snapshot.Document{
		SyncToken:    doc.SyncToken,
		CreateDate:   doc.CreateDate,
		Prefixes:     []snapshot.Prefix{},
		IPv6Prefixes: []snapshot.IPv6Prefix{},
	}
	if family != "ipv6" {
		for _, p := range doc.Prefixes {
			if (region == "" || p.Region == region) && (service == "" || p.Service == service) {
				out.Prefixes = append(out.Prefixes, p)
			}
		}
	}
	if family != "ipv4" {
		for _, p := range doc.IPv6Prefixes {
			if (region == "" || p.Region == region) && (service == "" || p.Service == service) {
				out.IPv6Prefixes = append(out.IPv6Prefixes, p)
			}
		}
	}
	return out
}
