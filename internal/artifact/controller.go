// Package artifact decides whether a document's rendered PDF can be
// reused or must be regenerated, based on its content fingerprint.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/doklady/internal/config"
	"github.com/smallbiznis/doklady/internal/document/domain"
	"github.com/smallbiznis/doklady/internal/document/fingerprint"
	"github.com/smallbiznis/doklady/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	// ErrRender wraps renderer collaborator failures.
	ErrRender = errors.New("render_failed")
	// ErrRenderTimeout is returned when the renderer exceeds its
	// budget. Cache state is left untouched so a retry is safe.
	ErrRenderTimeout = errors.New("render_timeout")
)

// Renderer is the external renderer collaborator.
type Renderer interface {
	Render(ctx context.Context, doc CanonicalDocument) ([]byte, error)
}

// Handle points at a rendered artifact.
type Handle struct {
	Ref         string
	Fingerprint string
	FromCache   bool
}

type ControllerParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Config   config.Config
	Renderer Renderer
	Store    Store
	Metrics  *metrics.Recorder `optional:"true"`
}

// Controller serves artifacts, regenerating only when the stored
// fingerprint no longer matches the document's live content.
type Controller struct {
	db       *gorm.DB
	log      *zap.Logger
	supplier config.Supplier
	timeout  time.Duration
	renderer Renderer
	store    Store
	metrics  *metrics.Recorder

	group singleflight.Group
}

func NewController(p ControllerParam) *Controller {
	return &Controller{
		db:       p.DB,
		log:      p.Log.Named("artifact.controller"),
		supplier: p.Config.Supplier,
		timeout:  p.Config.Artifact.RenderTimeout,
		renderer: p.Renderer,
		store:    p.Store,
		metrics:  p.Metrics,
	}
}

// Get returns the artifact handle for a document, rendering if the
// cached artifact is absent, stale, or force is set. Concurrent calls
// for the same document collapse into a single render.
func (c *Controller) Get(ctx context.Context, documentID string, force bool) (Handle, error) {
	docID, err := snowflake.ParseString(documentID)
	if err != nil {
		return Handle{}, domain.ErrDocumentNotFound
	}

	// Keyed by document alone so at most one render per document is in
	// flight, forced or not.
	key := docID.String()
	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.resolve(ctx, docID, force)
	})
	if err != nil {
		return Handle{}, err
	}
	handle := v.(Handle)

	// A forced call collapsed into another caller's cache hit has not
	// rendered anything yet; resolve again on its own terms.
	if force && shared && handle.FromCache {
		v, err, _ = c.group.Do(key, func() (any, error) {
			return c.resolve(ctx, docID, true)
		})
		if err != nil {
			return Handle{}, err
		}
		handle = v.(Handle)
	}
	return handle, nil
}

// Read resolves a handle to the artifact bytes.
func (c *Controller) Read(ref string) ([]byte, error) {
	return c.store.Read(ref)
}

func (c *Controller) resolve(ctx context.Context, docID snowflake.ID, force bool) (Handle, error) {
	var doc domain.Document
	if err := c.db.WithContext(ctx).First(&doc, "id = ?", docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Handle{}, domain.ErrDocumentNotFound
		}
		return Handle{}, err
	}

	var items []domain.LineItem
	if err := c.db.WithContext(ctx).
		Where("document_id = ?", doc.ID).
		Order("position ASC, id ASC").
		Find(&items).Error; err != nil {
		return Handle{}, err
	}

	live := fingerprint.Sum(c.supplier, &doc, items)
	if !force &&
		doc.ArtifactRef != nil &&
		doc.ContentFingerprint != nil &&
		*doc.ContentFingerprint == live {
		c.metrics.CacheHit()
		return Handle{Ref: *doc.ArtifactRef, Fingerprint: live, FromCache: true}, nil
	}

	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pdf, err := c.renderer.Render(rctx, Canonical(c.supplier, &doc, items))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(rctx.Err(), context.DeadlineExceeded) {
			c.metrics.Render("timeout")
			return Handle{}, ErrRenderTimeout
		}
		c.metrics.Render("error")
		return Handle{}, fmt.Errorf("%w: %v", ErrRender, err)
	}

	ref, err := c.store.Put(fmt.Sprintf("%s-%s.pdf", doc.DisplayNumber, uuid.NewString()), pdf)
	if err != nil {
		return Handle{}, err
	}

	if err := c.db.WithContext(ctx).Model(&domain.Document{}).
		Where("id = ?", doc.ID).
		Updates(map[string]any{
			"artifact_ref":        ref,
			"content_fingerprint": live,
			"updated_at":          time.Now().UTC(),
		}).Error; err != nil {
		return Handle{}, err
	}

	c.metrics.Render("ok")
	c.log.Info("artifact rendered",
		zap.String("document_id", doc.ID.String()),
		zap.String("number", doc.DisplayNumber),
		zap.String("ref", ref),
		zap.Bool("forced", force),
	)
	return Handle{Ref: ref, Fingerprint: live}, nil
}
