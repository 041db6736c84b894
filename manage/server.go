package manage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/klog/v2"

	"github.com/ez-pie/ez-workspace/kubernetes"
	"github.com/ez-pie/ez-workspace/schemas"
)

const shutdownTimeout = 10 * time.Second

// NewRouter exposes m over HTTP.
func NewRouter(m *Manager) *gin.Engine {
	r := gin.Default()

	// router group: workspace
	w1 := r.Group("/workspace")
	{
		w1.POST("/render", m.handleRender)
		w1.POST("/deploy", m.handleDeploy)
		w1.GET("/list", m.handleList)
		w1.GET("/get/:namespace/:name", m.handleGet)
		w1.POST("/suspend/:namespace/:name", m.handleScale(m.Suspend))
		w1.POST("/resume/:namespace/:name", m.handleScale(m.Resume))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ez-workspace is running"})
	})
	return r
}

// Serve runs the HTTP server on addr until ctx is done.
func Serve(ctx context.Context, addr string, m *Manager) error {
	logger := klog.FromContext(ctx)
	srv := &http.Server{Addr: addr, Handler: NewRouter(m)}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func bindWorkspace(c *gin.Context) (*schemas.WorkspaceSpec, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	ws, err := schemas.ParseWorkspace(body)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return ws, true
}

func (m *Manager) handleRender(c *gin.Context) {
	ws, ok := bindWorkspace(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := m.Render(&buf, ws); err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/yaml", buf.Bytes())
}

type deployQuery struct {
	Rotate bool `form:"rotate"`
}

type listQuery struct {
	Namespace string `form:"namespace"`
	Offset    int    `form:"offset,default=0" binding:"min=0"`
	Limit     int    `form:"limit,default=100" binding:"min=1"`
}

func (m *Manager) handleDeploy(c *gin.Context) {
	var q deployQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ws, ok := bindWorkspace(c)
	if !ok {
		return
	}

	graph, err := m.Deploy(c.Request.Context(), ws, q.Rotate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"workspace": ws.Name,
		"namespace": ws.Namespace,
		"host":      graph.PrimaryHost,
		"objects":   len(graph.Objects),
	})
}

func (m *Manager) handleList(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deployments, err := m.List(c.Request.Context(), q.Namespace, q.Offset, q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deployments)
}

func (m *Manager) handleGet(c *gin.Context) {
	d, err := m.Latest(c.Request.Context(), c.Param("namespace"), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "workspace was never deployed"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (m *Manager) handleScale(scale func(ctx context.Context, namespace, name string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := scale(c.Request.Context(), c.Param("namespace"), c.Param("name")); err != nil {
			respondError(c, err)
			return
		}
		c.Writer.WriteHeader(http.StatusOK)
	}
}

func respondError(c *gin.Context, err error) {
	var (
		validationErr  *schemas.ValidationError
		compositionErr *kubernetes.CompositionError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr), errors.As(err, &compositionErr):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNoCluster), errors.Is(err, ErrNoLedger):
		status = http.StatusServiceUnavailable
	case apierrors.IsNotFound(err):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		klog.FromContext(c.Request.Context()).Error(err, "Request failed", "path", c.FullPath())
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
