package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/zulandar/taskyard/internal/errs"
	"github.com/zulandar/taskyard/internal/filter"
	"github.com/zulandar/taskyard/internal/page"
	"github.com/zulandar/taskyard/internal/task"
)

// registerRoutes sets up every API route on the gin router.
func registerRoutes(router *gin.Engine, svc *task.Service, authn Authenticator) {
	router.GET("/health", handleHealth())

	tasks := router.Group("/tasks", authenticate(authn))
	tasks.POST("", handleCreateTask(svc))
	tasks.GET("", handleListTasks(svc))
	tasks.POST("/search", handleSearchTasks(svc))
	tasks.POST("/bulk-update", handleBulkUpdate(svc))
	tasks.GET("/:id", handleGetTask(svc))
	tasks.PUT("/:id", handleUpdateTask(svc))
	tasks.DELETE("/:id", handleDeleteTask(svc))
	tasks.POST("/:id/subtasks", handleCreateSubtask(svc))

	tasks.GET("/:id/assignments", handleListAssignments(svc))
	tasks.POST("/:id/assignments", handleAssign(svc))
	tasks.DELETE("/:id/assignments/:user_id", handleUnassign(svc))

	tasks.GET("/:id/dependencies", handleListDependencies(svc))
	tasks.POST("/:id/dependencies", handleAddDependency(svc))
	tasks.DELETE("/:id/dependencies/:dep_id", handleRemoveDependency(svc))
	tasks.GET("/:id/blocking", handleListDependents(svc))
	tasks.GET("/:id/status", handleBlockingStatus(svc))

	admin := router.Group("/admin", authenticate(authn), requireAdmin())
	admin.POST("/access/invalidate/:user_id", handleInvalidateAccess(svc))
}

// bindStrict decodes the request body into v. Unknown fields are rejected
// because NewRouter turns on binding.EnableDecoderDisallowUnknownFields.
func bindStrict(c *gin.Context, v any) error {
	if err := c.ShouldBindWith(v, binding.JSON); err != nil {
		return fmt.Errorf("api: invalid body: %v: %w", err, errs.ErrValidation)
	}
	return nil
}

// pageParams reads page and size from the query string. Missing values fall
// back to the defaults; out-of-range values are clamped by the paginator.
func pageParams(c *gin.Context) (int, int, error) {
	pageNum, size := 1, page.DefaultSize
	for _, p := range []struct {
		key string
		dst *int
	}{
		{"page", &pageNum},
		{"size", &size},
	} {
		v := c.Query(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("api: %s %q is not an integer: %w", p.key, v, errs.ErrValidation)
		}
		*p.dst = n
	}
	return pageNum, size, nil
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}

func handleCreateTask(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in task.CreateInput
		if err := bindStrict(c, &in); err != nil {
			abortWithError(c, err)
			return
		}
		t, err := svc.Create(c.Request.Context(), callerFrom(c), in)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

func handleListTasks(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := filter.ParseParams(c.Request.URL.Query())
		if err != nil {
			abortWithError(c, err)
			return
		}
		pageNum, size, err := pageParams(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		p, err := svc.List(c.Request.Context(), callerFrom(c), f, pageNum, size)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func handleSearchTasks(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var adv filter.Advanced
		if err := bindStrict(c, &adv); err != nil {
			abortWithError(c, err)
			return
		}
		pageNum, size, err := pageParams(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		p, err := svc.Search(c.Request.Context(), callerFrom(c), adv, pageNum, size)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func handleBulkUpdate(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := task.ParseBulk(c.Request.Body)
		if err != nil {
			abortWithError(c, err)
			return
		}
		results := svc.BulkUpdate(c.Request.Context(), callerFrom(c), items)
		c.JSON(http.StatusOK, gin.H{"results": results})
	}
}

func handleGetTask(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := svc.Get(c.Request.Context(), callerFrom(c), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

func handleUpdateTask(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := task.DecodePatch(c.Request.Body)
		if err != nil {
			abortWithError(c, err)
			return
		}
		u, err := svc.Update(c.Request.Context(), callerFrom(c), c.Param("id"), p)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

func handleDeleteTask(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleCreateSubtask(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in task.CreateInput
		if err := bindStrict(c, &in); err != nil {
			abortWithError(c, err)
			return
		}
		t, err := svc.CreateSubtask(c.Request.Context(), callerFrom(c), c.Param("id"), in)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

func handleListAssignments(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListAssignments(c.Request.Context(), callerFrom(c), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func handleAssign(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in task.AssignInput
		if err := bindStrict(c, &in); err != nil {
			abortWithError(c, err)
			return
		}
		a, err := svc.Assign(c.Request.Context(), callerFrom(c), c.Param("id"), in)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, a)
	}
}

func handleUnassign(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Unassign(c.Request.Context(), callerFrom(c), c.Param("id"), c.Param("user_id")); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleListDependencies(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps, err := svc.ListDependencies(c.Request.Context(), callerFrom(c), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, deps)
	}
}

func handleAddDependency(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in task.DependencyInput
		if err := bindStrict(c, &in); err != nil {
			abortWithError(c, err)
			return
		}
		d, err := svc.AddDependency(c.Request.Context(), callerFrom(c), c.Param("id"), in)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, d)
	}
}

func handleRemoveDependency(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.RemoveDependency(c.Request.Context(), callerFrom(c), c.Param("id"), c.Param("dep_id")); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleListDependents(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps, err := svc.ListDependents(c.Request.Context(), callerFrom(c), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, deps)
	}
}

func handleBlockingStatus(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := svc.BlockingStatus(c.Request.Context(), callerFrom(c), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func handleInvalidateAccess(svc *task.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Guard().InvalidateUser(c.Request.Context(), c.Param("user_id")); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
