package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	projectUC "github.com/khoahotran/openforge/internal/application/usecase/project"
	"github.com/khoahotran/openforge/internal/application/usecase/resolve"
	"github.com/khoahotran/openforge/internal/domain/project"
	"github.com/khoahotran/openforge/pkg/apperror"
	"github.com/khoahotran/openforge/pkg/logger"
)

type ProjectHandler struct {
	createProjectUseCase *projectUC.CreateProjectUseCase
	updateProjectUseCase *projectUC.UpdateProjectUseCase
	setStatusUseCase     *projectUC.SetStatusUseCase
	feedUseCase          *resolve.FeedUseCase
	resolver             *resolve.Resolver
	session              SessionFunc
	logger               logger.Logger
}

func NewProjectHandler(
	createUC *projectUC.CreateProjectUseCase,
	updateUC *projectUC.UpdateProjectUseCase,
	setStatusUC *projectUC.SetStatusUseCase,
	feedUC *resolve.FeedUseCase,
	resolver *resolve.Resolver,
	session SessionFunc,
	log logger.Logger,
) *ProjectHandler {
	return &ProjectHandler{
		createProjectUseCase: createUC,
		updateProjectUseCase: updateUC,
		setStatusUseCase:     setStatusUC,
		feedUseCase:          feedUC,
		resolver:             resolver,
		session:              session,
		logger:               log,
	}
}

func projectIDParam(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperror.NewInvalidInput("invalid project ID", err)
	}
	return id, nil
}

func (h *ProjectHandler) metadataInput(c *gin.Context) (projectUC.MetadataInput, error) {
	var req ProjectRequest
	if err := bindData(c, &req); err != nil {
		return projectUC.MetadataInput{}, err
	}
	cover, err := formImage(c, "cover")
	if err != nil {
		return projectUC.MetadataInput{}, err
	}
	gallery, err := formImages(c, "gallery")
	if err != nil {
		return projectUC.MetadataInput{}, err
	}
	return projectUC.MetadataInput{
		Session:     h.session(),
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		Cover:       cover,
		Gallery:     gallery,
	}, nil
}

func (h *ProjectHandler) CreateProject(c *gin.Context) {
	in, err := h.metadataInput(c)
	if err != nil {
		c.Error(err)
		return
	}
	result, err := h.createProjectUseCase.Execute(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	projectID, err := projectIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}
	in, err := h.metadataInput(c)
	if err != nil {
		c.Error(err)
		return
	}
	result, err := h.updateProjectUseCase.Execute(c.Request.Context(), projectUC.UpdateProjectInput{
		ProjectID:     projectID,
		MetadataInput: in,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ProjectHandler) SetStatus(c *gin.Context) {
	projectID, err := projectIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.NewInvalidInput("status is required", err))
		return
	}
	status, err := project.ParseStatus(req.Status)
	if err != nil {
		c.Error(err)
		return
	}

	out, err := h.setStatusUseCase.Execute(c.Request.Context(), projectUC.SetStatusInput{
		Session:   h.session(),
		ProjectID: projectID,
		Status:    status,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project_id": out.ProjectID,
		"from":       out.From.String(),
		"to":         out.To.String(),
		"tx_hash":    out.TxHash,
	})
}

func (h *ProjectHandler) GetProject(c *gin.Context) {
	projectID, err := projectIDParam(c)
	if err != nil {
		c.Error(err)
		return
	}
	p, err := h.resolver.ResolveProject(c.Request.Context(), projectID)
	if err != nil {
		c.Error(err)
		return
	}
	if p == nil {
		c.Error(apperror.NewNotFound("project", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProjectHandler) ListProjects(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))

	input := resolve.ListProjectsInput{Page: page}
	if raw := c.Query("status"); raw != "" {
		status, err := project.ParseStatus(raw)
		if err != nil {
			c.Error(err)
			return
		}
		input.Status = &status
	}

	output, err := h.feedUseCase.Execute(c.Request.Context(), input)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, output)
}
