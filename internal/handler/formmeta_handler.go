package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkv-labs/pps-api/internal/models"
	"github.com/dkv-labs/pps-api/internal/service"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
	"github.com/dkv-labs/pps-api/pkg/response"
)

// FormMetaHandler exposes form metadata administration endpoints.
type FormMetaHandler struct {
	service *service.FormMetaService
}

func NewFormMetaHandler(svc *service.FormMetaService) *FormMetaHandler {
	return &FormMetaHandler{service: svc}
}

// Modules godoc
// @Summary List modules
// @Tags FormMetadata
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /modules [get]
func (h *FormMetaHandler) Modules(c *gin.Context) {
	modules, err := h.service.Modules(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, modules, nil)
}

// CreateModule godoc
// @Summary Create a module
// @Tags FormMetadata
// @Accept json
// @Produce json
// @Param payload body models.Module true "Module payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /modules [post]
func (h *FormMetaHandler) CreateModule(c *gin.Context) {
	var module models.Module
	if !bindJSON(c, &module, "invalid module payload") {
		return
	}
	if err := h.service.CreateModule(c.Request.Context(), &module); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, module)
}

// UpdateModule godoc
// @Summary Update a module
// @Tags FormMetadata
// @Accept json
// @Produce json
// @Param id path int true "Module ID"
// @Param payload body models.Module true "Module payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /modules/{id} [put]
func (h *FormMetaHandler) UpdateModule(c *gin.Context) {
	id, err := paramInt64(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id must be an integer"))
		return
	}
	var module models.Module
	if !bindJSON(c, &module, "invalid module payload") {
		return
	}
	module.ID = id
	if err := h.service.UpdateModule(c.Request.Context(), &module); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, module, nil)
}

// Topics godoc
// @Summary List topics of a module
// @Tags FormMetadata
// @Produce json
// @Param moduleId path int true "Module ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /modules/{moduleId}/topics [get]
func (h *FormMetaHandler) Topics(c *gin.Context) {
	moduleID, err := paramInt64(c, "moduleId")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "moduleId must be an integer"))
		return
	}
	topics, err := h.service.Topics(c.Request.Context(), moduleID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topics, nil)
}

// CreateTopic godoc
// @Summary Create a topic
// @Tags FormMetadata
// @Accept json
// @Produce json
// @Param payload body models.Topic true "Topic payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /topics [post]
func (h *FormMetaHandler) CreateTopic(c *gin.Context) {
	var topic models.Topic
	if !bindJSON(c, &topic, "invalid topic payload") {
		return
	}
	if err := h.service.CreateTopic(c.Request.Context(), &topic); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, topic)
}

// UpdateTopic godoc
// @Summary Update a topic
// @Tags FormMetadata
// @Accept json
// @Produce json
// @Param id path int true "Topic ID"
// @Param payload body models.Topic true "Topic payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /topics/{id} [put]
func (h *FormMetaHandler) UpdateTopic(c *gin.Context) {
	id, err := paramInt64(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id must be an integer"))
		return
	}
	var topic models.Topic
	if !bindJSON(c, &topic, "invalid topic payload") {
		return
	}
	topic.ID = id
	if err := h.service.UpdateTopic(c.Request.Context(), &topic); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, topic, nil)
}

// CreateSubTopic godoc
// @Summary Create a subtopic
// @Tags FormMetadata
// @Accept json
// @Produce json
// @Param payload body models.SubTopic true "SubTopic payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /subtopics [post]
func (h *FormMetaHandler) CreateSubTopic(c *gin.Context) {
	var subTopic models.SubTopic
	if !bindJSON(c, &subTopic, "invalid subtopic payload") {
		return
	}
	if err := h.service.CreateSubTopic(c.Request.Context(), &subTopic); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subTopic)
}

// UpdateSubTopic godoc
// @Summary Update a subtopic
// @Tags FormMetadata
// @Accept json
// @Produce json
// @Param id path int true "SubTopic ID"
// @Param payload body models.SubTopic true "SubTopic payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /subtopics/{id} [put]
func (h *FormMetaHandler) UpdateSubTopic(c *gin.Context) {
	id, err := paramInt64(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id must be an integer"))
		return
	}
	var subTopic models.SubTopic
	if !bindJSON(c, &subTopic, "invalid subtopic payload") {
		return
	}
	subTopic.ID = id
	if err := h.service.UpdateSubTopic(c.Request.Context(), &subTopic); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subTopic, nil)
}

// CreateQuestion godoc
// @Summary Create a question
// @Tags FormMetadata
// @Accept json
// @Produce json
// @Param payload body models.Question true "Question payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /questions [post]
func (h *FormMetaHandler) CreateQuestion(c *gin.Context) {
	var question models.Question
	if !bindJSON(c, &question, "invalid question payload") {
		return
	}
	if err := h.service.CreateQuestion(c.Request.Context(), &question); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, question)
}

// UpdateQuestion godoc
// @Summary Update a question
// @Tags FormMetadata
// @Accept json
// @Produce json
// @Param id path int true "Question ID"
// @Param payload body models.Question true "Question payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /questions/{id} [put]
func (h *FormMetaHandler) UpdateQuestion(c *gin.Context) {
	id, err := paramInt64(c, "id")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "id must be an integer"))
		return
	}
	var question models.Question
	if !bindJSON(c, &question, "invalid question payload") {
		return
	}
	question.ID = id
	if err := h.service.UpdateQuestion(c.Request.Context(), &question); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}
