package handlers

import (
	"github.com/camwatch/backend/internal/application"
	"github.com/camwatch/backend/internal/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// CameraHandler handles HTTP requests for cameras and camera access
type CameraHandler struct {
	service *application.CameraService
	access  *application.CameraAccessService
}

// NewCameraHandler creates a new camera handler
func NewCameraHandler(service *application.CameraService, access *application.CameraAccessService) *CameraHandler {
	return &CameraHandler{service: service, access: access}
}

// CameraRequest represents camera create and update requests
type CameraRequest struct {
	Name      string  `json:"name" validate:"omitempty,max=120"`
	Location  string  `json:"location" validate:"omitempty,max=240"`
	StreamURL string  `json:"stream_url" validate:"omitempty,url"`
	Username  string  `json:"username"`
	Password  *string `json:"password,omitempty"`
}

func (r CameraRequest) input() application.CameraInput {
	return application.CameraInput{
		Name:      r.Name,
		Location:  r.Location,
		StreamURL: r.StreamURL,
		Username:  r.Username,
		Password:  r.Password,
	}
}

// CameraStatusRequest represents a status report for one camera
type CameraStatusRequest struct {
	Status    domain.CameraStatus `json:"status" validate:"required,oneof=online offline error"`
	Recording bool                `json:"recording"`
}

// AssignCamerasRequest is the full desired grant set for a user
type AssignCamerasRequest struct {
	CameraIDs []uuid.UUID `json:"camera_ids"`
}

// List returns the cameras the caller may see
func (h *CameraHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return fail(c, err)
	}

	cameras, err := h.access.GetAccessibleCameras(c.UserContext(), p.UserID, p.Role)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"data": cameras,
	})
}

// Get returns a single camera if the caller may see it
func (h *CameraHandler) Get(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return fail(c, err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	cameras, err := h.access.GetAccessibleCameras(c.UserContext(), p.UserID, p.Role)
	if err != nil {
		return fail(c, err)
	}
	for _, camera := range cameras {
		if camera.ID == id {
			return c.JSON(fiber.Map{
				"data": camera,
			})
		}
	}

	// cameras outside the caller's grants look the same as missing ones
	return fail(c, domain.ErrCameraNotFound)
}

// Create creates a new camera
func (h *CameraHandler) Create(c *fiber.Ctx) error {
	var req CameraRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	camera, err := h.service.CreateCamera(c.UserContext(), req.input())
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data": camera,
	})
}

// Update updates an existing camera
func (h *CameraHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	var req CameraRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	camera, err := h.service.UpdateCamera(c.UserContext(), id, req.input())
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"data": camera,
	})
}

// Delete removes a camera
func (h *CameraHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	if err := h.service.DeleteCamera(c.UserContext(), id); err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "camera deleted",
	})
}

// UpdateStatus records connection and recording state
func (h *CameraHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	var req CameraStatusRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	if err := h.service.UpdateStatus(c.UserContext(), id, req.Status, req.Recording); err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"id":        id,
			"status":    req.Status,
			"recording": req.Recording,
		},
	})
}

// UserCameras lists the camera ids granted to the user in the path
func (h *CameraHandler) UserCameras(c *fiber.Ctx) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	ids, err := h.access.GetUserAssignedCameras(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"data": ids,
	})
}

// AssignCameras replaces the user's grants with the requested set
func (h *CameraHandler) AssignCameras(c *fiber.Ctx) error {
	actor, err := principal(c)
	if err != nil {
		return fail(c, err)
	}
	userID, err := parseID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	var req AssignCamerasRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	result, err := h.access.AssignCamerasToUser(c.UserContext(), actor, userID, req.CameraIDs)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"data": result,
	})
}
