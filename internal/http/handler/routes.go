package handler

import (
	"github.com/gofiber/fiber/v2"

	"volumeapi/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers only translate between the wire and the service; unmatched
// paths fall through to ErrorHandler.
func RegisterRoutes(app *fiber.App, svc service.VolumeService) {
	app.Get("/health", HealthCheck(svc))
	app.Get("/healthz", LivenessProbe())

	v1 := app.Group("/api/v1")

	volumes := v1.Group("/volumes")
	volumes.Get("/", ListVolumes(svc))
	volumes.Post("/", InsertVolume(svc))
	volumes.Get("/:volumeID", GetVolume(svc))
	volumes.Put("/:volumeID", UpdateVolume(svc))
	volumes.Delete("/:volumeID", DeleteVolume(svc))

	attachments := volumes.Group("/:volumeID/attachments")
	attachments.Get("/", ListAttachments(svc))
	attachments.Post("/", InsertAttachment(svc))
	attachments.Get("/:attachmentID", GetAttachment(svc))
	attachments.Put("/:attachmentID", UpdateAttachment(svc))
	attachments.Delete("/:attachmentID", DeleteAttachment(svc))
	attachments.Get("/:attachmentID/file", GetAttachmentFile(svc))
}
