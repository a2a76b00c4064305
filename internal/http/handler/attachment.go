package handler

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"volumeapi/internal/apperror"
	"volumeapi/internal/model"
	"volumeapi/internal/service"
)

func attachmentLink(volumeID, attachmentID string) string {
	return volumeLink(volumeID) + "/attachments/" + attachmentID
}

// attachmentsResponse lists the attachments of one volume.
type attachmentsResponse struct {
	Data []model.Attachment `json:"data"`
}

type attachmentResponse struct {
	Data *model.Attachment `json:"data"`
}

// ListAttachments returns every attachment of a volume.
//
// @Summary  List attachments
// @Param    volumeID path string true "volume id"
// @Success  200 {object} attachmentsResponse
// @Failure  404 {object} errorPayload
// @Router   /api/v1/volumes/{volumeID}/attachments/ [get]
func ListAttachments(svc service.VolumeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vid, ok := validID(c, "volumeID")
		if !ok {
			return invalidID(c)
		}
		list, err := svc.ListAttachments(c.UserContext(), vid)
		if err != nil {
			return writeServiceError(c, err)
		}
		if list == nil {
			list = []model.Attachment{}
		}
		return c.JSON(attachmentsResponse{Data: list})
	}
}

// InsertAttachment uploads a file into a volume (multipart/form-data, field name: file).
// An optional metadata field may carry notes.
//
// @Summary  Upload attachment
// @Param    volumeID path     string true  "volume id"
// @Param    file     formData file   true  "attachment bytes"
// @Param    metadata formData string false "metadata JSON object with notes"
// @Success  201 {object} createdResponse
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Router   /api/v1/volumes/{volumeID}/attachments/ [post]
func InsertAttachment(svc service.VolumeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vid, ok := validID(c, "volumeID")
		if !ok {
			return invalidID(c)
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeServiceError(c, apperror.Validation("malformed request", "missing 'file' in request"))
		}
		md, err := readMetadata(c, true)
		if err != nil {
			return writeServiceError(c, err)
		}
		notes, err := stringField(md, "notes")
		if err != nil {
			return writeServiceError(c, err)
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file", "")
		}
		defer f.Close()

		name := SecureFilename(fh.Filename)
		if name == "" {
			name = "attachment"
		}

		a, err := svc.InsertAttachment(c.UserContext(), vid, service.AttachmentUpload{
			Reader: f,
			Name:   name,
			Mime:   fh.Header.Get(fiber.HeaderContentType),
			Notes:  notes,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		link := attachmentLink(vid, a.ID)
		c.Location(link)
		return c.Status(fiber.StatusCreated).JSON(createdResponse{Data: createdRef{ID: a.ID, LinkSelf: link}})
	}
}

func stringField(md model.Metadata, key string) (string, error) {
	v, ok := md[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", apperror.Validation("malformed metadata", fmt.Sprintf("'%s' should be a string", key))
	}
	return s, nil
}

// GetAttachment returns the metadata of one attachment.
//
// @Summary  Get attachment
// @Param    volumeID     path string true "volume id"
// @Param    attachmentID path string true "attachment id"
// @Success  200 {object} attachmentResponse
// @Failure  404 {object} errorPayload
// @Router   /api/v1/volumes/{volumeID}/attachments/{attachmentID} [get]
func GetAttachment(svc service.VolumeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vid, ok := validID(c, "volumeID")
		if !ok {
			return invalidID(c)
		}
		aid, ok := validID(c, "attachmentID")
		if !ok {
			return invalidID(c)
		}
		a, err := svc.GetAttachment(c.UserContext(), vid, aid)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(attachmentResponse{Data: a})
	}
}

// GetAttachmentFile streams the attachment bytes with the stored MIME type.
//
// @Summary  Download attachment
// @Param    volumeID     path string true "volume id"
// @Param    attachmentID path string true "attachment id"
// @Success  200 {file} binary
// @Failure  404 {object} errorPayload
// @Router   /api/v1/volumes/{volumeID}/attachments/{attachmentID}/file [get]
func GetAttachmentFile(svc service.VolumeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vid, ok := validID(c, "volumeID")
		if !ok {
			return invalidID(c)
		}
		aid, ok := validID(c, "attachmentID")
		if !ok {
			return invalidID(c)
		}
		rc, a, err := svc.GetAttachmentFile(c.UserContext(), vid, aid)
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, a.Mime)
		c.Set(fiber.HeaderContentDisposition, "attachment; filename="+strconv.Quote(a.Name))
		// fasthttp closes rc once the body has been written.
		return c.SendStream(rc, int(a.Size))
	}
}

// UpdateAttachment merges name, mime and notes into the attachment metadata.
//
// @Summary  Update attachment
// @Param    volumeID     path     string true "volume id"
// @Param    attachmentID path     string true "attachment id"
// @Param    metadata     formData string true "metadata JSON object"
// @Success  200 {object} messageResponse
// @Failure  400 {object} errorPayload
// @Router   /api/v1/volumes/{volumeID}/attachments/{attachmentID} [put]
func UpdateAttachment(svc service.VolumeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vid, ok := validID(c, "volumeID")
		if !ok {
			return invalidID(c)
		}
		aid, ok := validID(c, "attachmentID")
		if !ok {
			return invalidID(c)
		}
		md, err := readMetadata(c, false)
		if err != nil {
			return writeServiceError(c, err)
		}
		if _, err := svc.UpdateAttachment(c.UserContext(), vid, aid, md); err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(messageResponse{Code: fiber.StatusOK, Message: "Attachment updated"})
	}
}

// DeleteAttachment removes an attachment and its file.
//
// @Summary  Delete attachment
// @Param    volumeID     path string true "volume id"
// @Param    attachmentID path string true "attachment id"
// @Success  200 {object} messageResponse
// @Failure  404 {object} errorPayload
// @Router   /api/v1/volumes/{volumeID}/attachments/{attachmentID} [delete]
func DeleteAttachment(svc service.VolumeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vid, ok := validID(c, "volumeID")
		if !ok {
			return invalidID(c)
		}
		aid, ok := validID(c, "attachmentID")
		if !ok {
			return invalidID(c)
		}
		if err := svc.DeleteAttachment(c.UserContext(), vid, aid); err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(messageResponse{Code: fiber.StatusOK, Message: "Attachment deleted"})
	}
}
