package handler

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"volumeapi/internal/apperror"
	"volumeapi/internal/model"
	"volumeapi/internal/service"
	"volumeapi/internal/validator"
)

const (
	volumesPath   = "/api/v1/volumes"
	matchAllQuery = "*:*"
)

// queryResponse is one page of search results.
type queryResponse struct {
	LinkPrev string         `json:"link_prev"`
	LinkNext string         `json:"link_next"`
	Total    int            `json:"total"`
	Data     []model.Volume `json:"data"`
}

type volumeResponse struct {
	Data *model.Volume `json:"data"`
}

type createdRef struct {
	ID       string `json:"id"`
	LinkSelf string `json:"link_self"`
}

// createdResponse is returned by every POST that creates a resource.
type createdResponse struct {
	Data createdRef `json:"data"`
}

// messageResponse acknowledges an update or delete.
type messageResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func volumeLink(id string) string {
	return volumesPath + "/" + id
}

// pageLink echoes the query back, spelling an absent one as the match-all expression.
func pageLink(q string, from, size int) string {
	if q == "" {
		q = matchAllQuery
	}
	v := url.Values{}
	v.Set("q", q)
	v.Set("from", strconv.Itoa(from))
	v.Set("size", strconv.Itoa(size))
	return volumesPath + "/?" + v.Encode()
}

// validID rejects ids that cannot name a stored resource before any backend is touched.
func validID(c *fiber.Ctx, param string) (string, bool) {
	id := c.Params(param)
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func invalidID(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format", "")
}

// queryInt reads a non-negative integer query parameter; a missing one yields 0.
func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Validation("malformed request", "'"+key+"' must be an integer")
	}
	return n, nil
}

// readMetadata takes the metadata document from a form field or a JSON body.
func readMetadata(c *fiber.Ctx, optional bool) (model.Metadata, error) {
	raw := c.FormValue("metadata")
	if raw == "" && strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) && len(c.Body()) > 0 {
		var body struct {
			Metadata json.RawMessage `json:"metadata"`
		}
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return nil, apperror.Validation("malformed request", "request body should be a json object")
		}
		raw = string(body.Metadata)
	}
	return validator.Parse(raw, optional)
}

// ListVolumes runs a search and returns one page of volumes.
//
// @Summary  Search volumes
// @Param    q     query string false "query expression, empty or *:* matches all"
// @Param    from  query int    false "offset"
// @Param    size  query int    false "page size"
// @Success  200 {object} queryResponse
// @Failure  400 {object} errorPayload
// @Failure  413 {object} errorPayload
// @Router   /api/v1/volumes/ [get]
func ListVolumes(svc service.VolumeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, err := queryInt(c, "from")
		if err != nil {
			return writeServiceError(c, err)
		}
		size, err := queryInt(c, "size")
		if err != nil {
			return writeServiceError(c, err)
		}
		q := c.Query("q")

		res, err := svc.Query(c.UserContext(), service.QueryRequest{Expr: q, From: from, Size: size})
		if err != nil {
			return writeServiceError(c, err)
		}

		out := queryResponse{
			LinkPrev: pageLink(q, res.Prev, res.Size),
			LinkNext: pageLink(q, res.Next, res.Size),
			Total:    res.Total,
			Data:     res.Volumes,
		}
		if out.Data == nil {
			out.Data = []model.Volume{}
		}
		return c.JSON(out)
	}
}

// InsertVolume creates a volume from the submitted metadata.
//
// @Summary  Create volume
// @Param    metadata formData string true "metadata JSON object, must carry _language"
// @Success  201 {object} createdResponse
// @Failure  400 {object} errorPayload
// @Router   /api/v1/volumes/ [post]
func InsertVolume(svc service.VolumeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		md, err := readMetadata(c, false)
		if err != nil {
			return writeServiceError(c, err)
		}
		v, err := svc.InsertVolume(c.UserContext(), md)
		if err != nil {
			return writeServiceError(c, err)
		}
		link := volumeLink(v.ID)
		c.Location(link)
		return c.Status(fiber.StatusCreated).JSON(createdResponse{Data: createdRef{ID: v.ID, LinkSelf: link}})
	}
}

// GetVolume returns a volume with its attachments.
//
// @Summary  Get volume
// @Param    volumeID path string true "volume id"
// @Success  200 {object} volumeResponse
// @Failure  404 {object} errorPayload
// @Router   /api/v1/volumes/{volumeID} [get]
func GetVolume(svc service.VolumeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := validID(c, "volumeID")
		if !ok {
			return invalidID(c)
		}
		v, err := svc.GetVolume(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(volumeResponse{Data: v})
	}
}

// UpdateVolume merges the submitted metadata into the volume, or replaces it with ?replace=true.
//
// @Summary  Update volume
// @Param    volumeID path     string true  "volume id"
// @Param    replace  query    bool   false "replace instead of merge"
// @Param    metadata formData string true  "metadata JSON object"
// @Success  201 {object} messageResponse
// @Failure  503 {object} errorPayload
// @Router   /api/v1/volumes/{volumeID} [put]
func UpdateVolume(svc service.VolumeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := validID(c, "volumeID")
		if !ok {
			return invalidID(c)
		}
		md, err := readMetadata(c, false)
		if err != nil {
			return writeServiceError(c, err)
		}
		replace := c.QueryBool("replace", false)
		if _, err := svc.UpdateVolume(c.UserContext(), id, md, replace); err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(messageResponse{Code: fiber.StatusCreated, Message: "Volume updated"})
	}
}

// DeleteVolume removes a volume, its attachments and their files.
//
// @Summary  Delete volume
// @Param    volumeID path string true "volume id"
// @Success  200 {object} messageResponse
// @Failure  404 {object} errorPayload
// @Router   /api/v1/volumes/{volumeID} [delete]
func DeleteVolume(svc service.VolumeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := validID(c, "volumeID")
		if !ok {
			return invalidID(c)
		}
		if err := svc.DeleteVolume(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(messageResponse{Code: fiber.StatusOK, Message: "Volume deleted"})
	}
}
