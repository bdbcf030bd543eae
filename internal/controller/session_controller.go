package controller

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"docchat-be/internal/dto"
	"docchat-be/internal/pkg/serverutils"
	"docchat-be/internal/service"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Ask(ctx *fiber.Ctx) error
}

type sessionController struct {
	ingestionService service.IIngestionService
	chatService      service.IChatService
}

func NewSessionController(ingestionService service.IIngestionService, chatService service.IChatService) ISessionController {
	return &sessionController{
		ingestionService: ingestionService,
		chatService:      chatService,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/sessions")
	h.Post("", c.Create)
	h.Get(":id", c.Status)
	h.Post(":id/ask", c.Ask)
}

// Create ingests a multipart upload into a new session. The files land in
// memory whole; nothing is written to disk.
func (c *sessionController) Create(ctx *fiber.Ctx) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "expected a multipart form upload")
	}

	headers := form.File["files"]
	uploads := make([]dto.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "could not read uploaded file "+fh.Filename)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "could not read uploaded file "+fh.Filename)
		}
		uploads = append(uploads, dto.UploadedFile{
			Filename: fh.Filename,
			Size:     fh.Size,
			Data:     data,
		})
	}

	res, err := c.ingestionService.CreateSession(ctx.Context(), uploads)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create session", res))
}

func (c *sessionController) Status(ctx *fiber.Ctx) error {
	res, err := c.chatService.Status(ctx.Context(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

// Ask answers one question over plain HTTP; the websocket carries the same
// conversation for clients that hold a connection open.
func (c *sessionController) Ask(ctx *fiber.Ctx) error {
	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.Ask(ctx.Context(), ctx.Params("id"), req.Question)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success ask question", res))
}
