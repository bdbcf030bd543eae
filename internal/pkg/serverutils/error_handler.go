package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docchat-be/pkg/store"
)

// ErrorHandlerMiddleware maps domain errors onto HTTP statuses so handlers
// can return them untranslated.
//
//	session not found            -> 404
//	session not ready / bound    -> 409
//	session closed               -> 410
//	upload yielded no documents  -> 422 (400 when the upload was empty)
//	ingestion aborted            -> 422
//	embedding / generation error -> 502
func ErrorHandlerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		var (
			noDocs    *store.NoDocumentsError
			ingestErr *store.IngestionError
			embedErr  *store.EmbeddingFailure
			genErr    *store.GenerationFailure
			fiberErr  *fiber.Error
		)

		switch {
		case errors.Is(err, store.ErrSessionNotFound):
			return respond(c, fiber.StatusNotFound, err.Error(), nil)

		case errors.Is(err, store.ErrSessionNotReady),
			errors.Is(err, store.ErrSessionAlreadyBound):
			return respond(c, fiber.StatusConflict, err.Error(), nil)

		case errors.Is(err, store.ErrSessionClosed):
			return respond(c, fiber.StatusGone, err.Error(), nil)

		case errors.As(err, &noDocs):
			status := fiber.StatusUnprocessableEntity
			if len(noDocs.Rejections) == 0 {
				status = fiber.StatusBadRequest
			}
			return respond(c, status, noDocs.Error(), noDocs.Rejections)

		case errors.As(err, &ingestErr):
			return respond(c, fiber.StatusUnprocessableEntity, ingestErr.Error(), nil)

		case errors.As(err, &embedErr), errors.As(err, &genErr):
			return respond(c, fiber.StatusBadGateway, err.Error(), nil)

		case errors.As(err, &fiberErr):
			return respond(c, fiberErr.Code, fiberErr.Message, nil)

		default:
			return respond(c, fiber.StatusInternalServerError, "internal server error", nil)
		}
	}
}

func respond(c *fiber.Ctx, status int, message string, rejections []store.UploadRejection) error {
	body := ErrorResponse(status, message)
	body.Errors = rejections
	return c.Status(status).JSON(body)
}
