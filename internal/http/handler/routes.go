package handler

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"legalcase/internal/events"
	"legalcase/internal/realtime"
	"legalcase/internal/service"
)

// Services bundles the use-case layer the routes dispatch into.
type Services struct {
	Cases          service.CaseService
	Documents      service.DocumentService
	Questionnaires service.QuestionnaireService
	FormValues     service.FormValueService
	EventLog       service.EventLogService
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Handlers stay
// thin: decode, dispatch into the service layer, map errors.
func RegisterRoutes(app *fiber.App, db *sql.DB, svcs Services, hub *realtime.Hub) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	// Health endpoint: checks DB connectivity only.
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	})

	// Simple liveness probe.
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	registerCaseRoutes(app, svcs)
	registerDocumentRoutes(app, svcs)
	registerFormValueRoutes(app, svcs)
	registerEventRoutes(app, svcs, hub)
}

// actorCtx propagates the acting user from the X-User-Id header into the
// context so the event log records who caused each event.
func actorCtx(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if user := c.Get("X-User-Id"); user != "" {
		ctx = events.WithActor(ctx, user)
	}
	return ctx
}

func parsePage(c *fiber.Ctx) (limit, offset int, err error) {
	limit, err = strconv.Atoi(c.Query("limit", "10"))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid limit")
	}
	offset, err = strconv.Atoi(c.Query("offset", "0"))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid offset")
	}
	return limit, offset, nil
}

type createCaseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ProfileID   string `json:"profile_id"`
	ClientID    string `json:"client_id"`
}

type updateCaseRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type holdRequest struct {
	Reason string `json:"reason"`
}

type decisionRequest struct {
	DecidedBy string `json:"decided_by"`
	Comments  string `json:"comments"`
	Reason    string `json:"reason"`
}

func registerCaseRoutes(app *fiber.App, svcs Services) {
	app.Post("/cases", func(c *fiber.Ctx) error {
		var req createCaseRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if req.Title == "" || req.ProfileID == "" || req.ClientID == "" {
			return writeError(c, fiber.StatusBadRequest, "MISSING_FIELDS", "title, profile_id and client_id are required")
		}
		created, err := svcs.Cases.Create(actorCtx(c), req.Title, req.Description, req.ProfileID, req.ClientID)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	app.Get("/cases", func(c *fiber.Ctx) error {
		limit, offset, err := parsePage(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGINATION", err.Error())
		}
		profileID := c.Query("profile_id")
		clientID := c.Query("client_id")

		var res *service.CaseListResult
		switch {
		case profileID != "":
			res, err = svcs.Cases.ListByProfile(c.UserContext(), profileID, limit, offset)
		case clientID != "":
			res, err = svcs.Cases.ListByClient(c.UserContext(), clientID, limit, offset)
		default:
			return writeError(c, fiber.StatusBadRequest, "MISSING_FILTER", "profile_id or client_id is required")
		}
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	})

	app.Get("/cases/:id", func(c *fiber.Ctx) error {
		found, err := svcs.Cases.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(found)
	})

	app.Patch("/cases/:id", func(c *fiber.Ctx) error {
		var req updateCaseRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		updated, err := svcs.Cases.Update(actorCtx(c), c.Params("id"), service.UpdateCase{
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(updated)
	})

	app.Delete("/cases/:id", func(c *fiber.Ctx) error {
		if err := svcs.Cases.Delete(actorCtx(c), c.Params("id")); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	lifecycle := func(op func(ctx context.Context, c *fiber.Ctx) (any, error)) fiber.Handler {
		return func(c *fiber.Ctx) error {
			res, err := op(actorCtx(c), c)
			if err != nil {
				return writeServiceError(c, err)
			}
			return c.JSON(res)
		}
	}

	app.Post("/cases/:id/auto-fill", lifecycle(func(ctx context.Context, c *fiber.Ctx) (any, error) {
		return svcs.Cases.StartAutoFilling(ctx, c.Params("id"))
	}))
	app.Post("/cases/:id/hold", lifecycle(func(ctx context.Context, c *fiber.Ctx) (any, error) {
		var req holdRequest
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return nil, fiber.ErrBadRequest
		}
		return svcs.Cases.PutOnHold(ctx, c.Params("id"), req.Reason)
	}))
	app.Post("/cases/:id/resume", lifecycle(func(ctx context.Context, c *fiber.Ctx) (any, error) {
		return svcs.Cases.Resume(ctx, c.Params("id"))
	}))
	app.Post("/cases/:id/submit", lifecycle(func(ctx context.Context, c *fiber.Ctx) (any, error) {
		return svcs.Cases.Submit(ctx, c.Params("id"), events.Actor(ctx))
	}))
	app.Post("/cases/:id/approve", lifecycle(func(ctx context.Context, c *fiber.Ctx) (any, error) {
		var req decisionRequest
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return nil, fiber.ErrBadRequest
		}
		decidedBy := req.DecidedBy
		if decidedBy == "" {
			decidedBy = events.Actor(ctx)
		}
		return svcs.Cases.Approve(ctx, c.Params("id"), decidedBy, req.Comments)
	}))
	app.Post("/cases/:id/deny", lifecycle(func(ctx context.Context, c *fiber.Ctx) (any, error) {
		var req decisionRequest
		if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
			return nil, fiber.ErrBadRequest
		}
		decidedBy := req.DecidedBy
		if decidedBy == "" {
			decidedBy = events.Actor(ctx)
		}
		return svcs.Cases.Deny(ctx, c.Params("id"), decidedBy, req.Reason)
	}))
}

type uploadDocumentsRequest struct {
	StorageIDs []string `json:"storage_ids"`
}

func registerDocumentRoutes(app *fiber.App, svcs Services) {
	app.Post("/cases/:id/documents", func(c *fiber.Ctx) error {
		var req uploadDocumentsRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if len(req.StorageIDs) == 0 {
			return writeError(c, fiber.StatusBadRequest, "STORAGE_IDS_REQUIRED", "storage_ids is required")
		}
		ids, err := svcs.Documents.UploadDocuments(actorCtx(c), c.Params("id"), req.StorageIDs)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"document_ids": ids})
	})

	app.Get("/cases/:id/documents", func(c *fiber.Ctx) error {
		docs, err := svcs.Documents.ListDocuments(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": docs})
	})

	app.Get("/cases/:id/documents/:documentId", func(c *fiber.Ctx) error {
		doc, err := svcs.Documents.GetDocument(c.UserContext(), c.Params("id"), c.Params("documentId"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	})

	// Lightweight status probe for upload polling.
	app.Get("/cases/:id/documents/:documentId/status", func(c *fiber.Ctx) error {
		doc, err := svcs.Documents.GetDocument(c.UserContext(), c.Params("id"), c.Params("documentId"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{
			"id":       doc.ID,
			"status":   doc.Status,
			"category": doc.Category,
			"type":     doc.Type,
		})
	})

	app.Post("/cases/:id/questionnaires", func(c *fiber.Ctx) error {
		var sub service.QuestionnaireSubmission
		if err := c.BodyParser(&sub); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		sub.CaseID = c.Params("id")
		if sub.QuestionnaireID == "" || sub.QuestionnaireName == "" {
			return writeError(c, fiber.StatusBadRequest, "MISSING_FIELDS", "questionnaire_id and questionnaire_name are required")
		}
		res, err := svcs.Questionnaires.Submit(actorCtx(c), sub)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})
}

type recordValuesRequest struct {
	FormID   string            `json:"form_id"`
	FormName string            `json:"form_name"`
	PageID   string            `json:"page_id"`
	PageName string            `json:"page_name"`
	Values   map[string]string `json:"values"`
}

type recordInputRequest struct {
	FormID     string `json:"form_id"`
	FormName   string `json:"form_name"`
	PageID     string `json:"page_id"`
	PageName   string `json:"page_name"`
	InputID    string `json:"input_id"`
	InputType  string `json:"input_type"`
	InputValue string `json:"input_value"`
}

func registerFormValueRoutes(app *fiber.App, svcs Services) {
	app.Post("/cases/:id/form-records", func(c *fiber.Ctx) error {
		var req recordValuesRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if req.FormID == "" || len(req.Values) == 0 {
			return writeError(c, fiber.StatusBadRequest, "MISSING_FIELDS", "form_id and values are required")
		}
		records, err := svcs.FormValues.RecordValues(actorCtx(c), c.Params("id"),
			req.FormID, req.FormName, req.PageID, req.PageName, req.Values)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": records})
	})

	app.Post("/cases/:id/form-records/input", func(c *fiber.Ctx) error {
		var req recordInputRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if req.FormID == "" || req.InputID == "" {
			return writeError(c, fiber.StatusBadRequest, "MISSING_FIELDS", "form_id and input_id are required")
		}
		record, err := svcs.FormValues.RecordInputValue(actorCtx(c), c.Params("id"),
			req.FormID, req.FormName, req.PageID, req.PageName, req.InputID, req.InputType, req.InputValue)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(record)
	})

	app.Get("/cases/:id/form-records", func(c *fiber.Ctx) error {
		records, err := svcs.FormValues.AllRecords(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": records})
	})

	app.Get("/cases/:id/form-records/:formId/replay", func(c *fiber.Ctx) error {
		replay, err := svcs.FormValues.Replay(c.UserContext(), c.Params("id"), c.Params("formId"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(replay)
	})

	app.Delete("/cases/:id/form-records/:formId", func(c *fiber.Ctx) error {
		if err := svcs.FormValues.ClearRecords(actorCtx(c), c.Params("id"), c.Params("formId")); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func registerEventRoutes(app *fiber.App, svcs Services, hub *realtime.Hub) {
	app.Get("/cases/:id/events", func(c *fiber.Ctx) error {
		caseID := c.Params("id")
		eventType := c.Query("type")

		var entries any
		var err error
		if eventType != "" {
			entries, err = svcs.EventLog.CaseEventsByType(c.UserContext(), caseID, eventType)
		} else {
			entries, err = svcs.EventLog.CaseEvents(c.UserContext(), caseID)
		}
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": entries})
	})

	app.Get("/cases/:id/stream", func(c *fiber.Ctx) error {
		caseID := c.Params("id")

		// Resolve the case before committing to the stream so a bad id still
		// gets a regular 404.
		snapshot, err := svcs.Cases.Get(c.UserContext(), caseID)
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			msgs, cancel := hub.Subscribe(caseID)
			defer cancel()

			if err := writeSSE(w, realtime.Message{Name: "init", Data: snapshot}); err != nil {
				return
			}

			ticker := time.NewTicker(streamHeartbeatInterval)
			defer ticker.Stop()
			streamEvents(w, msgs, ticker.C)
		}))
		return nil
	})
}

// streamHeartbeatInterval bounds how long a dead connection can hold its
// subscription on an otherwise idle case.
const streamHeartbeatInterval = 30 * time.Second

// streamEvents forwards hub messages to the client until the subscription
// closes or a write fails. Heartbeat comments flush periodically so a gone
// client is detected even when no events arrive.
func streamEvents(w *bufio.Writer, msgs <-chan realtime.Message, heartbeat <-chan time.Time) {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := writeSSE(w, msg); err != nil {
				return
			}
		case <-heartbeat:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}
}

// writeSSE emits one server-sent event and flushes it to the client. A flush
// error means the client is gone.
func writeSSE(w *bufio.Writer, msg realtime.Message) error {
	payload, err := json.Marshal(msg.Data)
	if err != nil {
		log.Printf("failed to marshal sse payload: %v", err)
		return nil
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Name, payload); err != nil {
		return err
	}
	return w.Flush()
}
