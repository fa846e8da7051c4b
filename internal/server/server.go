// Package server is the HTTP front-end: upload a blueprint, download the
// migrated document.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"blueprint-migrator/internal/config"
	"blueprint-migrator/internal/ctxlog"
	"blueprint-migrator/internal/fields"
	"blueprint-migrator/internal/history"
	"blueprint-migrator/internal/migrate"
)

// HeaderRun carries the run id of a successful migration. The full report
// is served by GET /api/runs/:id.
const HeaderRun = "X-Migration-Run"

const (
	modeUpdate = "update"

	// multipartOverhead leaves room for form fields and boundaries above the
	// file size limit.
	multipartOverhead = 64 << 10
)

type handler struct {
	opts      migrate.Options
	store     history.Store
	maxUpload int
	log       *slog.Logger
}

// New returns the front-end application. Runs are recorded in store; a nil
// store keeps them in memory.
func New(cfg *config.Config, provider fields.Provider, store history.Store, log *slog.Logger) (*fiber.App, error) {
	opts, err := cfg.MigrateOptions(provider)
	if err != nil {
		return nil, err
	}

	if store == nil {
		store = history.NewMemory()
	}

	if log == nil {
		log = ctxlog.FromContext(context.Background())
	}

	h := &handler{
		opts:      opts,
		store:     store,
		maxUpload: cfg.Server.MaxUploadBytes,
		log:       log,
	}

	app := fiber.New(fiber.Config{
		AppName:   "blueprint-migrator",
		BodyLimit: cfg.Server.MaxUploadBytes + multipartOverhead,
	})

	app.Get("/api/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	app.Post("/api/migrate", h.migrate)
	app.Get("/api/runs", h.listRuns)
	app.Get("/api/runs/:id", h.getRun)

	return app, nil
}

// Serve listens on addr until ctx is done, then shuts the app down.
func Serve(ctx context.Context, app *fiber.App, addr string) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return app.ShutdownWithContext(shutdownCtx)
	}
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func (h *handler) migrate(c fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "no file uploaded")
	}

	if fh.Filename == "" {
		return badRequest(c, "no file selected")
	}

	if !strings.EqualFold(filepath.Ext(fh.Filename), ".json") {
		return badRequest(c, "invalid file type, upload a JSON file")
	}

	if fh.Size > int64(h.maxUpload) {
		return badRequest(c, fmt.Sprintf("file too large, maximum size is %d bytes", h.maxUpload))
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest(c, fmt.Sprintf("error reading file: %v", err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return badRequest(c, fmt.Sprintf("error reading file: %v", err))
	}

	opts := h.opts

	if c.FormValue("connection_mode") == modeUpdate {
		raw := c.FormValue("new_connection_id")
		if raw == "" {
			return badRequest(c, "new_connection_id is required in update mode")
		}

		id, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "new_connection_id must be a valid number")
		}

		opts.ConnectionID = &id
	}

	opts.SmartFields = strings.EqualFold(c.FormValue("smart_fields"), "true")

	log := h.log.With("file", fh.Filename)
	ctx := ctxlog.WithLogger(c.Context(), log)
	started := time.Now()

	out, res, err := migrate.MigrateBytes(ctx, data, opts)
	if err != nil {
		if errors.Is(err, migrate.ErrInvalidDocument) {
			return badRequest(c, err.Error())
		}

		log.Error("migration failed", "error", err)

		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fmt.Sprintf("migration failed: %v", err)})
	}

	h.record(ctx, fh.Filename, started, res)

	if !res.Changed {
		return badRequest(c, "no legacy CRM modules found in this blueprint, nothing to migrate")
	}

	c.Set(HeaderRun, res.Report.RunID)
	c.Attachment(OutputName(fh.Filename))

	return c.Send(out)
}

// record stores the run. Failures are logged and never change the response.
func (h *handler) record(ctx context.Context, source string, started time.Time, res *migrate.Result) {
	run, err := history.NewRun(source, started, res.Report)
	if err == nil {
		err = h.store.Record(ctx, run)
	}

	if err != nil {
		ctxlog.FromContext(ctx).Warn("failed to record run", "run_id", res.Report.RunID, "error", err)
	}
}

func (h *handler) getRun(c fiber.Ctx) error {
	run, err := h.store.Get(c.Context(), c.Params("id"))
	if errors.Is(err, history.ErrRunNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "run not found"})
	}

	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(run)
}

func (h *handler) listRuns(c fiber.Ctx) error {
	limit := 50

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badRequest(c, "limit must be a positive number")
		}

		limit = n
	}

	runs, err := h.store.List(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if runs == nil {
		runs = []history.Run{}
	}

	return c.JSON(runs)
}

// OutputName returns the download name for an uploaded file name.
func OutputName(upload string) string {
	base := filepath.Base(strings.ReplaceAll(upload, "\\", "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder

	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}

	name := strings.Trim(b.String(), "._")
	if name == "" {
		name = "blueprint"
	}

	return name + "_v2_migrated.json"
}
