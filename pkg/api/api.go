// Package api exposes the engine over HTTP: project CRUD, validation,
// and run lifecycle endpoints.
package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/bissakov/qazcode-rpa-sub000/pkg/project"
	"github.com/bissakov/qazcode-rpa-sub000/pkg/store"
)

// Server wires the HTTP routes to a store.
type Server struct {
	app   *fiber.App
	store *store.Store
	log   *slog.Logger
}

// NewServer builds the fiber application and registers all routes.
func NewServer(st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store: st,
		log:   logger,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "scenariod",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.routes()
	return s
}

// App returns the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.log.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := s.app.Group("/v1")

	v1.Post("/projects", s.createProject)
	v1.Get("/projects", s.listProjects)
	v1.Get("/projects/:id", s.getProject)
	v1.Delete("/projects/:id", s.deleteProject)
	v1.Post("/projects/:id/validate", s.validateProject)
	v1.Post("/projects/:id/runs", s.startRun)

	v1.Get("/runs", s.listRuns)
	v1.Get("/runs/:id", s.getRun)
	v1.Get("/runs/:id/logs", s.getRunLogs)
	v1.Post("/runs/:id/cancel", s.cancelRun)
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	s.log.Error("request failed", "path", c.Path(), "error", err)
	return apiError(c, code, err.Error())
}

func apiError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    status,
			"message": message,
		},
	})
}

func (s *Server) createProject(c *fiber.Ctx) error {
	p, err := project.Decode(c.Body())
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, err.Error())
	}
	p = s.store.PutProject(p)
	s.log.Info("project stored", "project_id", p.ID, "name", p.Name)
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (s *Server) listProjects(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"projects": s.store.ListProjects()})
}

func (s *Server) getProject(c *fiber.Ctx) error {
	p, ok := s.store.GetProject(c.Params("id"))
	if !ok {
		return apiError(c, fiber.StatusNotFound, "project not found")
	}
	return c.JSON(p)
}

func (s *Server) deleteProject(c *fiber.Ctx) error {
	if !s.store.DeleteProject(c.Params("id")) {
		return apiError(c, fiber.StatusNotFound, "project not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) validateProject(c *fiber.Ctx) error {
	results, err := s.store.Validate(c.Params("id"))
	if err != nil {
		return apiError(c, fiber.StatusNotFound, err.Error())
	}
	valid := true
	for _, r := range results {
		if !r.Valid() {
			valid = false
			break
		}
	}
	return c.JSON(fiber.Map{"valid": valid, "scenarios": results})
}

func (s *Server) startRun(c *fiber.Ctx) error {
	run, err := s.store.StartRun(c.Params("id"))
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, err.Error())
	}
	s.log.Info("run started", "run_id", run.ID, "project_id", run.ProjectID)
	info, _ := s.store.RunInfo(run.ID)
	return c.Status(fiber.StatusAccepted).JSON(info)
}

func (s *Server) listRuns(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"runs": s.store.ListRuns(c.Query("project_id"))})
}

func (s *Server) getRun(c *fiber.Ctx) error {
	info, ok := s.store.RunInfo(c.Params("id"))
	if !ok {
		return apiError(c, fiber.StatusNotFound, "run not found")
	}
	return c.JSON(info)
}

func (s *Server) getRunLogs(c *fiber.Ctx) error {
	run, ok := s.store.GetRun(c.Params("id"))
	if !ok {
		return apiError(c, fiber.StatusNotFound, "run not found")
	}
	return c.JSON(fiber.Map{"entries": run.Logs.Entries()})
}

func (s *Server) cancelRun(c *fiber.Ctx) error {
	if !s.store.CancelRun(c.Params("id")) {
		return apiError(c, fiber.StatusNotFound, "run not found")
	}
	return c.JSON(fiber.Map{"cancelled": true})
}
