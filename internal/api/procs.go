package api

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/procmux/internal/api/models"
	"github.com/smazurov/procmux/internal/proc"
)

// registerProcRoutes registers process inspection and control endpoints.
func (s *Server) registerProcRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-procs",
		Method:      http.MethodGet,
		Path:        "/api/procs",
		Summary:     "List Processes",
		Description: "List all managed processes with their current state",
		Tags:        []string{"procs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ProcListResponse, error) {
		names := s.group.Members()
		sort.Strings(names)
		procs := make([]models.ProcInfo, 0, len(names))
		for _, name := range names {
			if c := s.group.Controller(name); c != nil {
				procs = append(procs, procInfo(c))
			}
		}
		return &models.ProcListResponse{
			Body: models.ProcListData{Procs: procs, Count: len(procs)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-proc",
		Method:      http.MethodGet,
		Path:        "/api/procs/{name}",
		Summary:     "Get Process",
		Description: "Get one managed process by name",
		Tags:        []string{"procs"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *struct {
		Name string `path:"name" example:"worker" doc:"Process name"`
	}) (*models.ProcResponse, error) {
		c := s.group.Controller(input.Name)
		if c == nil {
			return nil, huma.Error404NotFound("process not found: " + input.Name)
		}
		return &models.ProcResponse{Body: procInfo(c)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "launch-proc",
		Method:      http.MethodPost,
		Path:        "/api/procs/{name}/launch",
		Summary:     "Launch Process",
		Description: "Spawn the process; fails unless it is in the ready state",
		Tags:        []string{"procs"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409},
	}, func(_ context.Context, input *struct {
		Name string `path:"name" example:"worker" doc:"Process name"`
	}) (*models.ActionResponse, error) {
		c := s.group.Controller(input.Name)
		if c == nil {
			return nil, huma.Error404NotFound("process not found: " + input.Name)
		}
		if err := c.Launch(); err != nil {
			if errors.Is(err, proc.ErrNotReady) {
				return nil, huma.Error409Conflict(err.Error())
			}
			return nil, huma.Error500InternalServerError("launch failed", err)
		}
		return &models.ActionResponse{
			Body: models.ActionData{
				Name:    input.Name,
				State:   string(c.State()),
				Message: "process launched",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "terminate-proc",
		Method:      http.MethodPost,
		Path:        "/api/procs/{name}/terminate",
		Summary:     "Terminate Process",
		Description: "Request the process stop; a no-op when it is not running",
		Tags:        []string{"procs"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *struct {
		Name string `path:"name" example:"worker" doc:"Process name"`
	}) (*models.ActionResponse, error) {
		c := s.group.Controller(input.Name)
		if c == nil {
			return nil, huma.Error404NotFound("process not found: " + input.Name)
		}
		c.Terminate()
		return &models.ActionResponse{
			Body: models.ActionData{
				Name:    input.Name,
				State:   string(c.State()),
				Message: "termination requested",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "send-input",
		Method:      http.MethodPost,
		Path:        "/api/procs/{name}/input",
		Summary:     "Send Input",
		Description: "Queue one line for the process's stdin",
		Tags:        []string{"procs"},
		Security:    withAuth(),
		Errors:      []int{401, 404, 409},
	}, func(_ context.Context, input *models.InputRequest) (*models.ActionResponse, error) {
		c := s.group.Controller(input.Name)
		if c == nil {
			return nil, huma.Error404NotFound("process not found: " + input.Name)
		}
		if err := c.Send(input.Body.Text); err != nil {
			if errors.Is(err, proc.ErrNoInput) {
				return nil, huma.Error409Conflict(err.Error())
			}
			return nil, huma.Error500InternalServerError("send failed", err)
		}
		return &models.ActionResponse{
			Body: models.ActionData{
				Name:    input.Name,
				State:   string(c.State()),
				Message: "input queued",
			},
		}, nil
	})
}

func procInfo(c *proc.Controller) models.ProcInfo {
	info := models.ProcInfo{
		Name:    c.Name(),
		Command: c.Command(),
		State:   string(c.State()),
		Pid:     c.Pid(),
	}
	if code, ok := c.ExitCode(); ok {
		info.ExitCode = &code
	}
	return info
}
