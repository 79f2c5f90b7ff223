package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/nodeexec/internal/api/models"
	"github.com/smazurov/nodeexec/internal/dispatch"
)

func (s *Server) registerExecutorRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-executors",
		Method:      http.MethodGet,
		Path:        "/api/executors",
		Summary:     "List Executors",
		Description: "List every tracked executor with its state and exit code",
		Tags:        []string{"executors"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ExecutorListResponse, error) {
		infos := s.jobs.List()
		data := make([]models.ExecutorData, len(infos))
		for i := range infos {
			data[i] = toExecutorData(&infos[i])
		}
		return &models.ExecutorListResponse{
			Body: models.ExecutorListData{Executors: data, Count: len(data)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-executor",
		Method:      http.MethodGet,
		Path:        "/api/executors/{id}",
		Summary:     "Get Executor",
		Description: "Get one executor including its captured output",
		Tags:        []string{"executors"},
		Security:    withAuth(),
		Errors:      []int{401, 404},
	}, func(_ context.Context, input *models.ExecutorIDInput) (*models.ExecutorResponse, error) {
		info, ok := s.jobs.Status(input.ID)
		if !ok {
			return nil, huma.Error404NotFound("executor not found: " + input.ID)
		}
		output := info.Lines
		if output == nil {
			output = []string{}
		}
		return &models.ExecutorResponse{
			Body: models.ExecutorDetailData{
				ExecutorData: toExecutorData(info),
				Output:       output,
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID:   "stop-executor",
		Method:        http.MethodPost,
		Path:          "/api/executors/{id}/stop",
		Summary:       "Stop Executor",
		Description:   "Request a halt of a running executor. Stopping a finished executor is a no-op.",
		Tags:          []string{"executors"},
		Security:      withAuth(),
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{401, 404},
	}, func(_ context.Context, input *models.ExecutorIDInput) (*models.StopResponse, error) {
		if err := s.jobs.Stop(input.ID); err != nil {
			if errors.Is(err, dispatch.ErrJobNotFound) {
				return nil, huma.Error404NotFound("executor not found: " + input.ID)
			}
			return nil, huma.Error500InternalServerError("failed to stop executor", err)
		}
		s.logger.Info("Stop requested via API", "id", input.ID)
		return &models.StopResponse{
			Body: models.StopData{ID: input.ID, Message: "Stop requested"},
		}, nil
	})
}

func toExecutorData(info *dispatch.Info) models.ExecutorData {
	data := models.ExecutorData{
		ID:         info.ID,
		Node:       info.Node,
		BatchID:    info.BatchID,
		Args:       info.Args,
		Elevated:   info.Elevated,
		State:      string(info.State),
		ExitCode:   info.ExitCode,
		Lines:      len(info.Lines),
		StartedAt:  timePtr(info.StartedAt),
		FinishedAt: timePtr(info.FinishedAt),
	}
	if info.LastError != nil {
		data.Error = info.LastError.Error()
	}
	return data
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
