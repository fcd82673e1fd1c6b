package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"impactflow/api/internal/models"
	"impactflow/api/internal/store"
)

var ErrUnknownTask = errors.New("task not found")

type TaskService struct {
	gw  *store.Gateway
	log zerolog.Logger
}

func NewTaskService(gw *store.Gateway, logger zerolog.Logger) *TaskService {
	return &TaskService{gw: gw, log: logger}
}

type CreateTaskInput struct {
	Title       string
	Description string
	EventID     string
	AssignedTo  string
	DueDate     *time.Time
}

func (s *TaskService) Create(ctx context.Context, input CreateTaskInput) (models.Task, error) {
	if _, err := s.gw.Events.FindByID(ctx, input.EventID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Task{}, ErrUnknownEvent
		}
		return models.Task{}, fmt.Errorf("lookup event: %w", err)
	}

	task, err := s.gw.Tasks.Create(ctx, models.Task{
		Title:       input.Title,
		Description: input.Description,
		EventID:     input.EventID,
		AssignedTo:  input.AssignedTo,
		Status:      models.TaskStatusPending,
		DueDate:     input.DueDate,
	})
	if err != nil {
		return models.Task{}, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// ByEvent returns all tasks attached to an event.
func (s *TaskService) ByEvent(ctx context.Context, eventID string) ([]models.Task, error) {
	tasks, err := s.gw.Tasks.Find(ctx, store.Predicate{"event": eventID})
	if err != nil {
		return nil, fmt.Errorf("list event tasks: %w", err)
	}
	return tasks, nil
}

// ByAssignee returns all tasks assigned to an account.
func (s *TaskService) ByAssignee(ctx context.Context, accountID string) ([]models.Task, error) {
	tasks, err := s.gw.Tasks.Find(ctx, store.Predicate{"assignedTo": accountID})
	if err != nil {
		return nil, fmt.Errorf("list assigned tasks: %w", err)
	}
	return tasks, nil
}

// SetStatus moves a task to the given status.
func (s *TaskService) SetStatus(ctx context.Context, id string, status models.TaskStatus) (models.Task, error) {
	task, err := s.gw.Tasks.Update(ctx, id, store.Predicate{"status": string(status)})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Task{}, ErrUnknownTask
		}
		return models.Task{}, fmt.Errorf("update task status: %w", err)
	}
	return task, nil
}
