package server

import (
	"fmt"
	"net/http"

	"github.com/teranos/tempo/errors"
	"github.com/teranos/tempo/task"
)

// HandleTasks handles the task collection. GET /task lists all tasks
// and POST /task creates one from a draft.
func (s *Server) HandleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTasks(w)
	case http.MethodPost:
		s.createTask(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleTask handles an individual task. GET fetches it and POST replaces
// its definition. DELETE removes the task; its run history stays behind.
func (s *Server) HandleTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r.URL.Path, "/task/")
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getTask(w, id)
	case http.MethodPost:
		s.updateTask(w, r, id)
	case http.MethodDelete:
		s.deleteTask(w, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) listTasks(w http.ResponseWriter) {
	tasks, err := s.tasks.ListTasks()
	if err != nil {
		s.logger.Errorw("Failed to list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list tasks")
		return
	}

	if tasks == nil {
		tasks = []*task.Task{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var draft task.Draft
	if err := readJSON(w, r, &draft); err != nil {
		return
	}

	created, err := s.tasks.InsertTask(&draft)
	if err != nil {
		if errors.IsInvalidRequestError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Errorw("Failed to insert task", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to insert task")
		return
	}

	s.syncExecutors()

	s.logger.Infow("Task created",
		"task_id", created.ID,
		"trigger_type", created.TriggerType,
	)
	writeJSON(w, http.StatusCreated, map[string]int{"task_id": created.ID})
}

func (s *Server) getTask(w http.ResponseWriter, id int) {
	t, err := s.tasks.GetTask(id)
	if err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("No task with ID %d", id))
			return
		}
		s.logger.Errorw("Failed to get task", "error", err, "task_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to get task")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"task": t})
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request, id int) {
	var draft task.Draft
	if err := readJSON(w, r, &draft); err != nil {
		return
	}

	if err := s.tasks.UpdateTask(id, &draft); err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("No task with ID %d", id))
			return
		}
		if errors.IsInvalidRequestError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Errorw("Failed to update task", "error", err, "task_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to update task")
		return
	}

	s.syncExecutors()

	s.logger.Infow("Task updated", "task_id", id)
	writeJSON(w, http.StatusOK, map[string]int{"task_id": id})
}

func (s *Server) deleteTask(w http.ResponseWriter, id int) {
	if err := s.tasks.DeleteTask(id); err != nil {
		if errors.IsNotFoundError(err) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("No task with ID %d", id))
			return
		}
		s.logger.Errorw("Failed to delete task", "error", err, "task_id", id)
		writeError(w, http.StatusInternalServerError, "Failed to delete task")
		return
	}

	s.syncExecutors()

	s.logger.Infow("Task deleted", "task_id", id)
	writeJSON(w, http.StatusOK, map[string]int{"task_id": id})
}
