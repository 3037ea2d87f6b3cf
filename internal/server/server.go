// Package server предоставляет HTTP-фронтенд: прогоны конвейера запускаются
// как асинхронные задачи, диалоги аккаунта доступны для выбора чата.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"telegram-voice-transcriber/internal/domain"
	"telegram-voice-transcriber/internal/pkg/config"
	"telegram-voice-transcriber/internal/telegram"
	"telegram-voice-transcriber/internal/usecase"
)

// taskTTL — срок хранения записи о задаче.
const taskTTL = 24 * time.Hour

// RunProcessor определяет интерфейс для сценария, выполняющего прогон
// с переданной конфигурацией.
type RunProcessor interface {
	Run(ctx context.Context, cfg *config.Config) (*usecase.Result, error)
}

// DialogLister отдаёт недавние диалоги аккаунта.
type DialogLister interface {
	ListDialogs(ctx context.Context) ([]telegram.Dialog, error)
}

// HealthChecker проверяет доступность Telegram API.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server представляет HTTP-сервер
type Server struct {
	HTTPServer *http.Server
	cfg        *config.Config
	taskStore  *TaskStore
	processor  RunProcessor
	dialogs    DialogLister
	health     HealthChecker
	log        *slog.Logger
}

// runRequest — необязательные переопределения конфигурации для одного прогона.
type runRequest struct {
	Chat   string `json:"chat,omitempty"`
	Year   int    `json:"year,omitempty"`
	Count  int    `json:"count,omitempty"`
	DryRun *bool  `json:"dry_run,omitempty"`
}

// New создает новый экземпляр Server. Контекст управляет фоновой очисткой
// хранилища задач.
func New(ctx context.Context, cfg *config.Config, processor RunProcessor, dialogs DialogLister, health HealthChecker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		taskStore: NewTaskStore(),
		processor: processor,
		dialogs:   dialogs,
		health:    health,
		log:       log,
	}

	chiRouter := chi.NewRouter()
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	chiRouter.Get("/health", s.handleHealth)

	chiRouter.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs/{runID}", s.handleRunStatus)
		r.Get("/runs/{runID}/result", s.handleRunResult)
		r.Get("/dialogs", s.handleDialogs)
	})

	s.HTTPServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      chiRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.taskStore.StartCleanupTicker(ctx, 1*time.Hour)

	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.health != nil {
		if err := s.health.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	// Тело запроса необязательно: пустое означает прогон с настройками
	// из конфигурации.
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Не удалось декодировать тело запроса", http.StatusBadRequest)
		return
	}

	runCfg := *s.cfg
	if req.Chat != "" {
		runCfg.Chat.Identifier = req.Chat
	}
	if req.Year != 0 {
		runCfg.Chat.Year = req.Year
	}
	if req.Count != 0 {
		runCfg.Processing.Count = req.Count
	}
	if req.DryRun != nil {
		runCfg.Processing.DryRun = *req.DryRun
	}

	if _, _, _, err := runCfg.Chat.Window(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	taskID := uuid.NewString()
	s.taskStore.CreateTask(taskID, taskTTL)

	// Прогон выполняется в фоне; результат забирается по идентификатору задачи.
	go func() {
		s.taskStore.UpdateTaskStatus(taskID, TaskStatusProcessing)

		result, err := s.processor.Run(context.Background(), &runCfg)
		if err != nil {
			s.log.Error("Run task failed", "task_id", taskID, "error", err)
			s.taskStore.UpdateTaskError(taskID, err.Error())
			return
		}

		s.taskStore.UpdateTaskResult(taskID, result)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"task_id": taskID})
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	task, err := s.taskStore.GetTask(chi.URLParam(r, "runID"))
	if err != nil {
		http.Error(w, "Задача не найдена", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"task_id":       task.ID,
		"status":        task.Status,
		"error_message": task.ErrorMessage,
	})
}

func (s *Server) handleRunResult(w http.ResponseWriter, r *http.Request) {
	task, err := s.taskStore.GetTask(chi.URLParam(r, "runID"))
	if err != nil {
		http.Error(w, "Задача не найдена", http.StatusNotFound)
		return
	}

	if task.Status != TaskStatusCompleted {
		http.Error(w, "Задача не завершена", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(renderResult(task.Result))
}

func (s *Server) handleDialogs(w http.ResponseWriter, r *http.Request) {
	dialogs, err := s.dialogs.ListDialogs(r.Context())
	if err != nil {
		s.log.Error("Failed to list dialogs", "error", err)
		http.Error(w, "Не удалось получить список диалогов", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{"dialogs": dialogs})
}

// typeCountView — счётчик одного типа в порядке первого появления.
type typeCountView struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func countsView(counts *domain.TypeCounts) []typeCountView {
	if counts == nil {
		return nil
	}
	views := make([]typeCountView, 0, len(counts.Types()))
	for _, t := range counts.Types() {
		views = append(views, typeCountView{Type: string(t), Count: counts.Get(t)})
	}
	return views
}

// renderResult переводит итог прогона в JSON-представление.
func renderResult(result *usecase.Result) map[string]interface{} {
	if result.DryRun != nil {
		examples := make([]string, 0, len(result.DryRun.ExampleMessages))
		for _, example := range result.DryRun.ExampleMessages {
			examples = append(examples, example.RenderExample())
		}
		return map[string]interface{}{
			"mode":           "dry_run",
			"chat_title":     result.DryRun.ChatTitle,
			"year":           result.DryRun.Year,
			"total_messages": result.DryRun.TotalMessages,
			"type_counts":    countsView(result.DryRun.TypeCounts),
			"examples":       examples,
		}
	}

	return map[string]interface{}{
		"mode":               "full",
		"processed_messages": result.Summary.ProcessedMessages,
		"type_counts":        countsView(result.Summary.TypeCounts),
		"output_path":        result.Summary.OutputPath,
	}
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Завершение работы HTTP-сервера")
	return s.HTTPServer.Shutdown(ctx)
}
