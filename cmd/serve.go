package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tacit-cli/internal/federation"
	"github.com/sells-group/tacit-cli/internal/incremental"
	"github.com/sells-group/tacit-cli/internal/model"
	"github.com/sells-group/tacit-cli/internal/monitoring"
	"github.com/sells-group/tacit-cli/internal/pipeline"
	"github.com/sells-group/tacit-cli/internal/store"
)

var servePort int

// mergedPRHandler is the incremental controller surface the webhook
// needs; narrowed for tests.
type mergedPRHandler interface {
	HandleMergedPR(ctx context.Context, repo string, number int) (*incremental.Result, error)
}

// server bundles the HTTP handlers' dependencies.
type server struct {
	store         store.Store
	incremental   mergedPRHandler
	collector     *monitoring.Collector
	broadcaster   *sseBroadcaster
	webhookSecret string
	runExtract    func(ctx context.Context, repo string)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook and review API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		broadcaster := newSSEBroadcaster()
		s := &server{
			store:         env.Store,
			incremental:   env.Incremental,
			collector:     monitoring.NewCollector(env.Store),
			broadcaster:   broadcaster,
			webhookSecret: cfg.GitHub.WebhookSecret,
			runExtract: func(ctx context.Context, repo string) {
				ex := pipeline.NewExtractor(env.Store, env.Engine, env.Tools, broadcaster, extractorOptions())
				if _, err := ex.Run(ctx, repo); err != nil {
					zap.L().Error("serve: extraction failed", zap.String("repo", repo), zap.Error(err))
				}
			},
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           s.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "X-Hub-Signature-256"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", s.handleStatus)
	r.Get("/events", s.broadcaster.ServeHTTP)
	r.Post("/webhook/github", s.handleGitHubWebhook)
	r.Post("/extract", s.handleExtract)

	r.Get("/rules", s.handleListRules)
	r.Get("/proposals", s.handleListProposals)
	r.Post("/proposals/{id}/approve", s.handleReviewProposal(model.ProposalApproved))
	r.Post("/proposals/{id}/reject", s.handleReviewProposal(model.ProposalRejected))

	return r
}

// handleGitHubWebhook verifies the HMAC signature and routes merged
// pull_request events to the incremental controller.
func (s *server) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !verifySignature(s.webhookSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		writeJSONError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	if r.Header.Get("X-GitHub-Event") != "pull_request" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	var event pullRequestEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if event.Action != "closed" || !event.PullRequest.Merged {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	result, err := s.incremental.HandleMergedPR(r.Context(), event.Repository.FullName, event.PullRequest.Number)
	if err != nil {
		zap.L().Error("webhook: incremental processing failed",
			zap.String("repo", event.Repository.FullName),
			zap.Int("pr", event.PullRequest.Number),
			zap.Error(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"auto_approved": len(result.AutoApproved),
		"proposed":      len(result.Proposed),
	})
}

func (s *server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Repo string `json:"repo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Repo == "" {
		writeJSONError(w, http.StatusBadRequest, "repo is required")
		return
	}

	// Deliberately detached from the request context: the extraction
	// outlives the HTTP exchange and reports through /events.
	go s.runExtract(context.WithoutCancel(r.Context()), req.Repo)

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "repo": req.Repo})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collector.Collect(r.Context(), 24)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "collect failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) handleListRules(w http.ResponseWriter, r *http.Request) {
	filter := store.RuleFilter{
		Category:   model.Category(r.URL.Query().Get("category")),
		SourceKind: model.SourceKind(r.URL.Query().Get("source")),
	}
	if r.URL.Query().Get("published") == "true" {
		filter.PublishedOnly = true
	}
	rules, err := s.store.ListRules(r.Context(), filter)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "list failed")
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (s *server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	status := model.ProposalStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.ProposalPending
	}
	proposals, err := s.store.ListProposals(r.Context(), status)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "list failed")
		return
	}
	writeJSON(w, http.StatusOK, proposals)
}

func (s *server) handleReviewProposal(status model.ProposalStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			ReviewedBy string `json:"reviewed_by"`
			Feedback   string `json:"feedback"`
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		ctx := r.Context()
		if status != model.ProposalApproved {
			if err := s.store.ReviewProposal(ctx, id, status, req.ReviewedBy, req.Feedback); err != nil {
				writeJSONError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
			return
		}

		rule, err := federation.Approve(ctx, s.store, id, req.ReviewedBy, req.Feedback)
		if err != nil {
			zap.L().Error("proposal approval failed", zap.String("proposal_id", id), zap.Error(err))
			switch {
			case errors.Is(err, federation.ErrAlreadyDecided):
				writeJSONError(w, http.StatusConflict, "proposal already decided")
			case errors.Is(err, store.ErrNotFound):
				writeJSONError(w, http.StatusNotFound, "proposal not found")
			default:
				writeJSONError(w, http.StatusInternalServerError, "approval failed")
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  string(status),
			"rule_id": rule.ID,
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
